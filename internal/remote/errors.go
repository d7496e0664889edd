package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Code classifies a remote service failure.
type Code int

const (
	// CodeInternalError is an unexpected failure inside the service.
	CodeInternalError Code = iota + 1
	// CodeNetworkUnavailable means no network path to the service exists.
	CodeNetworkUnavailable
	// CodeNetworkFailure means the request was sent but the exchange failed.
	CodeNetworkFailure
	// CodeServiceUnavailable means the service is temporarily down.
	CodeServiceUnavailable
	// CodeRequestRateLimited means the client is sending too many requests.
	CodeRequestRateLimited
	// CodeZoneBusy means the addressed zone is handling too much traffic.
	CodeZoneBusy
	// CodePermissionFailure means the caller may not perform the request.
	CodePermissionFailure
	// CodeInvalidArguments means the request was malformed.
	CodeInvalidArguments
	// CodeUnknownItem means the addressed item does not exist.
	CodeUnknownItem
)

var codeNames = map[Code]string{
	CodeInternalError:      "InternalError",
	CodeNetworkUnavailable: "NetworkUnavailable",
	CodeNetworkFailure:     "NetworkFailure",
	CodeServiceUnavailable: "ServiceUnavailable",
	CodeRequestRateLimited: "RequestRateLimited",
	CodeZoneBusy:           "ZoneBusy",
	CodePermissionFailure:  "PermissionFailure",
	CodeInvalidArguments:   "InvalidArguments",
	CodeUnknownItem:        "UnknownItem",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is a failure reported by, or while talking to, the remote service.
type Error struct {
	Code Code
	// Message is the service's description, if any.
	Message string
	// RetryAfter is the delay the service suggested before retrying. Zero means none.
	RetryAfter time.Duration
	// StatusCode is the HTTP status, or zero for transport failures.
	StatusCode int
	// Err is the underlying transport error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s (HTTP %d): %s", e.Code, e.StatusCode, msg)
	}
	return fmt.Sprintf("remote %s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or zero.
func CodeOf(err error) Code {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Code
	}
	return 0
}

// CodeForStatus maps an HTTP status to an error code.
func CodeForStatus(status int) Code {
	switch {
	case status == http.StatusTooManyRequests:
		return CodeRequestRateLimited
	case status == http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	case status == http.StatusConflict:
		return CodeZoneBusy
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CodePermissionFailure
	case status == http.StatusBadRequest:
		return CodeInvalidArguments
	case status == http.StatusNotFound:
		return CodeUnknownItem
	default:
		return CodeInternalError
	}
}

// MaxRetryAfter caps the suggested delay taken from a response.
const MaxRetryAfter = time.Hour

// NewHTTPError builds an Error from a non-success response. The suggested
// delay comes from the Retry-After header, falling back to the body's
// error.retryAfterSeconds field.
func NewHTTPError(status int, header http.Header, body []byte) *Error {
	e := &Error{
		Code:       CodeForStatus(status),
		StatusCode: status,
		Message:    http.StatusText(status),
	}

	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if msg := parsed.Get("error.message"); msg.Exists() && msg.String() != "" {
			e.Message = msg.String()
		}
		if secs := parsed.Get("error.retryAfterSeconds"); secs.Exists() && secs.Float() > 0 {
			e.RetryAfter = secondsToDelay(secs.Float())
		}
	}
	if d, ok := parseRetryAfter(header.Get("Retry-After"), time.Now()); ok {
		e.RetryAfter = d
	}
	return e
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *Error {
	return &Error{Code: CodeNetworkFailure, Err: err}
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return secondsToDelay(float64(secs)), true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return min(d, MaxRetryAfter), true
		}
	}
	return 0, false
}

// secondsToDelay converts in float space so huge values cannot overflow Duration.
func secondsToDelay(secs float64) time.Duration {
	if secs >= MaxRetryAfter.Seconds() {
		return MaxRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}
