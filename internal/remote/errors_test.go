package remote_test

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/recordsync/internal/remote"
)

var _ = Describe("Error", func() {
	Describe("CodeForStatus", func() {
		DescribeTable("maps HTTP statuses to codes",
			func(status int, want remote.Code) {
				Expect(remote.CodeForStatus(status)).To(Equal(want))
			},
			Entry("429", http.StatusTooManyRequests, remote.CodeRequestRateLimited),
			Entry("503", http.StatusServiceUnavailable, remote.CodeServiceUnavailable),
			Entry("409", http.StatusConflict, remote.CodeZoneBusy),
			Entry("401", http.StatusUnauthorized, remote.CodePermissionFailure),
			Entry("403", http.StatusForbidden, remote.CodePermissionFailure),
			Entry("400", http.StatusBadRequest, remote.CodeInvalidArguments),
			Entry("404", http.StatusNotFound, remote.CodeUnknownItem),
			Entry("500", http.StatusInternalServerError, remote.CodeInternalError),
			Entry("502", http.StatusBadGateway, remote.CodeInternalError),
		)
	})

	Describe("NewHTTPError", func() {
		It("should take the retry delay from the Retry-After header", func() {
			header := http.Header{}
			header.Set("Retry-After", "7")
			err := remote.NewHTTPError(http.StatusTooManyRequests, header, nil)
			Expect(err.Code).To(Equal(remote.CodeRequestRateLimited))
			Expect(err.RetryAfter).To(Equal(7 * time.Second))
			Expect(err.StatusCode).To(Equal(http.StatusTooManyRequests))
		})

		It("should accept an HTTP date in Retry-After", func() {
			header := http.Header{}
			header.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))
			err := remote.NewHTTPError(http.StatusServiceUnavailable, header, nil)
			Expect(err.RetryAfter).To(BeNumerically(">", 50*time.Second))
			Expect(err.RetryAfter).To(BeNumerically("<=", time.Minute))
		})

		It("should fall back to the body hint", func() {
			body := []byte(`{"error":{"message":"slow down","retryAfterSeconds":2.5}}`)
			err := remote.NewHTTPError(http.StatusConflict, http.Header{}, body)
			Expect(err.Code).To(Equal(remote.CodeZoneBusy))
			Expect(err.RetryAfter).To(Equal(2500 * time.Millisecond))
			Expect(err.Message).To(Equal("slow down"))
		})

		It("should prefer the header over the body", func() {
			header := http.Header{}
			header.Set("Retry-After", "3")
			body := []byte(`{"error":{"retryAfterSeconds":60}}`)
			err := remote.NewHTTPError(http.StatusTooManyRequests, header, body)
			Expect(err.RetryAfter).To(Equal(3 * time.Second))
		})

		DescribeTable("caps huge retry delays instead of overflowing",
			func(retryAfter string, body string) {
				header := http.Header{}
				if retryAfter != "" {
					header.Set("Retry-After", retryAfter)
				}
				err := remote.NewHTTPError(http.StatusServiceUnavailable, header, []byte(body))
				Expect(err.RetryAfter).To(Equal(remote.MaxRetryAfter))
			},
			Entry("header seconds", "9223372036", ""),
			Entry("header date", time.Now().AddDate(200, 0, 0).UTC().Format(http.TimeFormat), ""),
			Entry("body seconds", "", `{"error":{"retryAfterSeconds":1e300}}`),
		)

		It("should ignore bodies that are not JSON", func() {
			err := remote.NewHTTPError(http.StatusBadRequest, http.Header{}, []byte("<html>nope</html>"))
			Expect(err.Message).To(Equal("Bad Request"))
			Expect(err.RetryAfter).To(BeZero())
		})

		It("should format the error message", func() {
			err := remote.NewHTTPError(http.StatusNotFound, http.Header{}, nil)
			Expect(err.Error()).To(Equal("remote UnknownItem (HTTP 404): Not Found"))
		})
	})

	Describe("NewNetworkError", func() {
		It("should wrap the transport error", func() {
			cause := errors.New("connection reset")
			err := remote.NewNetworkError(cause)
			Expect(err.Code).To(Equal(remote.CodeNetworkFailure))
			Expect(errors.Is(err, cause)).To(BeTrue())
			Expect(err.Error()).To(Equal("remote NetworkFailure: connection reset"))
		})
	})

	Describe("CodeOf", func() {
		It("should find wrapped errors", func() {
			err := fmt.Errorf("page: %w", &remote.Error{Code: remote.CodeZoneBusy})
			Expect(remote.CodeOf(err)).To(Equal(remote.CodeZoneBusy))
			Expect(remote.CodeOf(errors.New("plain"))).To(BeZero())
		})

		It("should report not found", func() {
			Expect(remote.IsNotFound(&remote.Error{Code: remote.CodeUnknownItem})).To(BeTrue())
			Expect(remote.IsNotFound(&remote.Error{Code: remote.CodeZoneBusy})).To(BeFalse())
		})
	})

	Describe("Code", func() {
		It("should have readable names", func() {
			Expect(remote.CodeRequestRateLimited.String()).To(Equal("RequestRateLimited"))
			Expect(remote.Code(99).String()).To(Equal("Code(99)"))
		})
	})
})
