// Package retry decides what a fetch chain does with a page completion: keep
// going, wait and re-issue, or give up.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/stacklok/recordsync/internal/remote"
)

// DefaultDelay is used when a transient failure carries no suggested delay.
const DefaultDelay = 5 * time.Second

// Kind identifies the variant held by an Outcome.
type Kind int

const (
	// KindSuccess means the page completed without error.
	KindSuccess Kind = iota
	// KindRetry means the page should be re-issued after Outcome.Delay.
	KindRetry
	// KindFatal means the chain must stop with Outcome.Err.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetry:
		return "retry"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the classification of a page completion.
type Outcome struct {
	Kind  Kind
	Delay time.Duration
	Err   error
}

// Success returns the success outcome.
func Success() Outcome {
	return Outcome{Kind: KindSuccess}
}

// RetryAfter returns an outcome asking for a retry after d.
func RetryAfter(d time.Duration) Outcome {
	return Outcome{Kind: KindRetry, Delay: d}
}

// Fatal returns an outcome that ends the chain with err.
func Fatal(err error) Outcome {
	return Outcome{Kind: KindFatal, Err: err}
}

// transientCodes are the remote error codes that are worth retrying.
var transientCodes = map[remote.Code]struct{}{
	remote.CodeRequestRateLimited: {},
	remote.CodeServiceUnavailable: {},
	remote.CodeZoneBusy:           {},
	remote.CodeNetworkUnavailable: {},
	remote.CodeNetworkFailure:     {},
}

// Timer is the handle returned by ScheduleRetry. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Scheduler arms one-shot retries.
type Scheduler interface {
	ScheduleRetry(after time.Duration, op func()) Timer
}

// TimerScheduler schedules retries on the runtime timer.
type TimerScheduler struct{}

// ScheduleRetry runs op once after the given delay.
func (TimerScheduler) ScheduleRetry(after time.Duration, op func()) Timer {
	return ScheduleRetry(after, op)
}

// ScheduleRetry arms a one-shot timer that runs op after the given delay.
func ScheduleRetry(after time.Duration, op func()) *time.Timer {
	return time.AfterFunc(after, op)
}

// Classifier maps page completion errors to outcomes and schedules retries.
// It holds no per-chain state and is safe for concurrent use.
type Classifier struct {
	// DefaultDelay applies when the service did not suggest one.
	DefaultDelay time.Duration

	scheduler Scheduler
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithDefaultDelay overrides DefaultDelay.
func WithDefaultDelay(d time.Duration) Option {
	return func(c *Classifier) {
		c.DefaultDelay = d
	}
}

// WithScheduler replaces the timer-backed scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Classifier) {
		c.scheduler = s
	}
}

// NewClassifier creates a classifier with the given options.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		DefaultDelay: DefaultDelay,
		scheduler:    TimerScheduler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.DefaultDelay <= 0 {
		c.DefaultDelay = DefaultDelay
	}
	return c
}

// Classify maps err to an outcome. A nil error is success. Context
// cancellation is always fatal.
func (c *Classifier) Classify(err error) Outcome {
	if err == nil {
		return Success()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Fatal(err)
	}

	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		if _, ok := transientCodes[remoteErr.Code]; ok {
			return RetryAfter(c.delay(remoteErr.RetryAfter))
		}
		return Fatal(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return RetryAfter(c.delay(0))
	}
	return Fatal(err)
}

// IsTransient reports whether err would be retried.
func (c *Classifier) IsTransient(err error) bool {
	return c.Classify(err).Kind == KindRetry
}

// ScheduleRetry arms a one-shot retry through the configured scheduler.
func (c *Classifier) ScheduleRetry(after time.Duration, op func()) Timer {
	return c.scheduler.ScheduleRetry(after, op)
}

func (c *Classifier) delay(suggested time.Duration) time.Duration {
	if suggested > 0 {
		return suggested
	}
	return c.DefaultDelay
}
