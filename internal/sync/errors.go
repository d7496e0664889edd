package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetReleased ends a chain whose target was released while it ran.
	ErrTargetReleased = errors.New("sync target released")

	// ErrUnknownRecordType is returned for a record type with no registered target.
	ErrUnknownRecordType = errors.New("unknown record type")

	// ErrEngineClosed is returned by engine operations after Close.
	ErrEngineClosed = errors.New("sync engine closed")
)

// FetchError is the terminal error of a fetch chain.
type FetchError struct {
	RecordType string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.RecordType, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
