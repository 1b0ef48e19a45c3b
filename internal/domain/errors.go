package domain

import (
	"errors"
	"fmt"
)

// ErrContainerNotFound is returned when the monitored container cannot be
// located. This is the only fatal startup condition in the pipeline.
var ErrContainerNotFound = errors.New("monitored container not found")

// TimestampFormatError reports a log line whose timestamp could not be parsed.
// Classification of that line is aborted; the pipeline continues.
type TimestampFormatError struct {
	Raw string
	Err error
}

func (e *TimestampFormatError) Error() string {
	return fmt.Sprintf("malformed log timestamp %q: %v", e.Raw, e.Err)
}

func (e *TimestampFormatError) Unwrap() error {
	return e.Err
}

// BackendError reports a Nexus call that completed but was rejected by the
// backend ({Success: false} envelope). It is always treated as non-fatal.
type BackendError struct {
	Verb    string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("nexus %s rejected: %s", e.Verb, e.Message)
}
