// Package shared contains the canonical job failure type and error utilities.
package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel errors for each failure facet. A *ProcessingError matches the
// sentinel of its kind through errors.Is.
var (
	// ErrProcessing indicates a generic failure of a unit of work
	ErrProcessing = errors.New("processing failed")

	// ErrTimeout indicates that waiting for a job elapsed without completion
	ErrTimeout = errors.New("timed out")

	// ErrCanceled indicates that the job was cancelled
	ErrCanceled = errors.New("cancelled")

	// ErrInterrupted indicates that the executing goroutine was interrupted
	ErrInterrupted = errors.New("interrupted")

	// ErrRejected indicates that the job manager refused new work
	ErrRejected = errors.New("rejected")
)

// Kind represents the facet of a job failure.
type Kind int

const (
	// KindUnknown represents an error that is not a job failure
	KindUnknown Kind = iota
	// KindProcessing represents a failure raised by the unit of work itself
	KindProcessing
	// KindTimeout represents an elapsed wait
	KindTimeout
	// KindCanceled represents a cancelled future
	KindCanceled
	// KindInterrupted represents an interruption not caused by an explicit cancel
	KindInterrupted
	// KindRejected represents work refused by a shut down manager
	KindRejected
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindProcessing:
		return "Processing"
	case KindTimeout:
		return "Timeout"
	case KindCanceled:
		return "Canceled"
	case KindInterrupted:
		return "Interrupted"
	case KindRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

var kindToSentinel = map[Kind]error{
	KindProcessing:  ErrProcessing,
	KindTimeout:     ErrTimeout,
	KindCanceled:    ErrCanceled,
	KindInterrupted: ErrInterrupted,
	KindRejected:    ErrRejected,
}

// kindPriorities defines the deterministic order for error classification.
// Specific facets win over the generic processing kind.
var kindPriorities = []Kind{
	KindRejected,
	KindCanceled,
	KindTimeout,
	KindInterrupted,
	KindProcessing,
}

// ProcessingError is the canonical failure of a job. At most one of its
// facets (timeout, cancellation, interruption, rejection) is set; a zero
// facet set means a generic processing failure wrapping Err.
type ProcessingError struct {
	Kind Kind
	Msg  string
	Err  error

	info map[string]string
}

// NewProcessingError creates a generic processing failure caused by err.
func NewProcessingError(msg string, err error) *ProcessingError {
	return &ProcessingError{Kind: KindProcessing, Msg: msg, Err: err}
}

// NewTimeoutError reports that waiting elapsed after the given duration.
func NewTimeoutError(msg string, timeout time.Duration) *ProcessingError {
	return &ProcessingError{Kind: KindTimeout, Msg: fmt.Sprintf("%s [timeout=%s]", msg, timeout)}
}

// NewCancellationError reports a cancelled future.
func NewCancellationError(msg string) *ProcessingError {
	return &ProcessingError{Kind: KindCanceled, Msg: msg}
}

// NewInterruptionError reports an interruption, optionally caused by err.
func NewInterruptionError(msg string, err error) *ProcessingError {
	return &ProcessingError{Kind: KindInterrupted, Msg: msg, Err: err}
}

// NewRejectionError reports refused work.
func NewRejectionError(msg string) *ProcessingError {
	return &ProcessingError{Kind: KindRejected, Msg: msg}
}

func (e *ProcessingError) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if len(e.info) > 0 {
		keys := make([]string, 0, len(e.info))
		for k := range e.info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(e.info[k])
		}
		b.WriteByte(']')
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *ProcessingError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *ProcessingError) Is(target error) bool {
	return kindToSentinel[e.Kind] == target
}

// IsTimeout reports the timeout facet.
func (e *ProcessingError) IsTimeout() bool { return e.Kind == KindTimeout }

// IsCancellation reports the cancellation facet.
func (e *ProcessingError) IsCancellation() bool { return e.Kind == KindCanceled }

// IsInterruption reports the interruption facet.
func (e *ProcessingError) IsInterruption() bool { return e.Kind == KindInterrupted }

// IsRejection reports the rejection facet.
func (e *ProcessingError) IsRejection() bool { return e.Kind == KindRejected }

// WithContextInfo attaches a key/value pair rendered in Error().
// Returns the receiver for chaining.
func (e *ProcessingError) WithContextInfo(key, value string) *ProcessingError {
	if e.info == nil {
		e.info = make(map[string]string)
	}
	e.info[key] = value
	return e
}

// ContextInfo returns the attached value for key.
func (e *ProcessingError) ContextInfo(key string) string {
	return e.info[key]
}

// PanicError carries a recovered panic. It is never translated into a
// ProcessingError.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// KindOf returns the Kind of err by checking the chain against the sentinels
// in a deterministic priority order. Returns KindUnknown for nil and for
// errors that are not job failures.
//
// Example:
//
//	switch shared.KindOf(err) {
//	case shared.KindCanceled:
//	    // the future was cancelled
//	case shared.KindRejected:
//	    // the manager is shut down
//	}
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kindPriorities {
		if errors.Is(err, kindToSentinel[k]) {
			return k
		}
	}
	return KindUnknown
}

// HasKind reports whether the given error has the specified kind.
func HasKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// SentinelOf returns the sentinel error for the given Kind, or nil.
func SentinelOf(kind Kind) error {
	return kindToSentinel[kind]
}

// MarkKind wraps err with the sentinel of kind, preserving err in the chain.
// It is idempotent: an error already of that kind is returned unchanged.
func MarkKind(err error, kind Kind) error {
	sentinel := SentinelOf(kind)
	if err == nil {
		return sentinel
	}
	if sentinel == nil || KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// AsProcessingError extracts the first *ProcessingError in the chain.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Wrap wraps an error with additional context.
// It returns a new error that formats as "context: err".
// If err is nil, Wrap returns nil.
// If context is empty, returns the original error.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}
