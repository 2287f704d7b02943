package shared_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobkit/internal/shared"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		context  string
		expected string
		isNil    bool
	}{
		{
			name:    "nil error",
			err:     nil,
			context: "some context",
			isNil:   true,
		},
		{
			name:     "simple error",
			err:      errors.New("original"),
			context:  "wrapper",
			expected: "wrapper: original",
		},
		{
			name:     "empty context",
			err:      errors.New("original"),
			context:  "",
			expected: "original",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shared.Wrap(tt.err, tt.context)
			if tt.isNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, result.Error())
			assert.True(t, errors.Is(result, tt.err))
		})
	}
}

func TestWrapf(t *testing.T) {
	base := errors.New("boom")
	err := shared.Wrapf(base, "job %d", 7)
	assert.EqualError(t, err, "job 7: boom")
	assert.ErrorIs(t, err, base)
	assert.Nil(t, shared.Wrapf(nil, "job %d", 7))
}

func TestKindOf(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name string
		err  error
		want shared.Kind
	}{
		{"nil", nil, shared.KindUnknown},
		{"plain error", cause, shared.KindUnknown},
		{"processing", shared.NewProcessingError("failed", cause), shared.KindProcessing},
		{"timeout", shared.NewTimeoutError("wait", time.Second), shared.KindTimeout},
		{"cancellation", shared.NewCancellationError("cancelled"), shared.KindCanceled},
		{"interruption", shared.NewInterruptionError("interrupted", cause), shared.KindInterrupted},
		{"rejection", shared.NewRejectionError("rejected"), shared.KindRejected},
		{"wrapped rejection", fmt.Errorf("outer: %w", shared.NewRejectionError("rejected")), shared.KindRejected},
		{"sentinel", shared.ErrTimeout, shared.KindTimeout},
		{
			"joined picks priority",
			errors.Join(shared.NewProcessingError("p", nil), shared.NewCancellationError("c")),
			shared.KindCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shared.KindOf(tt.err))
			assert.True(t, shared.HasKind(tt.err, tt.want))
		})
	}
}

func TestProcessingError_Facets(t *testing.T) {
	tests := []struct {
		name                                     string
		err                                      *shared.ProcessingError
		timeout, cancellation, interrupt, reject bool
	}{
		{"processing", shared.NewProcessingError("x", nil), false, false, false, false},
		{"timeout", shared.NewTimeoutError("x", time.Millisecond), true, false, false, false},
		{"cancellation", shared.NewCancellationError("x"), false, true, false, false},
		{"interruption", shared.NewInterruptionError("x", nil), false, false, true, false},
		{"rejection", shared.NewRejectionError("x"), false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.timeout, tt.err.IsTimeout())
			assert.Equal(t, tt.cancellation, tt.err.IsCancellation())
			assert.Equal(t, tt.interrupt, tt.err.IsInterruption())
			assert.Equal(t, tt.reject, tt.err.IsRejection())
		})
	}
}

func TestProcessingError_ContextInfo(t *testing.T) {
	err := shared.NewCancellationError("job cancelled").
		WithContextInfo("job", "nightly").
		WithContextInfo("attempt", "2")

	assert.Equal(t, "nightly", err.ContextInfo("job"))
	assert.Equal(t, "job cancelled [attempt=2, job=nightly]", err.Error())
}

func TestProcessingError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := shared.NewProcessingError("write failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, shared.ErrProcessing)
	assert.NotErrorIs(t, err, shared.ErrCanceled)
}

func TestMarkKind(t *testing.T) {
	base := errors.New("queue closed")

	marked := shared.MarkKind(base, shared.KindRejected)
	assert.Equal(t, shared.KindRejected, shared.KindOf(marked))
	assert.ErrorIs(t, marked, base)

	// idempotent
	assert.Equal(t, marked, shared.MarkKind(marked, shared.KindRejected))

	assert.Equal(t, shared.ErrTimeout, shared.MarkKind(nil, shared.KindTimeout))
	assert.Equal(t, base, shared.MarkKind(base, shared.KindUnknown))
}

func TestAsProcessingError(t *testing.T) {
	_, ok := shared.AsProcessingError(errors.New("plain"))
	assert.False(t, ok)

	pe, ok := shared.AsProcessingError(shared.Wrap(shared.NewInterruptionError("x", nil), "outer"))
	require.True(t, ok)
	assert.True(t, pe.IsInterruption())
}

func TestPanicError(t *testing.T) {
	err := &shared.PanicError{Value: "boom"}
	assert.Equal(t, "panic: boom", err.Error())
	assert.Equal(t, shared.KindUnknown, shared.KindOf(err))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Processing", shared.KindProcessing.String())
	assert.Equal(t, "Rejected", shared.KindRejected.String())
	assert.Equal(t, "Unknown", shared.Kind(99).String())
}
