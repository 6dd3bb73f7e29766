package cmdbuf

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestSentinelsAreDistinct(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		other error
		kind  ErrorKind
	}{
		{"creation", ErrShaderCompilation, ErrInvalidDescriptor, KindCreation},
		{"recording", ErrPushConstantsOutOfRange, ErrNilArgument, KindRecording},
		{"validation", ErrFrozenUsage, ErrUsageNotAllowed, KindValidation},
		{"submission", ErrResourceFrozenSinceRecording, ErrCommandBufferReleased, KindSubmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.Wrapf(tt.err, "context %d", 1)
			if !errors.Is(err, tt.err) {
				t.Errorf("errors.Is(%v, %v) = false, want true", err, tt.err)
			}
			if errors.Is(err, tt.other) {
				t.Errorf("errors.Is(%v, %v) = true, want false", err, tt.other)
			}
			if got := KindOf(err); got != tt.kind {
				t.Errorf("KindOf(%v) = %v, want %v", err, got, tt.kind)
			}
		})
	}
}

func TestMarkAs(t *testing.T) {
	cause := errors.New("naga: unexpected token")
	err := markAs(errors.Wrap(cause, "compile"), ErrShaderCompilation)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if !errors.Is(err, ErrShaderCompilation) {
		t.Errorf("errors.Is(err, ErrShaderCompilation) = false, want true")
	}
	if got := KindOf(err); got != KindCreation {
		t.Errorf("KindOf() = %v, want %v", got, KindCreation)
	}
	if errors.Is(err, ErrDestroyed) {
		t.Error("errors.Is(err, ErrDestroyed) = true, want false")
	}
}
