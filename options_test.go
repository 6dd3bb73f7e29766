package cmdbuf

import (
	"testing"

	"github.com/cockroachdb/errors"
)

// TestNewDeviceDefault tests that NewDevice uses a NullBackend and the naga
// compiler by default.
func TestNewDeviceDefault(t *testing.T) {
	d := NewDevice()
	if d == nil {
		t.Fatal("NewDevice returned nil")
	}
	if _, ok := d.Backend().(*NullBackend); !ok {
		t.Errorf("Backend() = %T, want *NullBackend", d.Backend())
	}
	if d.compiler == nil {
		t.Error("compiler is nil, want the default compiler")
	}
	if d.Label() != "" {
		t.Errorf("Label() = %q, want empty", d.Label())
	}
	if d.Queue() == nil {
		t.Error("Queue() returned nil")
	}
}

type countingBackend struct {
	executed int
}

func (c *countingBackend) Execute(*CommandBuffer) error {
	c.executed++
	return nil
}

func TestWithBackend(t *testing.T) {
	backend := &countingBackend{}
	d := newTestDevice(t, WithBackend(backend))
	if d.Backend() != backend {
		t.Fatalf("Backend() = %v, want custom backend", d.Backend())
	}

	cb, _ := recordedTriangle(t, d)
	defer cb.Release()
	if err := d.Queue().Submit(cb); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if backend.executed != 1 {
		t.Errorf("custom backend executed %d buffers, want 1", backend.executed)
	}
}

type failingBackend struct{}

var errDeviceLost = errors.New("device lost")

func (failingBackend) Execute(*CommandBuffer) error { return errDeviceLost }

func TestBackendErrorIsReported(t *testing.T) {
	var rec errorRecorder
	d := newTestDevice(t, WithBackend(failingBackend{}), rec.option())
	cb, _ := recordedTriangle(t, d)
	defer cb.Release()

	err := d.Queue().Submit(cb)
	if !errors.Is(err, errDeviceLost) {
		t.Fatalf("Submit() error = %v, want %v", err, errDeviceLost)
	}
	if len(rec.errs) != 1 {
		t.Errorf("error callback called %d times, want 1", len(rec.errs))
	}
	if d.Queue().Submitted() != 0 {
		t.Errorf("Submitted() = %d, want 0", d.Queue().Submitted())
	}
}

func TestWithShaderCompilerNilKeepsDefault(t *testing.T) {
	d := NewDevice(WithShaderCompiler(nil))
	if d.compiler == nil {
		t.Error("WithShaderCompiler(nil) cleared the compiler")
	}
}

func TestWithLabel(t *testing.T) {
	d := NewDevice(WithLabel("main"))
	if d.Label() != "main" {
		t.Errorf("Label() = %q, want %q", d.Label(), "main")
	}
}

// TestOptionsCombined checks that later options override earlier ones.
func TestOptionsCombined(t *testing.T) {
	first, second := &countingBackend{}, &countingBackend{}
	d := NewDevice(WithBackend(first), WithLabel("a"), WithBackend(second), WithLabel("b"))
	if d.Backend() != second {
		t.Error("Backend() is not the last backend passed")
	}
	if d.Label() != "b" {
		t.Errorf("Label() = %q, want %q", d.Label(), "b")
	}
}
