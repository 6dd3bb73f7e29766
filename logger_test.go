package cmdbuf

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// captureLogs routes cmdbuf logging into a buffer for the rest of the test.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	return &buf
}

func TestNopHandler(t *testing.T) {
	var h slog.Handler = nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("device", "d")}).(nopHandler); !ok {
		t.Error("nopHandler.WithAttrs() did not return a nopHandler")
	}
	if _, ok := h.WithGroup("cmdbuf").(nopHandler); !ok {
		t.Error("nopHandler.WithGroup() did not return a nopHandler")
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) left a nil logger")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) produced an enabled logger")
	}
}

func TestHandleErrorLogsWarning(t *testing.T) {
	buf := captureLogs(t, slog.LevelWarn)

	dev := NewDevice(WithLabel("log-test"))
	dev.HandleError(ErrOpenPass)

	out := buf.String()
	for _, want := range []string{"level=WARN", "device=log-test", "kind=Validation"} {
		if !strings.Contains(out, want) {
			t.Errorf("HandleError() logged %q, missing %q", out, want)
		}
	}
}

func TestCommandBufferLifecycleLogging(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	d := newTestDevice(t)
	cb, _ := recordedTriangle(t, d)
	if err := d.Queue().Submit(cb); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	cb.Release()

	out := buf.String()
	for _, want := range []string{
		"command buffer finished",
		"label=triangle",
		"commands=7",
		"command buffer submitted",
		"command buffer released",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestSilentByDefault(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	SetLogger(nil)

	// Recording with failures must not reach slog.Default.
	var buf bytes.Buffer
	prevDefault := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prevDefault) })
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	d := newTestDevice(t)
	b := d.CreateCommandBufferBuilder("silent")
	_ = b.BeginComputePass()
	if _, err := b.GetResult(); err == nil {
		t.Fatal("GetResult() succeeded with an open pass")
	}
	if buf.Len() != 0 {
		t.Errorf("default logger received output: %s", buf.String())
	}
}

func TestLoggerConcurrentWithRecording(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	d := newTestDevice(t)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b := d.CreateCommandBufferBuilder("concurrent")
			_ = b.BeginComputePass()
			_ = b.EndComputePass()
			if cb, err := b.GetResult(); err == nil {
				cb.Release()
			}
		}()
		go func() {
			defer wg.Done()
			SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
			SetLogger(nil)
		}()
	}
	wg.Wait()
}

func BenchmarkRecordWithDisabledLogging(b *testing.B) {
	d := NewDevice()
	b.ReportAllocs()
	for b.Loop() {
		builder := d.CreateCommandBufferBuilder("bench")
		_ = builder.BeginComputePass()
		_ = builder.EndComputePass()
		cb, err := builder.GetResult()
		if err != nil {
			b.Fatal(err)
		}
		cb.Release()
	}
}
