package cmdbuf

import (
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/cmdbuf/command"
)

func recordedTriangle(t *testing.T, d *Device) (*CommandBuffer, *renderFixture) {
	t.Helper()
	f := newRenderFixture(t, d, 1)
	b := d.CreateCommandBufferBuilder("triangle")
	f.recordTriangle(b)
	cb, err := b.GetResult()
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	return cb, f
}

func TestReplayOrder(t *testing.T) {
	d := newTestDevice(t)
	cb, _ := recordedTriangle(t, d)
	defer cb.Release()

	want := []command.ID{
		command.BeginRenderPass,
		command.BeginRenderSubpass,
		command.SetRenderPipeline,
		command.SetVertexBuffers,
		command.DrawArrays,
		command.EndRenderSubpass,
		command.EndRenderPass,
	}
	for pass := range 2 {
		var got []command.ID
		err := cb.Replay(func(c Command) error {
			got = append(got, c.ID())
			return nil
		})
		if err != nil {
			t.Fatalf("Replay() error = %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("pass %d: Replay() yielded %v, want %v", pass, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("pass %d: command %d = %v, want %v", pass, i, got[i], want[i])
			}
		}
	}
	if cb.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", cb.Len(), len(want))
	}
}

func TestReplayStopsAtError(t *testing.T) {
	d := newTestDevice(t)
	cb, _ := recordedTriangle(t, d)
	defer cb.Release()

	stop := errors.New("stop")
	n := 0
	err := cb.Replay(func(c Command) error {
		n++
		if c.ID() == command.SetVertexBuffers {
			vb, ok := c.(*VertexBuffers)
			if !ok || len(vb.Buffers) != 1 || vb.Buffers[0].Label() != "vertices" {
				t.Errorf("SetVertexBuffers decoded as %#v", c)
			}
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("Replay() error = %v, want %v", err, stop)
	}
	if n != 4 {
		t.Errorf("Replay() visited %d commands, want 4", n)
	}

	// The stream is still complete after an aborted replay.
	total := 0
	_ = cb.Replay(func(Command) error { total++; return nil })
	if total != cb.Len() {
		t.Errorf("second Replay() visited %d commands, want %d", total, cb.Len())
	}
}

func TestConcurrentReplay(t *testing.T) {
	d := newTestDevice(t)
	cb, _ := recordedTriangle(t, d)
	defer cb.Release()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := 0
			if err := cb.Replay(func(Command) error { n++; return nil }); err != nil {
				t.Errorf("Replay() error = %v", err)
			}
			if n != cb.Len() {
				t.Errorf("Replay() visited %d commands, want %d", n, cb.Len())
			}
		}()
	}
	wg.Wait()
}

func TestDumpJSON(t *testing.T) {
	d := newTestDevice(t)
	cb, _ := recordedTriangle(t, d)
	defer cb.Release()

	data, err := cb.DumpJSON()
	if err != nil {
		t.Fatalf("DumpJSON() error = %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`"Label":"triangle"`,
		`"Op":"BeginRenderPass"`,
		`"Op":"DrawArrays"`,
		`"Buffer":"vertices"`,
		`"VertexCount":3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("DumpJSON() = %s, missing %s", out, want)
		}
	}
}

func TestSubmitExecutesOnBackend(t *testing.T) {
	backend := NewNullBackend()
	d := newTestDevice(t, WithBackend(backend))
	cb, _ := recordedTriangle(t, d)
	defer cb.Release()

	if err := d.Queue().Submit(cb, cb); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := backend.Executed(); got != 2 {
		t.Errorf("Executed() = %d, want 2", got)
	}
	if got := backend.Count(command.DrawArrays); got != 2 {
		t.Errorf("Count(DrawArrays) = %d, want 2", got)
	}
	if got := backend.Count(command.Dispatch); got != 0 {
		t.Errorf("Count(Dispatch) = %d, want 0", got)
	}
	if got := d.Queue().Submitted(); got != 2 {
		t.Errorf("Submitted() = %d, want 2", got)
	}
}

func TestSubmitRejectsFrozenSinceRecording(t *testing.T) {
	backend := NewNullBackend()
	var rec errorRecorder
	d := newTestDevice(t, WithBackend(backend), rec.option())
	buf := mustBuffer(t, d, 64, gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst, gputypes.BufferUsageCopyDst)

	b := d.CreateCommandBufferBuilder("transition")
	_ = b.TransitionBufferUsage(buf, gputypes.BufferUsageCopySrc)
	cb, err := b.GetResult()
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	defer cb.Release()

	if got := cb.TransitionedBuffers(); len(got) != 1 || got[0] != buf {
		t.Errorf("TransitionedBuffers() = %v, want [buf]", got)
	}
	if err := cb.ValidateResourceUsagesImmediate(); err != nil {
		t.Errorf("ValidateResourceUsagesImmediate() error = %v", err)
	}

	if err := buf.FreezeUsage(gputypes.BufferUsageCopySrc); err != nil {
		t.Fatalf("FreezeUsage() error = %v", err)
	}
	good, _ := recordedTriangle(t, d)
	defer good.Release()

	err = d.Queue().Submit(good, cb)
	if !errors.Is(err, ErrResourceFrozenSinceRecording) {
		t.Fatalf("Submit() error = %v, want ErrResourceFrozenSinceRecording", err)
	}
	if KindOf(err) != KindSubmission {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindSubmission)
	}
	if got := backend.Executed(); got != 0 {
		t.Errorf("Executed() = %d, want 0", got)
	}
	if len(rec.errs) != 1 {
		t.Errorf("error callback called %d times, want 1", len(rec.errs))
	}
}

func TestSubmitInvalidBuffers(t *testing.T) {
	d := newTestDevice(t)
	cb, _ := recordedTriangle(t, d)

	if err := d.Queue().Submit(nil); !errors.Is(err, ErrNilCommandBuffer) {
		t.Errorf("Submit(nil) error = %v, want ErrNilCommandBuffer", err)
	}

	cb.Release()
	if err := d.Queue().Submit(cb); !errors.Is(err, ErrCommandBufferReleased) {
		t.Errorf("Submit(released) error = %v, want ErrCommandBufferReleased", err)
	}
	if err := cb.Replay(func(Command) error { return nil }); !errors.Is(err, ErrCommandBufferReleased) {
		t.Errorf("Replay(released) error = %v, want ErrCommandBufferReleased", err)
	}
	if got := d.Queue().Submitted(); got != 0 {
		t.Errorf("Submitted() = %d, want 0", got)
	}
}
