package pool

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		workers int
		want    int
	}{
		{4, 4},
		{1, 1},
		{0, runtime.GOMAXPROCS(0)},
		{-3, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		p := New(tt.workers)
		if got := p.Workers(); got != tt.want {
			t.Errorf("New(%d).Workers() = %d, want %d", tt.workers, got, tt.want)
		}
		p.Close()
	}
}

func TestRun(t *testing.T) {
	p := New(4)
	defer p.Close()

	var ran atomic.Int64
	errOdd := errors.New("odd")
	jobs := make([]Job, 100)
	for i := range jobs {
		jobs[i] = func() error {
			ran.Add(1)
			if i%2 == 1 {
				return errOdd
			}
			return nil
		}
	}

	errs := p.Run(jobs)
	if got := ran.Load(); got != 100 {
		t.Errorf("ran %d jobs, want 100", got)
	}
	for i, err := range errs {
		if want := i%2 == 1; (err != nil) != want {
			t.Errorf("errs[%d] = %v", i, err)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	p := New(2)
	defer p.Close()
	if errs := p.Run(nil); len(errs) != 0 {
		t.Errorf("Run(nil) = %v, want empty", errs)
	}
}

// TestRunStealsWork checks that one slow job does not serialise the jobs
// queued behind it on the same worker.
func TestRunStealsWork(t *testing.T) {
	p := New(2)
	defer p.Close()

	release := make(chan struct{})
	var fast atomic.Int64
	jobs := []Job{
		func() error { <-release; return nil },
	}
	for range 9 {
		jobs = append(jobs, func() error {
			if fast.Add(1) == 9 {
				close(release)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		p.Run(jobs)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not finish; queued jobs were not stolen")
	}
}

func TestRunAfterClose(t *testing.T) {
	p := New(2)
	p.Close()
	p.Close()

	var ran atomic.Int64
	errs := p.Run([]Job{
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); return nil },
	})
	if len(errs) != 2 || ran.Load() != 2 {
		t.Errorf("Run() after Close ran %d jobs, want 2", ran.Load())
	}
}

func TestCloseDuringRun(t *testing.T) {
	for range 200 {
		p := New(2)
		var ran atomic.Int64
		jobs := make([]Job, 64)
		for i := range jobs {
			jobs[i] = func() error { ran.Add(1); return nil }
		}

		finished := make(chan struct{})
		go func() {
			p.Run(jobs)
			close(finished)
		}()
		p.Close()

		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not return after a concurrent Close")
		}
		if got := ran.Load(); got != int64(len(jobs)) {
			t.Fatalf("ran %d jobs, want %d", got, len(jobs))
		}
	}
}
