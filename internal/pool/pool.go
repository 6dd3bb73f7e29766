// Package pool runs independent jobs on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue
// is empty, so a few slow jobs do not leave the other workers idle.
package pool

import (
	"runtime"
	"sync"
)

// Job is a unit of work. Its error is collected by Run.
type Job func() error

// Pool is a pool of worker goroutines. It is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	// wake nudges blocked workers to look for work to steal.
	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	// mu orders queue sends before Close; closed is set once under mu.
	mu     sync.RWMutex
	closed bool
}

// New starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		wake:    make(chan struct{}, workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
		default:
			if fn := p.steal(id); fn != nil {
				fn()
				continue
			}
			select {
			case <-p.done:
				drain(own)
				return
			case fn := <-own:
				fn()
			case <-p.wake:
			}
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// Run distributes jobs round-robin and waits for all of them. The returned
// slice holds each job's error at the job's index. On a closed pool the
// jobs run on the calling goroutine.
func (p *Pool) Run(jobs []Job) []error {
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		fn := func() {
			defer wg.Done()
			errs[i] = job()
		}
		if !p.submit(i%p.workers, fn) {
			fn()
			continue
		}
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	wg.Wait()
	return errs
}

// submit queues fn on queue q. It reports false once the pool is closed.
func (p *Pool) submit(q int, fn func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.queues[q] <- fn
	return true
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return p.workers }

// Close stops the pool after the queued jobs have run. It is safe to call
// more than once, and concurrently with Run.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}
