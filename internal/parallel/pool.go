// Package parallel runs CPU work in fixed-size groups across goroutines,
// the way a compute dispatch spreads invocations across workgroups.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed set of worker goroutines.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty, so uneven groups still finish together.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	// mu orders queue sends against Close: Dispatch holds it for reading
	// while it enqueues, Close takes it before closing done.
	mu sync.RWMutex
}

// NewPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

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
			p.drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func (p *Pool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue, or returns nil.
func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// Dispatch calls fn(lo, hi) for every group of groupSize consecutive
// indices in [0, n) and returns when all groups are done. The last group
// may be short. A closed pool runs the groups on the calling goroutine.
func (p *Pool) Dispatch(n, groupSize int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if groupSize <= 0 {
		groupSize = n
	}
	groups := (n + groupSize - 1) / groupSize

	p.mu.RLock()
	if !p.running.Load() {
		p.mu.RUnlock()
		for g := range groups {
			lo := g * groupSize
			fn(lo, min(lo+groupSize, n))
		}
		return
	}

	var pending sync.WaitGroup
	pending.Add(groups)
	for g := range groups {
		lo := g * groupSize
		hi := min(lo+groupSize, n)
		p.queues[g%p.workers] <- func() {
			defer pending.Done()
			fn(lo, hi)
		}
	}
	p.mu.RUnlock()
	pending.Wait()
}

// Close stops the workers after their queues drain. Close is safe to call
// more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return p.workers }
