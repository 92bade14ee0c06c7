package framejob

import (
	"sync"
	"sync/atomic"
)

// Pool is a Runner backed by a fixed number of worker Goroutines.
//
// Submit never blocks: submissions are appended to an unbounded queue that a
// feeder Goroutine moves over to the workers.
type Pool struct {
	concurrency  int
	log          LoggerInterface
	mu           sync.Mutex
	numCompleted int64
	numSubmitted int64
	queue        []func()
	running      bool
	wake         chan struct{}
	wg           sync.WaitGroup
}

// NewPool initializes a new pool at the given concurrency. It doesn't work
// anything until Start is called.
func NewPool(log LoggerInterface, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Pool{
		concurrency: concurrency,
		log:         log,
	}
}

// NumCompleted is the number of submitted functions that have finished
// running (including ones that panicked).
func (p *Pool) NumCompleted() int64 {
	return atomic.LoadInt64(&p.numCompleted)
}

// NumSubmitted is the number of functions that have been queued on the pool.
func (p *Pool) NumSubmitted() int64 {
	return atomic.LoadInt64(&p.numSubmitted)
}

// Start spins up the pool's worker Goroutines. Calling it on a pool that's
// already running does nothing.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.log.Debugf("pool: Starting at concurrency %v", p.concurrency)

	funcs := make(chan func(), p.concurrency)
	p.running = true
	p.wake = make(chan struct{}, 1)

	p.wg.Add(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go p.work(i, funcs)
	}

	p.wg.Add(1)
	go p.feed(funcs)
}

// Stop waits for all queued work to finish and then stops the workers.
//
// Calling Stop on a pool that isn't running does nothing, so it's safe to
// call multiple times.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	wake := p.wake
	p.mu.Unlock()

	signal(wake)

	p.log.Debugf("pool: Waiting for %v function(s) to be done",
		p.NumSubmitted()-p.NumCompleted())

	p.wg.Wait()
}

// Submit queues f to be run by one of the pool's workers.
//
// If the pool isn't running, f is run on its own Goroutine instead so that it
// still eventually executes.
func (p *Pool) Submit(f func()) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.log.Warnf("pool: Submitted to a stopped pool; running on a new Goroutine")
		go f()
		return
	}
	p.queue = append(p.queue, f)
	atomic.AddInt64(&p.numSubmitted, 1)
	wake := p.wake
	p.mu.Unlock()

	signal(wake)
}

//
// Private
//

// The feeder loop. It hands queued functions over to workers and closes the
// workers' channel once the pool is stopped and the queue is empty.
func (p *Pool) feed(funcs chan<- func()) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		batch := p.queue
		p.queue = nil
		stopping := !p.running
		wake := p.wake
		p.mu.Unlock()

		for _, f := range batch {
			funcs <- f
		}

		if len(batch) > 0 {
			continue
		}

		if stopping {
			close(funcs)
			return
		}

		<-wake
	}
}

// Nudges the feeder. The wake channel has a buffer of one so that a signal
// sent while the feeder is busy isn't lost.
func signal(wake chan struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}

// The work loop for a single worker Goroutine.
func (p *Pool) work(i int, funcs <-chan func()) {
	defer p.wg.Done()

	for f := range funcs {
		p.workFunc(i, f)
	}
}

func (p *Pool) workFunc(i int, f func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("pool: Worker %v recovered from panic: %v", i, r)
		}

		atomic.AddInt64(&p.numCompleted, 1)
	}()

	f()
}
