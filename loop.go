package framejob

import (
	"context"
	"sync"
	"time"
)

// Routine is a lazily evaluated sequence that a Loop advances once per tick.
// Next returns true while the routine wants to be called again on a later
// tick, and false once it's finished.
//
// A routine that also has an `Err() error` method has its error collected by
// the loop when it finishes.
type Routine interface {
	Next() bool
}

// RoutineFunc adapts a function to a Routine.
type RoutineFunc func() bool

// Next calls f.
func (f RoutineFunc) Next() bool {
	return f()
}

// Loop is a single-threaded cooperative scheduler. Every tick it advances each
// of its routines by one step, in the order they were posted.
//
// Everything a loop drives runs on whichever Goroutine calls Tick (or Run),
// so routines never race each other and are free to touch state owned by that
// Goroutine.
type Loop struct {
	// Errors are errors from routines that finished with one. Only access it
	// from the loop's Goroutine.
	Errors []error

	// Interval is the time between ticks used by Run and RunUntilIdle. It's
	// read on every tick, so it can be changed from the loop's Goroutine while
	// running.
	//
	// Defaults to 16ms.
	Interval time.Duration

	// NumTicks is the number of ticks that have been run.
	NumTicks int64

	log      LoggerInterface
	mu       sync.Mutex
	posted   []Routine
	routines []Routine
}

// NewLoop initializes a new Loop.
func NewLoop(log LoggerInterface) *Loop {
	return &Loop{
		Interval: 16 * time.Millisecond,
		log:      log,
	}
}

// Len returns the number of routines that haven't finished yet, including ones
// that were posted but haven't been picked up by a tick. Only call it from
// the loop's Goroutine.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.routines) + len(l.posted)
}

// Post adds a routine to the loop. It's safe to call from any Goroutine. The
// routine is first advanced on the next tick.
func (l *Loop) Post(r Routine) {
	l.mu.Lock()
	l.posted = append(l.posted, r)
	l.mu.Unlock()
}

// Run ticks the loop every Interval until ctx is done, then returns its error.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, false)
}

// RunUntilIdle is like Run, except that it also returns nil as soon as no
// routines are left.
func (l *Loop) RunUntilIdle(ctx context.Context) error {
	return l.run(ctx, true)
}

// Tick advances every routine by one step and returns the number of routines
// still pending afterwards.
//
// If a routine panics, it's dropped from the loop and the panic is propagated
// to the caller. Routines that were already advanced on this tick keep their
// progress, and the ones that weren't reached stay in the loop.
func (l *Loop) Tick() int {
	l.mu.Lock()
	l.routines = append(l.routines, l.posted...)
	l.posted = nil
	l.mu.Unlock()

	l.NumTicks++

	routines := l.routines
	pending := make([]Routine, 0, len(routines))

	i := 0
	defer func() {
		if r := recover(); r != nil {
			l.routines = append(pending, routines[i+1:]...)
			panic(r)
		}
	}()

	for ; i < len(routines); i++ {
		r := routines[i]

		if r.Next() {
			pending = append(pending, r)
			continue
		}

		if errRoutine, ok := r.(interface{ Err() error }); ok {
			if err := errRoutine.Err(); err != nil {
				l.log.Errorf("loop: Routine finished with error: %v", err)
				l.Errors = append(l.Errors, err)
			}
		}
	}

	l.routines = pending
	return len(l.routines)
}

//
// Private
//

func (l *Loop) run(ctx context.Context, untilIdle bool) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		l.Tick()

		if untilIdle && l.Len() < 1 {
			l.log.Debugf("loop: Idle after %v tick(s)", l.NumTicks)
			return nil
		}

		interval := l.Interval
		if interval <= 0 {
			interval = 16 * time.Millisecond
		}
		timer.Reset(interval)
	}
}
