package framejob

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// ErrJobStarted is returned when Start is called on a job that's already been
// started. Jobs are not reusable.
var ErrJobStarted = errors.New("job already started")

// Job is a piece of blocking work that runs off the polling Goroutine, paired
// with a hook that runs back on the polling Goroutine once the work is done.
//
// Jobs must be created with NewJob. Begin work with Start, then either call Update once per tick or hand the
// sequence returned by WaitFor to a Loop:
//
//	j := NewJob("fetch", fetch, func() { applyResult() })
//	if err := j.Start(); err != nil { ... }
//	loop.Post(j.WaitFor())
//
// F must only touch state private to the job (results it'll hand over to
// OnFinished). OnFinished is free to touch state owned by the polling
// Goroutine.
type Job struct {
	// Duration is how long F took to run. Only valid once the job is done.
	Duration time.Duration

	// F is the job's work body. It runs on a Goroutine supplied by Runner and
	// receives a context that's cancelled when Abort is called.
	F func(ctx context.Context) error

	// ID uniquely identifies the job.
	ID string

	// Name is a human-readable name for the job used in logging.
	Name string

	// OnFinished is invoked by Update on the polling Goroutine the first time
	// it observes that the job is done. Optional.
	OnFinished func()

	// Runner is the execution substrate F is submitted to.
	//
	// Defaults to DefaultRunner.
	Runner Runner

	cancel   context.CancelFunc
	ctx      context.Context
	err      error
	gate     *Gate
	reported bool
	started  atomic.Bool
}

// NewJob initializes a new job. The job doesn't do anything until Start is
// called.
func NewJob(name string, f func(ctx context.Context) error, onFinished func()) *Job {
	ctx, cancel := context.WithCancel(context.Background())

	return &Job{
		F:          f,
		ID:         uuid.NewString(),
		Name:       name,
		OnFinished: onFinished,

		cancel: cancel,
		ctx:    ctx,
		gate:   NewGate(),
	}
}

// Abort requests that the job's work be stopped by cancelling the context
// passed to F. It's safe to call from any Goroutine, any number of times.
//
// Cancellation is cooperative: it's up to F to notice it, and Abort returns
// without waiting for that to happen. If the job hasn't begun executing yet,
// F is skipped entirely and the job finishes with an error wrapping
// context.Canceled. Either way, the job still becomes done.
func (j *Job) Abort() {
	j.cancel()
}

// Done returns a channel that's closed once the job's work is finished. It's
// meant for callers outside a frame loop, like tests or shutdown paths.
func (j *Job) Done() <-chan struct{} {
	return j.gate.Done()
}

// Err returns the error produced by F, which includes any panic it raised.
// It's nil until the job is done.
func (j *Job) Err() error {
	if !j.gate.IsSet() {
		return nil
	}
	return j.err
}

// IsDone returns whether the job's work has finished. It's safe to call from
// any Goroutine and never blocks.
func (j *Job) IsDone() bool {
	return j.gate.IsSet()
}

// Start submits the job's work to its runner and returns immediately.
//
// Returns ErrJobStarted if the job was already started.
func (j *Job) Start() error {
	if !j.started.CompareAndSwap(false, true) {
		return xerrors.Errorf("error starting job '%s': %w", j.Name, ErrJobStarted)
	}

	runner := j.Runner
	if runner == nil {
		runner = DefaultRunner
	}

	runner.Submit(j.run)
	return nil
}

// Update must only be called from the polling Goroutine.
//
// It returns true exactly once: on the first call after the job's work is
// done, after invoking OnFinished. Any error from the work body is returned
// alongside that true. Every other call returns false and a nil error.
func (j *Job) Update() (bool, error) {
	if j.reported || !j.gate.IsSet() {
		return false, nil
	}

	j.reported = true

	if j.OnFinished != nil {
		j.OnFinished()
	}

	return true, j.err
}

// WaitFor returns a sequence that a cooperative scheduler advances once per
// tick. Each advance calls Update, and the sequence ends on the tick where
// Update first returns true.
func (j *Job) WaitFor() *Waiter {
	return &Waiter{job: j}
}

// Waiter is the sequence of pending signals returned by Job.WaitFor. It
// implements Routine.
type Waiter struct {
	err      error
	finished bool
	job      *Job
}

// Err returns the job's error once the sequence has ended.
func (w *Waiter) Err() error {
	return w.err
}

// Job returns the job being waited on.
func (w *Waiter) Job() *Job {
	return w.job
}

// Next advances the sequence by one tick. It returns true while the job is
// still pending, meaning that the caller should come back on a later tick. It
// returns false from the tick where the job's completion was observed
// onwards.
//
// A waiter also ends if some other caller already consumed the job's
// completion through Update.
func (w *Waiter) Next() bool {
	if w.finished {
		return false
	}

	done, err := w.job.Update()
	if !done && !w.job.reported {
		return true
	}

	if done {
		w.err = err
	} else {
		w.err = w.job.err
	}

	w.finished = true
	return false
}

//
// Private
//

// run is what's submitted to the runner. It always sets the gate, even if F
// panics.
func (j *Job) run() {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			j.err = panicError(r)
		}

		j.Duration = time.Since(start)
		j.cancel()
		j.gate.Set()
	}()

	if err := j.ctx.Err(); err != nil {
		j.err = xerrors.Errorf("job aborted before running: %w", err)
		return
	}

	if j.F == nil {
		return
	}

	if err := j.F(j.ctx); err != nil {
		j.err = err
	}
}

func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return xerrors.Errorf("job panicked: %w", err)
	}
	return xerrors.Errorf("job panicked: %v", r)
}
