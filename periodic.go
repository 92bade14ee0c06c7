package framejob

import (
	"time"
)

// Periodic is a Routine that starts a new job on a fixed interval and waits
// for it before scheduling the next one.
//
// Time spent processing a job counts against the interval, so a job that
// takes 300ms on a 1s interval is followed by a 700ms wait. If a job takes
// longer than the whole interval, a warning is logged and the next one starts
// right away.
type Periodic struct {
	// Interval returns the desired time between job starts. It's called again
	// on every iteration so that changes take effect without restarting the
	// routine.
	Interval func() time.Duration

	// Iterations is the number of jobs that have been run to completion.
	Iterations int

	// Log is used to report errors and falling behind.
	Log LoggerInterface

	// NewJob creates the job for each iteration. The routine starts the job
	// itself.
	NewJob func() *Job

	lastProcessing time.Duration
	nextAt         time.Time
	now            func() time.Time
	started        time.Time
	stopped        bool
	waiter         *Waiter
}

// NewPeriodic initializes a new Periodic routine.
func NewPeriodic(log LoggerInterface, interval func() time.Duration, newJob func() *Job) *Periodic {
	return &Periodic{
		Interval: interval,
		Log:      log,
		NewJob:   newJob,
		now:      time.Now,
	}
}

// Next advances the routine by one tick.
func (p *Periodic) Next() bool {
	if p.now == nil {
		p.now = time.Now
	}
	now := p.now()

	if p.waiter != nil {
		if p.waiter.Next() {
			return true
		}
		p.finishIteration(now)
	}

	if p.stopped {
		return false
	}

	if p.nextAt.IsZero() {
		p.nextAt = now.Add(p.wait())
	}

	if now.Before(p.nextAt) {
		return true
	}

	p.startIteration(now)
	return true
}

// Running returns whether a job is currently in flight.
func (p *Periodic) Running() bool {
	return p.waiter != nil
}

// Stop ends the routine. If a job is in flight, the routine ends once it's
// finished. Only call it from the Goroutine driving the routine.
func (p *Periodic) Stop() {
	p.stopped = true
}

//
// Private
//

func (p *Periodic) finishIteration(now time.Time) {
	if err := p.waiter.Err(); err != nil {
		p.Log.Errorf("periodic: Job '%s' failed: %v", p.waiter.Job().Name, err)
	}

	p.Iterations++
	p.lastProcessing = now.Sub(p.started)
	p.waiter = nil

	if interval := p.Interval(); p.lastProcessing > interval {
		p.Log.Warnf("periodic: Processing took %v, falling behind desired interval of %v",
			p.lastProcessing, interval)
	}

	p.nextAt = now.Add(p.wait())
}

func (p *Periodic) startIteration(now time.Time) {
	p.started = now

	job := p.NewJob()
	if err := job.Start(); err != nil {
		p.Log.Errorf("periodic: Error starting job '%s': %v", job.Name, err)
		p.lastProcessing = 0
		p.nextAt = now.Add(p.wait())
		return
	}

	p.waiter = job.WaitFor()
}

// Time to wait before starting the next job given how long the last one took.
func (p *Periodic) wait() time.Duration {
	wait := p.Interval() - p.lastProcessing
	if wait < 0 {
		return 0
	}
	return wait
}
