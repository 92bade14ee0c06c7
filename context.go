package framejob

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/xerrors"
)

// Context contains useful state that can be used by a user-provided function
// driving jobs through the frame loop.
type Context struct {
	// Config is the current configuration. It may be replaced by a config
	// reload, which always happens on the loop's Goroutine, so only read it
	// from there.
	Config *Config

	// Log is a logger that can be used to print information.
	Log LoggerInterface

	// Loop is the frame loop that jobs are waited on from.
	Loop *Loop

	// OnConfigChange is invoked on the loop's Goroutine after a new
	// configuration has been applied. Optional.
	OnConfigChange func(c *Context)

	// Pool is the runner that jobs started through the context execute on.
	Pool *Pool

	// Stats contains various statistics about jobs that went through the
	// context.
	Stats *Stats

	activeJobs   map[string]*Job
	activeJobsMu sync.Mutex
	events       *broadcaster
	recent       *gocache.Cache
}

// Args are the set of arguments accepted by NewContext.
type Args struct {
	Config *Config
	Log    LoggerInterface
	Loop   *Loop
	Pool   *Pool
}

// NewContext initializes and returns a new Context. Missing arguments are
// filled in with defaults.
func NewContext(args *Args) *Context {
	config := args.Config
	if config == nil {
		config = &Config{}
	}
	if config.Log == nil {
		config.Log = args.Log
	}
	fillDefaults(config)

	log := args.Log
	if log == nil {
		log = config.Log
	}

	loop := args.Loop
	if loop == nil {
		loop = NewLoop(log)
		loop.Interval = config.FrameInterval
	}

	pool := args.Pool
	if pool == nil {
		pool = NewPool(log, config.Concurrency)
	}

	return &Context{
		Config: config,
		Log:    log,
		Loop:   loop,
		Pool:   pool,
		Stats:  &Stats{Start: time.Now()},

		activeJobs: make(map[string]*Job),
		events:     newBroadcaster(),
		recent:     gocache.New(config.RecentTTL, config.RecentTTL*2),
	}
}

// AbortAll aborts every job started through the context that hasn't been
// observed as finished yet.
func (c *Context) AbortAll() {
	c.activeJobsMu.Lock()
	defer c.activeJobsMu.Unlock()

	for _, j := range c.activeJobs {
		c.Log.Debugf("Aborting job: %s (%s)", j.Name, j.ID)
		j.Abort()
	}
}

// Post adds a routine to the context's frame loop. It's safe to call from any
// Goroutine.
func (c *Context) Post(r Routine) {
	c.Loop.Post(r)
}

// Recent returns records of recently finished jobs, oldest first.
func (c *Context) Recent() []JobRecord {
	items := c.recent.Items()

	records := make([]JobRecord, 0, len(items))
	for _, item := range items {
		records = append(records, item.Object.(JobRecord))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FinishedAt.Before(records[j].FinishedAt)
	})

	return records
}

// Start starts a job and hands it to the frame loop, which runs its
// OnFinished hook once it's done. Jobs without a runner are run on the
// context's pool. It's safe to call from any Goroutine.
func (c *Context) Start(j *Job) error {
	// Leave a job that's already been started exactly as it is
	if j.started.Load() {
		return xerrors.Errorf("error starting job '%s': %w", j.Name, ErrJobStarted)
	}

	if j.Runner == nil {
		j.Runner = c.Pool
	}

	if err := j.Start(); err != nil {
		return err
	}

	c.Stats.NumJobs.Add(1)

	c.activeJobsMu.Lock()
	c.activeJobs[j.ID] = j
	c.activeJobsMu.Unlock()

	c.Log.Debugf("Started job: %s (%s)", j.Name, j.ID)
	c.Loop.Post(&trackedWaiter{c: c, w: j.WaitFor()})
	return nil
}

// JobRecord is a record of a finished job.
type JobRecord struct {
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
	ID         string        `json:"id"`
	Name       string        `json:"name"`
}

// Stats tracks job statistics. It's safe for concurrent use.
type Stats struct {
	// NumJobs is the number of jobs started.
	NumJobs atomic.Int64

	// NumJobsErrored is the number of finished jobs that produced an error.
	NumJobsErrored atomic.Int64

	// NumJobsFinished is the number of jobs whose completion has been
	// observed by the frame loop.
	NumJobsFinished atomic.Int64

	// Start is the time that the context was created.
	Start time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	NumJobs         int64     `json:"num_jobs"`
	NumJobsErrored  int64     `json:"num_jobs_errored"`
	NumJobsFinished int64     `json:"num_jobs_finished"`
	Start           time.Time `json:"start"`
}

// Snapshot returns a copy of the current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		NumJobs:         s.NumJobs.Load(),
		NumJobsErrored:  s.NumJobsErrored.Load(),
		NumJobsFinished: s.NumJobsFinished.Load(),
		Start:           s.Start,
	}
}

//
// Private
//

// Records a job as finished. Called on the loop's Goroutine.
func (c *Context) recordFinished(j *Job, err error) {
	c.activeJobsMu.Lock()
	delete(c.activeJobs, j.ID)
	c.activeJobsMu.Unlock()

	record := JobRecord{
		Duration:   j.Duration,
		FinishedAt: time.Now(),
		ID:         j.ID,
		Name:       j.Name,
	}

	c.Stats.NumJobsFinished.Add(1)
	if err != nil {
		c.Stats.NumJobsErrored.Add(1)
		record.Error = err.Error()
	}

	c.Log.Debugf("Finished job: %s (%s) in %v", j.Name, j.ID, j.Duration)

	c.recent.SetDefault(j.ID, record)
	c.events.publish(&jobEvent{Type: jobEventFinished, Job: &record})
}

// A waiter that records the job's completion on its context after the job's
// own hook has run.
type trackedWaiter struct {
	c *Context
	w *Waiter
}

func (t *trackedWaiter) Err() error {
	return t.w.Err()
}

func (t *trackedWaiter) Next() bool {
	if t.w.Next() {
		return true
	}

	t.c.recordFinished(t.w.Job(), t.w.Err())
	return false
}
