// Package framejob runs blocking work off a single-threaded frame loop and
// hands results back to that loop without locking at every call site.
//
// Work is wrapped in a Job. Starting a job submits its work body to a Runner
// (a pool of worker Goroutines by default), and the job's WaitFor sequence is
// advanced once per tick by a Loop. On the tick where completion is first
// observed, the job's OnFinished hook runs on the loop's Goroutine, where it's
// safe to touch anything else the loop owns.
package framejob

import (
	"context"
	"time"

	"golang.org/x/xerrors"
)

// Run is one of the main entry points to the program. It invokes f on the
// frame loop's Goroutine, then ticks the loop until no routines are left or
// ctx is done.
func Run(ctx context.Context, config *Config, f func(*Context) error) error {
	return run(ctx, config, f, true)
}

// RunLoop is one of the main entry points to the program. It invokes f on the
// frame loop's Goroutine, then ticks the loop until ctx is done.
func RunLoop(ctx context.Context, config *Config, f func(*Context) error) error {
	return run(ctx, config, f, false)
}

//
// Private
//

// Maximum number of errors printed when a run ends.
const maxPrintedErrors = 10

func run(ctx context.Context, config *Config, f func(*Context) error, untilIdle bool) error {
	if config == nil {
		config = &Config{}
	}

	fillDefaults(config)

	c := NewContext(&Args{Config: config, Log: config.Log})
	return runContext(ctx, c, f, untilIdle)
}

func runContext(ctx context.Context, c *Context, f func(*Context) error, untilIdle bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.Pool.Start()

	serverErrs := make(chan error, 1)
	if c.Config.Port > 0 {
		server := startServingStatusHTTP(c, serverErrs)
		defer stopServingStatusHTTP(c, server)
	}

	go func() {
		select {
		case err := <-serverErrs:
			c.Log.Errorf("%v", err)
			cancel()
		case <-ctx.Done():
		}
	}()

	var err error
	if err = f(c); err == nil {
		if untilIdle {
			err = c.Loop.RunUntilIdle(ctx)
		} else {
			err = c.Loop.Run(ctx)
		}
	}

	// Give in-flight work a chance to notice that we're going away before
	// waiting on the pool.
	c.AbortAll()
	c.Pool.Stop()

	errors := c.Loop.Errors
	for i, jobErr := range errors {
		c.Log.Errorf("Job error: %v", jobErr)

		if i >= maxPrintedErrors-1 {
			c.Log.Errorf("Too many errors.")
			break
		}
	}

	stats := c.Stats.Snapshot()
	c.Log.Infof("Ran in %s (%v / %v job(s) finished, %v errored)",
		time.Since(stats.Start), stats.NumJobsFinished, stats.NumJobs, stats.NumJobsErrored)

	if err != nil && !xerrors.Is(err, context.Canceled) {
		return err
	}

	if len(errors) > 0 {
		return xerrors.Errorf("%v job(s) failed, first error: %w", len(errors), errors[0])
	}

	return nil
}
