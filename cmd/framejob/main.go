// Command framejob demonstrates running blocking work off a frame loop. It
// starts a batch of jobs that sleep for random durations, and optionally a
// periodic job that runs on the configured refresh interval, then drives all
// of them from a single loop Goroutine.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brandur/framejob"
	"github.com/brandur/framejob/modules/mconfig"
)

func main() {
	var (
		configPath string
		numJobs    int
		maxSleep   time.Duration
		periodic   bool
		watch      bool
	)

	flag.StringVar(&configPath, "config", "", "path to a TOML or YAML config file")
	flag.IntVar(&numJobs, "jobs", 10, "number of jobs to run")
	flag.DurationVar(&maxSleep, "max-sleep", 500*time.Millisecond, "maximum time each job sleeps")
	flag.BoolVar(&periodic, "periodic", false, "also run a job every refresh interval until interrupted")
	flag.BoolVar(&watch, "watch", false, "reload the config file when it changes")
	flag.Parse()

	if err := run(configPath, numJobs, maxSleep, periodic, watch); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, numJobs int, maxSleep time.Duration, periodic, watch bool) error {
	bootLog := &framejob.Logger{Level: framejob.LevelInfo}

	config := &framejob.Config{Log: bootLog}
	if configPath != "" {
		var err error
		config, err = mconfig.LoadFile(bootLog, configPath)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup := func(c *framejob.Context) error {
		if watch && configPath != "" {
			stopWatching, err := framejob.WatchConfig(c, configPath, mconfig.Loader(c.Log))
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				stopWatching()
			}()
		}

		for i := 0; i < numJobs; i++ {
			if err := c.Start(newSleepJob(c, i, maxSleep)); err != nil {
				return err
			}
		}

		if periodic {
			c.Post(newSampleRoutine(c, maxSleep))
		}

		return nil
	}

	if periodic || watch {
		return framejob.RunLoop(ctx, config, setup)
	}
	return framejob.Run(ctx, config, setup)
}

// Produces a job that sleeps for a random duration off the loop, then reports
// how long it slept from the loop.
func newSleepJob(c *framejob.Context, i int, maxSleep time.Duration) *framejob.Job {
	var slept time.Duration

	return framejob.NewJob(fmt.Sprintf("sleeper %v", i), func(ctx context.Context) error {
		slept = randomDuration(maxSleep)

		select {
		case <-time.After(slept):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, func() {
		c.Log.Infof("Sleeper %v finished after %v", i, slept)
	})
}

// Produces a routine that samples on every refresh interval, like a camera
// capturing a frame and processing it before the next one.
func newSampleRoutine(c *framejob.Context, maxSleep time.Duration) *framejob.Periodic {
	var n int

	return framejob.NewPeriodic(c.Log, func() time.Duration {
		return c.Config.RefreshInterval
	}, func() *framejob.Job {
		n++
		sample := n

		j := framejob.NewJob(fmt.Sprintf("sample %v", sample), func(ctx context.Context) error {
			time.Sleep(randomDuration(maxSleep))
			return nil
		}, func() {
			c.Log.Infof("Processed sample %v", sample)
		})
		j.Runner = c.Pool
		return j
	})
}

func randomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
