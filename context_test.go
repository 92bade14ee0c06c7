package framejob

import (
	"context"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestContextStart(t *testing.T) {
	c := newContext()
	c.Pool.Start()
	defer c.Pool.Stop()

	j := NewJob("job", nil, nil)
	assert.NoError(t, c.Start(j))

	// Jobs without a runner go to the context's pool
	assert.Equal(t, c.Pool, j.Runner)
	waitDone(t, j)

	assert.Equal(t, int64(1), c.Stats.Snapshot().NumJobs)
	assert.Equal(t, int64(0), c.Stats.Snapshot().NumJobsFinished)

	c.Loop.Tick()
	assert.Equal(t, int64(1), c.Stats.Snapshot().NumJobsFinished)
	assert.Equal(t, 0, c.Loop.Len())
}

func TestContextStart_Twice(t *testing.T) {
	c := newContext()

	j := NewJob("job", nil, nil)
	j.Runner = InlineRunner{}
	assert.NoError(t, c.Start(j))
	assert.True(t, xerrors.Is(c.Start(j), ErrJobStarted))

	assert.Equal(t, int64(1), c.Stats.Snapshot().NumJobs)
	assert.Equal(t, 1, c.Loop.Len())
}

func TestContextStart_AlreadyStarted(t *testing.T) {
	c := newContext()

	// Started outside of the context with its default runner
	j := NewJob("job", nil, nil)
	j.Runner = InlineRunner{}
	assert.NoError(t, j.Start())

	j2 := NewJob("job2", nil, nil)
	assert.NoError(t, j2.Start())
	<-j2.Done()

	assert.True(t, xerrors.Is(c.Start(j), ErrJobStarted))
	assert.Equal(t, InlineRunner{}, j.Runner)

	assert.True(t, xerrors.Is(c.Start(j2), ErrJobStarted))
	assert.Nil(t, j2.Runner)

	assert.Equal(t, int64(0), c.Stats.Snapshot().NumJobs)
	assert.Equal(t, 0, c.Loop.Len())
}

func TestContextRecent(t *testing.T) {
	c := newContext()

	for _, name := range []string{"first", "second", "third"} {
		j := NewJob(name, nil, nil)
		j.Runner = InlineRunner{}
		assert.NoError(t, c.Start(j))
		c.Loop.Tick()

		// Keep finish times distinct so ordering is deterministic
		time.Sleep(time.Millisecond)
	}

	errJob := NewJob("failed", func(ctx context.Context) error {
		return xerrors.Errorf("error")
	}, nil)
	errJob.Runner = InlineRunner{}
	assert.NoError(t, c.Start(errJob))
	c.Loop.Tick()

	recent := c.Recent()
	assert.Equal(t, 4, len(recent))
	assert.Equal(t, "first", recent[0].Name)
	assert.Equal(t, "second", recent[1].Name)
	assert.Equal(t, "third", recent[2].Name)
	assert.Equal(t, "failed", recent[3].Name)
	assert.Equal(t, "", recent[0].Error)
	assert.Equal(t, "error", recent[3].Error)

	assert.Equal(t, int64(1), c.Stats.Snapshot().NumJobsErrored)
}

func TestContextAbortAll(t *testing.T) {
	c := newContext()
	c.Pool.Start()
	defer c.Pool.Stop()

	j := NewJob("job", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	assert.NoError(t, c.Start(j))

	c.AbortAll()
	waitDone(t, j)

	c.Loop.Tick()
	assert.True(t, xerrors.Is(j.Err(), context.Canceled))
	assert.Equal(t, int64(1), c.Stats.Snapshot().NumJobsErrored)
}
