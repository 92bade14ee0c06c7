package framejob

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
)

func TestEmptyPool(t *testing.T) {
	p := NewPool(&Logger{Level: LevelDebug}, 10)

	p.Start()
	p.Stop()

	assert.Equal(t, int64(0), p.NumSubmitted())
	assert.Equal(t, int64(0), p.NumCompleted())
}

func TestPoolWithWork(t *testing.T) {
	p := NewPool(&Logger{Level: LevelDebug}, 10)
	p.Start()

	var numRan int64
	for i := 0; i < 3; i++ {
		p.Submit(func() { atomic.AddInt64(&numRan, 1) })
	}
	p.Stop()

	assert.Equal(t, int64(3), numRan)
	assert.Equal(t, int64(3), p.NumSubmitted())
	assert.Equal(t, int64(3), p.NumCompleted())
}

// Tests the pool with lots of fast functions that do nothing across multiple
// start/stop cycles. Originally written to try to suss out a race condition.
func TestPoolWithLargeNonWork(t *testing.T) {
	p := NewPool(&Logger{Level: LevelDebug}, 30)

	numFuncs := 300
	numRounds := 50

	for i := 0; i < numRounds; i++ {
		p.Start()
		for j := 0; j < numFuncs; j++ {
			p.Submit(func() {})
		}
		p.Stop()

		assert.Equal(t, int64(numFuncs*(i+1)), p.NumSubmitted())
		assert.Equal(t, int64(numFuncs*(i+1)), p.NumCompleted())
	}
}

func TestPoolConcurrency(t *testing.T) {
	p := NewPool(&Logger{Level: LevelDebug}, 2)
	p.Start()
	defer p.Stop()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, maxActive, 2)
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	p := NewPool(&Logger{Level: LevelDebug}, 1)
	p.Start()

	release := make(chan struct{})
	p.Submit(func() { <-release })

	// Far more submissions than the worker channel's buffer. None of these
	// should block even though the only worker is stuck.
	submitted := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Submit(func() {})
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		assert.Fail(t, "Submit should not block on a busy pool")
	}

	close(release)
	p.Stop()

	assert.Equal(t, int64(101), p.NumCompleted())
}

func TestPoolSubmitAfterStop(t *testing.T) {
	p := NewPool(&Logger{Level: LevelDebug}, 1)
	p.Start()
	p.Stop()

	ran := make(chan struct{})
	p.Submit(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		assert.Fail(t, "Function submitted to stopped pool should still run")
	}
}

func TestWorkFunc_Panic(t *testing.T) {
	p := NewPool(&Logger{Level: LevelDebug}, 1)

	executed := false
	p.workFunc(0, func() {
		executed = true
		panic("error")
	})

	assert.True(t, executed)
	assert.Equal(t, int64(1), p.NumCompleted())
}
