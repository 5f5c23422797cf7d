package workerspool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Saturate(t *testing.T) {
	// Test saturation.
	pool := New()
	wantTasks := 5
	pool.SetMaxParallelism(wantTasks)

	var count atomic.Int32
	doneNewTasks := make(chan struct{})
	var closeOnce sync.Once
	doneTest := make(chan struct{})

	go func() {
		pool.Saturate(func() {
			got := count.Add(1)
			runtime.Gosched()
			if int(got) == wantTasks {
				closeOnce.Do(func() { close(doneNewTasks) })
				return
			}
			<-doneNewTasks
		})
		close(doneTest)
	}()

	select {
	case <-doneTest:
		// Success
	case <-time.After(time.Second):
		t.Fatal("Timeout before all tasks were executed.")
	}
	if int(count.Load()) != wantTasks {
		t.Fatalf("Expected %d tasks, got %d", wantTasks, count.Load())
	}

	// Test No Parallelism
	pool.SetMaxParallelism(0)
	count.Store(0)
	pool.Saturate(func() { count.Add(1) })
	assert.Equal(t, int32(1), count.Load())

	// Test Unlimited
	pool.SetMaxParallelism(-1)
	count.Store(0)
	var started atomic.Int32
	pool.Saturate(func() {
		started.Add(1)
		runtime.Gosched()
		count.Add(1)
	})
	assert.Equal(t, int32(runtime.NumCPU()), started.Load())
	assert.Equal(t, count.Load(), started.Load())
}

func TestPool_Fork(t *testing.T) {
	for _, parallelism := range []int{0, 1, 4, -1} {
		pool := NewWithParallelism(parallelism)
		results := make([]int, 16)
		tasks := make([]func(), len(results))
		for i := range tasks {
			tasks[i] = func() { results[i] = i * i }
		}
		pool.Fork(tasks...)
		for i, r := range results {
			require.Equalf(t, i*i, r, "parallelism=%d, task #%d", parallelism, i)
		}
		assert.Equal(t, 0, int(pool.extraParallelism.Load()))
	}
}

func TestPool_ForkNested(t *testing.T) {
	// A binary tree of forks 10 levels deep with a tiny pool must not deadlock.
	pool := NewWithParallelism(1)
	var leaves atomic.Int32
	var recurse func(level int)
	recurse = func(level int) {
		if level == 0 {
			leaves.Add(1)
			return
		}
		pool.Fork(
			func() { recurse(level - 1) },
			nil,
			func() { recurse(level - 1) },
		)
	}
	done := make(chan struct{})
	go func() {
		recurse(10)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("nested Fork deadlocked")
	}
	assert.Equal(t, int32(1<<10), leaves.Load())
	assert.Eventually(t, func() bool { return pool.NumRunning() == 0 }, time.Second, time.Millisecond)
}

func TestPool_ForkSkipsNil(t *testing.T) {
	pool := New()
	var count atomic.Int32
	pool.Fork(nil, func() { count.Add(1) }, nil, nil)
	pool.Fork()
	pool.Fork(nil)
	assert.Equal(t, int32(1), count.Load())
}

func TestPool_StartIfAvailable(t *testing.T) {
	pool := NewWithParallelism(1)
	release := make(chan struct{})
	var wg sync.WaitGroup
	for range goroutineToParallelismRatio {
		wg.Add(1)
		require.True(t, pool.StartIfAvailable(func() {
			defer wg.Done()
			<-release
		}))
	}
	assert.False(t, pool.StartIfAvailable(func() {}))
	assert.Equal(t, goroutineToParallelismRatio, pool.NumRunning())

	close(release)
	wg.Wait()
	assert.Eventually(t, func() bool { return pool.NumRunning() == 0 }, time.Second, time.Millisecond)
	done := make(chan struct{})
	require.True(t, pool.StartIfAvailable(func() { close(done) }))
	<-done
}
