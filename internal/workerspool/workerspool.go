// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements the fork-join scheduling used by the recursive multiply and add.
//
// The pool holds no goroutines of its own: it only keeps tabs on how many tasks are running
// and decides whether a new task gets its own goroutine or runs inline in the caller.
package workerspool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a soft limit on the parallelism of a tree of forked tasks.
//
// A Pool is safe for concurrent use, and nested calls to Fork (a forked task forking its
// own children) cannot deadlock.
type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	// The actual number of goroutines is higher than that -- because of joins waiting on children.
	maxParallelism int
	mu             sync.Mutex
	numRunning     int

	// extraParallelism is temporarily increased while a task is blocked joining its children.
	extraParallelism atomic.Int32
}

// New returns a new Pool with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	return NewWithParallelism(runtime.NumCPU())
}

// NewWithParallelism returns a new Pool with the given soft parallelism limit.
// See SetMaxParallelism for the meaning of 0 and negative values.
func NewWithParallelism(maxParallelism int) *Pool {
	return &Pool{maxParallelism: maxParallelism}
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is a soft-target for parallelism (the limit of goroutines is higher that this).
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// You should only change the parallelism before any task starts running. If changed during the execution
// the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// NumRunning returns the number of tasks currently running in their own goroutine.
func (w *Pool) NumRunning() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.numRunning
}

const goroutineToParallelismRatio = 2

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= goroutineToParallelismRatio*w.maxParallelism+int(w.extraParallelism.Load())
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.mu.Unlock()
	}()
}

// StartIfAvailable runs the task in a separate goroutine, if there are enough workers left.
// It returns true if it found workers to run the function, false otherwise.
//
// It's up to the client to synchronize the end of the function execution.
func (w *Pool) StartIfAvailable(task func()) bool {
	if w.IsUnlimited() {
		go task()
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.lockedRunTaskInGoroutine(task)
	return true
}

// WorkerIsAsleep indicates the worker (the one that called the method) is going to sleep waiting
// for other workers, and temporarily increases the available number of workers.
//
// Call WorkerRestarted when the worker is ready to run again.
func (w *Pool) WorkerIsAsleep() {
	w.extraParallelism.Add(1)
}

// WorkerRestarted indicates the worker (the one that called the method) is ready to run again.
// It should only be called after WorkerIsAsleep.
func (w *Pool) WorkerRestarted() {
	w.extraParallelism.Add(-1)
}

// Fork runs the tasks and returns only after all of them finished (the join).
//
// Tasks are started in their own goroutine while the pool has room, and the remaining ones are
// run inline by the caller. The last task is always run inline. While waiting for the join the
// caller is accounted as asleep, so the tasks it forked can fork in turn.
//
// A nil task is skipped.
func (w *Pool) Fork(tasks ...func()) {
	// Trim nil tasks at the end, so the last one run inline is a real one.
	for len(tasks) > 0 && tasks[len(tasks)-1] == nil {
		tasks = tasks[:len(tasks)-1]
	}
	if len(tasks) == 0 {
		return
	}
	if !w.IsEnabled() || len(tasks) == 1 {
		for _, task := range tasks {
			if task != nil {
				task()
			}
		}
		return
	}

	var wg sync.WaitGroup
	for _, task := range tasks[:len(tasks)-1] {
		if task == nil {
			continue
		}
		wg.Add(1)
		started := w.StartIfAvailable(func() {
			defer wg.Done()
			task()
		})
		if !started {
			task()
			wg.Done()
		}
	}
	tasks[len(tasks)-1]()

	w.WorkerIsAsleep()
	wg.Wait()
	w.WorkerRestarted()
}

// Saturate fans out as many copies of task as the pool has room for, plus one run inline, and
// waits for all of them to finish.
//
// If parallelism is disabled, task is run exactly once. If parallelism is unlimited, runtime.NumCPU()
// copies are started.
func (w *Pool) Saturate(task func()) {
	if !w.IsEnabled() {
		task()
		return
	}
	if w.IsUnlimited() {
		tasks := make([]func(), runtime.NumCPU())
		for i := range tasks {
			tasks[i] = task
		}
		w.Fork(tasks...)
		return
	}

	var wg sync.WaitGroup
	w.mu.Lock()
	for !w.lockedIsFull() && w.numRunning < w.maxParallelism-1 {
		wg.Add(1)
		w.lockedRunTaskInGoroutine(func() {
			defer wg.Done()
			task()
		})
	}
	w.mu.Unlock()
	task()
	w.WorkerIsAsleep()
	wg.Wait()
	w.WorkerRestarted()
}
