// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs batches of independent tasks, such as the evaluation of a corpus of
// tiling requests, with a bounded number of goroutines.
package workerspool

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool of workers.
type Pool struct {
	// maxParallelism is the limit of tasks running at the same time.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning is decreased.
	numRunning     int
}

// New returns a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{maxParallelism: runtime.NumCPU()}
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0).
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0).
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is the limit of tasks running at the same time.
// If set to 0 parallelism is disabled, and tasks run inline.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// It should only be changed while no tasks are running.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with w.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// acquire waits until a worker is available and takes it.
func (w *Pool) acquire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.numRunning++
}

// done releases a worker taken with acquire.
func (w *Pool) done() {
	w.mu.Lock()
	w.numRunning--
	w.cond.Signal()
	w.mu.Unlock()
}

// ForEach runs task(ctx, ii) for ii in [0, n) in the pool, and waits for all of them to finish.
//
// It returns the first error returned by a task. Once a task fails, the ctx given to the running tasks
// is cancelled and the tasks not yet started are skipped.
func (w *Pool) ForEach(ctx context.Context, n int, task func(ctx context.Context, ii int) error) error {
	if !w.IsEnabled() {
		for ii := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := task(ctx, ii); err != nil {
				return err
			}
		}
		return ctx.Err()
	}
	g, gCtx := errgroup.WithContext(ctx)
	for ii := range n {
		if gCtx.Err() != nil {
			break
		}
		if w.IsUnlimited() {
			g.Go(func() error { return task(gCtx, ii) })
			continue
		}
		w.acquire()
		g.Go(func() error {
			defer w.done()
			return task(gCtx, ii)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
