// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package concurrent provides a bounded worker pool for background fan-out
// work such as per-meeting QoS collection.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool limits how many submitted functions run at once.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a worker pool with the given concurrency limit.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{workerCount: workerCount}
}

// Run executes all functions, stopping at the first error. Remaining work is
// cancelled through the derived context.
func (wp *WorkerPool) Run(ctx context.Context, functions ...func() error) error {
	if len(functions) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			return fn()
		})
	}

	return g.Wait()
}

// RunAll executes all functions to completion regardless of failures and
// returns every error that occurred.
func (wp *WorkerPool) RunAll(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	errCh := make(chan error, len(functions))

	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return nil
			default:
			}

			if err := fn(); err != nil {
				errCh <- err
			}
			return nil
		})
	}

	_ = g.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errs
}
