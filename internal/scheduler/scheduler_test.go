// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsInvalidRule(t *testing.T) {
	s := New()
	assert.Error(t, s.Add("bad", "not an rrule", func(context.Context) error { return nil }))
}

func TestSchedulerFiresJob(t *testing.T) {
	s := New()

	var runs atomic.Int32
	require.NoError(t, s.Add("test", "FREQ=SECONDLY", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithTimeout(t.Context(), 3*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestSchedulerStopsOnCancelledContext(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("test", "FREQ=DAILY", func(context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
