// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package calibration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMover struct {
	calls    int
	failures int
	err      error
}

func (m *fakeMover) MoveParticipant(ctx context.Context, meetingID, participantID, roomID string) error {
	m.calls++
	if m.calls <= m.failures {
		return m.err
	}
	return nil
}

func newTestExecutor(maxRetries int, waits *[]time.Duration) *MoveExecutor {
	e := NewMoveExecutor(maxRetries)
	e.sleep = func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return ctx.Err()
	}
	return e
}

func TestMoveWithRetrySucceedsFirstAttempt(t *testing.T) {
	mover := &fakeMover{}
	executor := newTestExecutor(2, nil)

	outcome, err := executor.MoveWithRetry(context.Background(), mover, "m1", "scout", "room-1")

	require.NoError(t, err)
	assert.True(t, outcome.Moved)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, 1, mover.calls)
}

func TestMoveWithRetrySucceedsAfterFailures(t *testing.T) {
	mover := &fakeMover{failures: 2, err: errors.New("move rejected")}
	var waits []time.Duration
	executor := newTestExecutor(2, &waits)

	outcome, err := executor.MoveWithRetry(context.Background(), mover, "m1", "scout", "room-1")

	require.NoError(t, err)
	assert.True(t, outcome.Moved)
	assert.Equal(t, 3, outcome.Attempts)

	// Linear attempt-indexed backoff: 1s then 2s.
	require.Len(t, waits, 2)
	assert.Equal(t, time.Second, waits[0])
	assert.Equal(t, 2*time.Second, waits[1])
}

func TestMoveWithRetryExhaustsBudget(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		wantAttempts int
	}{
		{name: "default budget", maxRetries: -1, wantAttempts: 3},
		{name: "no retries", maxRetries: 0, wantAttempts: 1},
		{name: "five retries", maxRetries: 5, wantAttempts: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mover := &fakeMover{failures: 100, err: errors.New("room closed")}
			executor := newTestExecutor(tt.maxRetries, nil)

			outcome, err := executor.MoveWithRetry(context.Background(), mover, "m1", "scout", "room-1")

			require.NoError(t, err)
			assert.False(t, outcome.Moved)
			assert.Equal(t, tt.wantAttempts, outcome.Attempts)
			assert.Equal(t, tt.wantAttempts, mover.calls)
			assert.Equal(t, "room closed", outcome.LastErr)
		})
	}
}

func TestMoveWithRetryHonorsCancellation(t *testing.T) {
	mover := &fakeMover{failures: 100, err: errors.New("move rejected")}
	executor := NewMoveExecutor(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := executor.MoveWithRetry(ctx, mover, "m1", "scout", "room-1")

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, outcome.Moved)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, "move rejected", outcome.LastErr)
}
