// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package calibration

import (
	"context"
	"log/slog"
	"time"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// DefaultMaxRetries is the number of additional attempts after the first
// failed move, so the default budget is three attempts total.
const DefaultMaxRetries = 2

// moveBackoffUnit is the linear backoff step between attempts: the wait
// before retry N is N times this unit.
const moveBackoffUnit = time.Second

// MoveExecutor performs a single participant move with bounded retry.
// Every failure is retried identically; there is no retryable versus
// permanent classification, and no jitter. The room counts involved are
// small enough that the simple policy holds.
type MoveExecutor struct {
	MaxRetries int

	// sleep is swapped out by tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMoveExecutor creates a move executor. maxRetries < 0 selects the default.
func NewMoveExecutor(maxRetries int) *MoveExecutor {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &MoveExecutor{
		MaxRetries: maxRetries,
		sleep:      sleepCtx,
	}
}

// MoveWithRetry attempts to move a participant into a room, retrying with
// linear attempt-indexed backoff. The outcome always carries the number of
// attempts made; on exhaustion it carries the last error. The only error
// returned directly is context cancellation during a backoff wait.
func (e *MoveExecutor) MoveWithRetry(ctx context.Context, mover domain.ParticipantMover, meetingID, participantID, roomID string) (*models.MoveOutcome, error) {
	outcome := &models.MoveOutcome{}

	var lastErr error
	for attempt := 1; attempt <= e.MaxRetries+1; attempt++ {
		outcome.Attempts = attempt

		err := mover.MoveParticipant(ctx, meetingID, participantID, roomID)
		if err == nil {
			outcome.Moved = true
			return outcome, nil
		}
		lastErr = err

		slog.WarnContext(ctx, "participant move attempt failed",
			logging.ErrKey, err,
			"room_id", roomID,
			"attempt", attempt,
			"max_attempts", e.MaxRetries+1,
		)

		if attempt <= e.MaxRetries {
			wait := time.Duration(attempt) * moveBackoffUnit
			if err := e.sleep(ctx, wait); err != nil {
				outcome.LastErr = lastErr.Error()
				return outcome, err
			}
		}
	}

	outcome.LastErr = lastErr.Error()
	return outcome, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
