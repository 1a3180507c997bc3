// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// DefaultInterMoveDelay is the wait after each successful move before the
// scout is sent to the next room. It must outrun the arrival latency of the
// breakout join webhook so the pending move can be matched; the correct value
// is environment-dependent and therefore configurable.
const DefaultInterMoveDelay = 5 * time.Second

// Options configures one calibration run.
type Options struct {
	MeetingID   string
	MeetingUUID string

	// Scout identity used against the roster snapshot.
	ScoutName  string
	ScoutEmail string

	// MaxMoveRetries is the per-room retry budget on top of the first
	// attempt. Negative selects the default.
	MaxMoveRetries int

	// InterMoveDelay is the wait after each successful move. Zero selects
	// the default; negative disables the wait.
	InterMoveDelay time.Duration

	// UseCache skips the mover for rooms already bound in the cache.
	UseCache bool
}

// Orchestrator drives one end-to-end calibration run: fetch rooms, resolve
// the scout, move it through every unmapped room, and return the scout to the
// main room. Rooms are visited strictly one at a time; there is exactly one
// scout and the downstream event source reports one membership change per
// entity at a time.
type Orchestrator struct {
	controller domain.RoomController
	cache      *RoomCache
	notifier   Notifier
	sink       ProgressSink
	executor   *MoveExecutor
	opts       Options

	mu    sync.Mutex
	state models.CalibrationState
}

// NewOrchestrator creates an orchestrator over the given collaborators.
// The cache is owned by the caller so concurrent runs for different meetings
// can be isolated by constructing one cache per meeting. A nil notifier or
// sink is replaced by a no-op.
func NewOrchestrator(controller domain.RoomController, cache *RoomCache, notifier Notifier, sink ProgressSink, opts Options) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if sink == nil {
		sink = ProgressFunc(func(models.CalibrationProgress) {})
	}
	if opts.InterMoveDelay == 0 {
		opts.InterMoveDelay = DefaultInterMoveDelay
	}

	return &Orchestrator{
		controller: controller,
		cache:      cache,
		notifier:   notifier,
		sink:       sink,
		executor:   NewMoveExecutor(opts.MaxMoveRetries),
		opts:       opts,
		state:      models.CalibrationStateIdle,
	}
}

// State returns the current run state.
func (o *Orchestrator) State() models.CalibrationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(state models.CalibrationState, message string) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()

	o.sink.Emit(progressEvent(state, message))
}

// Run executes the calibration sequence. Only two conditions are fatal: zero
// rooms discovered and the scout missing from the roster. Per-room move
// failures are recorded in the result and the loop continues; the final
// return-to-main is best-effort.
func (o *Orchestrator) Run(ctx context.Context) (*models.CalibrationResult, error) {
	result := &models.CalibrationResult{
		MeetingID: o.opts.MeetingID,
		StartedAt: time.Now().UTC(),
	}

	o.notifier.NotifyStart(ctx, o.opts.MeetingID)

	rooms, err := o.fetchRooms(ctx)
	if err != nil {
		return o.fail(result, err)
	}

	scout, err := o.findScout(ctx)
	if err != nil {
		return o.fail(result, err)
	}

	for i, room := range rooms {
		// Cancellation is honored between rooms, never mid-move.
		if err := ctx.Err(); err != nil {
			return o.fail(result, err)
		}

		o.calibrateRoom(ctx, result, scout, room, i, len(rooms))
	}

	o.returnScout(ctx, scout)

	result.CompletedAt = time.Now().UTC()
	result.State = models.CalibrationStateComplete
	o.setState(models.CalibrationStateComplete,
		fmt.Sprintf("calibration complete: %d mapped, %d from cache, %d failed",
			result.NewlyMapped, result.FromCache, len(result.Failures)))

	o.notifier.NotifyComplete(ctx, o.opts.MeetingID, result)

	return result, nil
}

func (o *Orchestrator) fetchRooms(ctx context.Context) ([]models.BreakoutRoom, error) {
	o.setState(models.CalibrationStateFetchingRooms, "fetching breakout rooms")

	rooms, err := o.controller.ListRooms(ctx, o.opts.MeetingID)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to list breakout rooms", err)
	}
	if len(rooms) == 0 {
		return nil, domain.NewNotFoundError("no breakout rooms discovered")
	}

	o.setState(models.CalibrationStateRoomsFound, fmt.Sprintf("found %d breakout rooms", len(rooms)))
	return rooms, nil
}

func (o *Orchestrator) findScout(ctx context.Context) (*models.Participant, error) {
	o.setState(models.CalibrationStateFindingBot, "locating scout participant")

	roster, err := o.controller.ListRoster(ctx, o.opts.MeetingID)
	if err != nil {
		return nil, domain.NewUnavailableError("failed to list roster", err)
	}

	scout, err := ResolveScout(roster, o.opts.ScoutName, o.opts.ScoutEmail)
	if err != nil {
		return nil, err
	}

	o.setState(models.CalibrationStateBotFound, fmt.Sprintf("scout found: %s", scout.Name))
	return scout, nil
}

func (o *Orchestrator) calibrateRoom(ctx context.Context, result *models.CalibrationResult, scout *models.Participant, room models.BreakoutRoom, index, total int) {
	if o.opts.UseCache {
		if name, ok := o.cache.Get(room.ID); ok {
			result.Mapped = append(result.Mapped, models.MappedRoom{
				RoomID:    room.ID,
				RoomName:  name,
				RoomIndex: index,
				FromCache: true,
				MappedAt:  time.Now().UTC(),
			})
			result.FromCache++

			o.sink.Emit(models.CalibrationProgress{
				State:     models.CalibrationStateMoving,
				Message:   "room already mapped, skipping move",
				RoomID:    room.ID,
				RoomName:  name,
				RoomIndex: index,
				Total:     total,
				Timestamp: time.Now().UTC(),
			})
			return
		}
	}

	// The mapping must reach the backend before the scout's join event
	// arrives over the webhook channel, so announce before moving.
	o.setStateRoom(room, index, total)
	o.notifier.NotifyMapping(ctx, o.opts.MeetingID, o.pendingMapping(room, index))

	outcome, err := o.executor.MoveWithRetry(ctx, o.controller, o.opts.MeetingID, scout.ID, room.ID)
	if err != nil || !outcome.Moved {
		failure := models.RoomFailure{
			RoomID:   room.ID,
			RoomName: room.Name,
			Attempts: outcome.Attempts,
			Error:    outcome.LastErr,
		}
		if err != nil {
			failure.Error = err.Error()
		}
		result.Failures = append(result.Failures, failure)

		slog.ErrorContext(ctx, "room calibration failed",
			logging.ErrKey, failure.Error,
			"room_id", room.ID,
			"room_name", room.Name,
			"attempts", outcome.Attempts,
		)
		return
	}

	// Let the downstream event source observe the membership change before
	// the scout moves again.
	if o.opts.InterMoveDelay > 0 {
		if err := sleepCtx(ctx, o.opts.InterMoveDelay); err != nil {
			// Treat cancellation during the settle wait as a soft failure
			// for this room; the loop head surfaces the cancellation.
			result.Failures = append(result.Failures, models.RoomFailure{
				RoomID:   room.ID,
				RoomName: room.Name,
				Attempts: outcome.Attempts,
				Error:    err.Error(),
			})
			return
		}
	}

	result.Mapped = append(result.Mapped, models.MappedRoom{
		RoomID:    room.ID,
		RoomName:  room.Name,
		RoomIndex: index,
		FromCache: false,
		Attempts:  outcome.Attempts,
		MappedAt:  time.Now().UTC(),
	})
	result.NewlyMapped++
	o.cache.Put(room.ID, room.Name, index)
}

func (o *Orchestrator) setStateRoom(room models.BreakoutRoom, index, total int) {
	o.mu.Lock()
	o.state = models.CalibrationStateMoving
	o.mu.Unlock()

	o.sink.Emit(models.CalibrationProgress{
		State:     models.CalibrationStateMoving,
		Message:   fmt.Sprintf("moving scout to room %d of %d", index+1, total),
		RoomID:    room.ID,
		RoomName:  room.Name,
		RoomIndex: index,
		Total:     total,
		Timestamp: time.Now().UTC(),
	})
}

func (o *Orchestrator) pendingMapping(room models.BreakoutRoom, index int) *models.RoomMapping {
	now := time.Now().UTC()
	return &models.RoomMapping{
		MappingID:   uuid.New().String(),
		MeetingID:   o.opts.MeetingID,
		MeetingUUID: o.opts.MeetingUUID,
		RoomUUID:    room.ID,
		RoomName:    room.Name,
		RoomIndex:   index,
		MappingDate: now.Format(time.DateOnly),
		MappedAt:    now,
		Source:      models.MappingSourceSDKApp,
	}
}

func (o *Orchestrator) returnScout(ctx context.Context, scout *models.Participant) {
	o.setState(models.CalibrationStateReturning, "returning scout to main room")

	if err := o.controller.ReturnToMain(ctx, o.opts.MeetingID, scout.ID); err != nil {
		slog.WarnContext(ctx, "failed to return scout to main room",
			logging.ErrKey, err,
			"scout_id", scout.ID,
		)
	}
}

func (o *Orchestrator) fail(result *models.CalibrationResult, err error) (*models.CalibrationResult, error) {
	result.CompletedAt = time.Now().UTC()
	result.State = models.CalibrationStateError
	o.setState(models.CalibrationStateError, err.Error())
	return result, err
}
