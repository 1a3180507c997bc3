// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package calibration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// fakeController is an in-memory room controller. Calls are appended to the
// shared log so tests can assert ordering across collaborators.
type fakeController struct {
	rooms     []models.BreakoutRoom
	roster    []models.Participant
	roomsErr  error
	rosterErr error
	moveErrs  map[string]error
	returnErr error

	log *[]string
}

func (c *fakeController) ListRooms(ctx context.Context, meetingID string) ([]models.BreakoutRoom, error) {
	c.record("list_rooms")
	return c.rooms, c.roomsErr
}

func (c *fakeController) ListRoster(ctx context.Context, meetingID string) ([]models.Participant, error) {
	c.record("list_roster")
	return c.roster, c.rosterErr
}

func (c *fakeController) MoveParticipant(ctx context.Context, meetingID, participantID, roomID string) error {
	c.record("move:" + roomID)
	if err, ok := c.moveErrs[roomID]; ok {
		return err
	}
	return nil
}

func (c *fakeController) ReturnToMain(ctx context.Context, meetingID, participantID string) error {
	c.record("return_to_main")
	return c.returnErr
}

func (c *fakeController) record(entry string) {
	if c.log != nil {
		*c.log = append(*c.log, entry)
	}
}

type recordNotifier struct {
	log      *[]string
	mappings []*models.RoomMapping
	result   *models.CalibrationResult
}

func (n *recordNotifier) NotifyStart(ctx context.Context, meetingID string) {
	*n.log = append(*n.log, "notify_start")
}

func (n *recordNotifier) NotifyMapping(ctx context.Context, meetingID string, mapping *models.RoomMapping) {
	*n.log = append(*n.log, "notify_mapping:"+mapping.RoomUUID)
	n.mappings = append(n.mappings, mapping)
}

func (n *recordNotifier) NotifyComplete(ctx context.Context, meetingID string, result *models.CalibrationResult) {
	*n.log = append(*n.log, "notify_complete")
	n.result = result
}

func threeRooms() []models.BreakoutRoom {
	return []models.BreakoutRoom{
		{ID: "room-1", Name: "Room 1", Index: 0},
		{ID: "room-2", Name: "Room 2", Index: 1},
		{ID: "room-3", Name: "Room 3", Index: 2},
	}
}

func scoutRoster() []models.Participant {
	return []models.Participant{
		{ID: "host", Name: "Alice", Host: true},
		{ID: "scout", Name: "Scout Bot"},
	}
}

func testOptions() Options {
	return Options{
		MeetingID:      "meeting-1",
		ScoutName:      "Scout Bot",
		MaxMoveRetries: 0,
		InterMoveDelay: -1,
		UseCache:       true,
	}
}

func TestOrchestratorMapsAllRooms(t *testing.T) {
	var log []string
	controller := &fakeController{rooms: threeRooms(), roster: scoutRoster(), log: &log}
	notifier := &recordNotifier{log: &log}
	cache := NewRoomCache()
	sink := NewChannelSink(64)

	orch := NewOrchestrator(controller, cache, notifier, sink, testOptions())
	result, err := orch.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 3, result.NewlyMapped)
	assert.Equal(t, 0, result.FromCache)
	assert.Empty(t, result.Failures)
	assert.Equal(t, models.CalibrationStateComplete, result.State)

	name, ok := cache.Get("room-2")
	require.True(t, ok)
	assert.Equal(t, "Room 2", name)

	// Each mapping reaches the notifier before the corresponding move.
	assert.Equal(t, []string{
		"notify_start",
		"list_rooms",
		"list_roster",
		"notify_mapping:room-1", "move:room-1",
		"notify_mapping:room-2", "move:room-2",
		"notify_mapping:room-3", "move:room-3",
		"return_to_main",
		"notify_complete",
	}, log)
}

func TestOrchestratorPartialFailure(t *testing.T) {
	var log []string
	controller := &fakeController{
		rooms:    threeRooms(),
		roster:   scoutRoster(),
		moveErrs: map[string]error{"room-2": errors.New("room closed")},
		log:      &log,
	}
	cache := NewRoomCache()

	orch := NewOrchestrator(controller, cache, nil, nil, testOptions())
	result, err := orch.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 2, result.NewlyMapped)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "room-2", result.Failures[0].RoomID)
	assert.Equal(t, "room closed", result.Failures[0].Error)
	assert.Equal(t, 1, result.Failures[0].Attempts)

	// The failed room must not be cached.
	_, ok := cache.Get("room-2")
	assert.False(t, ok)
	_, ok = cache.Get("room-1")
	assert.True(t, ok)
	_, ok = cache.Get("room-3")
	assert.True(t, ok)
}

func TestOrchestratorCacheHitsSkipMover(t *testing.T) {
	var log []string
	controller := &fakeController{rooms: threeRooms(), roster: scoutRoster(), log: &log}
	cache := NewRoomCache()
	cache.Put("room-1", "Room 1", 0)
	cache.Put("room-3", "Room 3", 2)

	orch := NewOrchestrator(controller, cache, nil, nil, testOptions())
	result, err := orch.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 1, result.NewlyMapped)
	assert.Equal(t, 2, result.FromCache)

	assert.NotContains(t, log, "move:room-1")
	assert.Contains(t, log, "move:room-2")
	assert.NotContains(t, log, "move:room-3")

	fromCache := 0
	for _, mapped := range result.Mapped {
		if mapped.FromCache {
			fromCache++
		}
	}
	assert.Equal(t, 2, fromCache)
}

func TestOrchestratorIdempotentSecondRun(t *testing.T) {
	controller := &fakeController{rooms: threeRooms(), roster: scoutRoster()}
	cache := NewRoomCache()

	first := NewOrchestrator(controller, cache, nil, nil, testOptions())
	_, err := first.Run(context.Background())
	require.NoError(t, err)

	var log []string
	controller.log = &log

	second := NewOrchestrator(controller, cache, nil, nil, testOptions())
	result, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.NewlyMapped)
	assert.Equal(t, 3, result.FromCache)
	for _, entry := range log {
		assert.NotContains(t, entry, "move:")
	}

	for _, room := range threeRooms() {
		name, ok := cache.Get(room.ID)
		require.True(t, ok)
		assert.Equal(t, room.Name, name)
	}
}

func TestOrchestratorZeroRoomsIsFatal(t *testing.T) {
	var log []string
	controller := &fakeController{rooms: nil, roster: scoutRoster(), log: &log}

	orch := NewOrchestrator(controller, NewRoomCache(), nil, nil, testOptions())
	result, err := orch.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	assert.Equal(t, models.CalibrationStateError, result.State)

	// Fatal before any roster or mover call.
	assert.NotContains(t, log, "list_roster")
	for _, entry := range log {
		assert.NotContains(t, entry, "move:")
	}
}

func TestOrchestratorScoutNotFoundIsFatal(t *testing.T) {
	var log []string
	controller := &fakeController{
		rooms:  threeRooms(),
		roster: []models.Participant{{ID: "p1", Name: "Alice"}},
		log:    &log,
	}

	orch := NewOrchestrator(controller, NewRoomCache(), nil, nil, testOptions())
	result, err := orch.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	assert.Equal(t, models.CalibrationStateError, result.State)
	for _, entry := range log {
		assert.NotContains(t, entry, "move:")
	}
}

func TestOrchestratorReturnToMainFailureIsSoft(t *testing.T) {
	controller := &fakeController{
		rooms:     threeRooms(),
		roster:    scoutRoster(),
		returnErr: errors.New("scout already left"),
	}

	orch := NewOrchestrator(controller, NewRoomCache(), nil, nil, testOptions())
	result, err := orch.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Success())
}

func TestOrchestratorCancelledBetweenRooms(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var moved int
	controller := &fakeController{rooms: threeRooms(), roster: scoutRoster()}
	controller.moveErrs = nil

	opts := testOptions()
	orch := NewOrchestrator(controller, NewRoomCache(), nil, ProgressFunc(func(p models.CalibrationProgress) {
		if p.State == models.CalibrationStateMoving && p.RoomID != "" {
			moved++
			if moved == 1 {
				cancel()
			}
		}
	}), opts)

	result, err := orch.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.CalibrationStateError, result.State)
	assert.Equal(t, 1, result.NewlyMapped)
}

func TestOrchestratorProgressSequence(t *testing.T) {
	controller := &fakeController{rooms: threeRooms()[:1], roster: scoutRoster()}
	sink := NewChannelSink(64)

	orch := NewOrchestrator(controller, NewRoomCache(), nil, sink, testOptions())
	_, err := orch.Run(context.Background())
	require.NoError(t, err)
	sink.Close()

	var states []models.CalibrationState
	for event := range sink.Events() {
		states = append(states, event.State)
	}

	assert.Equal(t, []models.CalibrationState{
		models.CalibrationStateFetchingRooms,
		models.CalibrationStateRoomsFound,
		models.CalibrationStateFindingBot,
		models.CalibrationStateBotFound,
		models.CalibrationStateMoving,
		models.CalibrationStateReturning,
		models.CalibrationStateComplete,
	}, states)
}
