// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package models

import "time"

// CalibrationState is the phase a calibration run is in. Transitions are
// linear; Error is the only terminal state besides Complete.
type CalibrationState string

const (
	CalibrationStateIdle          CalibrationState = "idle"
	CalibrationStateFetchingRooms CalibrationState = "fetching_rooms"
	CalibrationStateRoomsFound    CalibrationState = "rooms_found"
	CalibrationStateFindingBot    CalibrationState = "finding_bot"
	CalibrationStateBotFound      CalibrationState = "bot_found"
	CalibrationStateMoving        CalibrationState = "moving"
	CalibrationStateReturning     CalibrationState = "returning"
	CalibrationStateComplete      CalibrationState = "complete"
	CalibrationStateError         CalibrationState = "error"
)

// BreakoutRoom is a breakout room as reported by the in-meeting SDK surface.
type BreakoutRoom struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Index            int    `json:"index"`
	ParticipantCount int    `json:"participant_count,omitempty"`
}

// Participant is one roster entry from the in-meeting SDK surface.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Host  bool   `json:"host,omitempty"`
}

// CalibrationProgress is one entry in the typed progress sequence a
// calibration run emits. Room fields are set only for per-room events; for
// the moving state they identify the room before the physical move happens.
type CalibrationProgress struct {
	State     CalibrationState `json:"state"`
	Message   string           `json:"message"`
	RoomID    string           `json:"room_id,omitempty"`
	RoomName  string           `json:"room_name,omitempty"`
	RoomIndex int              `json:"room_index,omitempty"`
	Total     int              `json:"total,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// MappedRoom is one room's outcome in a calibration result.
type MappedRoom struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	RoomIndex int       `json:"room_index"`
	FromCache bool      `json:"from_cache"`
	Attempts  int       `json:"attempts,omitempty"`
	MappedAt  time.Time `json:"mapped_at"`
}

// RoomFailure records a room the scout could not be moved into.
type RoomFailure struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// CalibrationResult summarizes a finished calibration run. Success means the
// failure list is empty.
type CalibrationResult struct {
	MeetingID   string           `json:"meeting_id"`
	State       CalibrationState `json:"state"`
	Mapped      []MappedRoom     `json:"mapped"`
	Failures    []RoomFailure    `json:"failures"`
	NewlyMapped int              `json:"newly_mapped"`
	FromCache   int              `json:"from_cache"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Success reports whether every room was mapped.
func (r *CalibrationResult) Success() bool {
	return len(r.Failures) == 0
}

// MoveOutcome is the result of a move-with-retry against one room.
type MoveOutcome struct {
	Moved    bool   `json:"moved"`
	Attempts int    `json:"attempts"`
	LastErr  string `json:"last_error,omitempty"`
}
