// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package service contains the business logic for webhook event capture,
// calibration, QoS collection and reporting.
package service

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// webhookUUIDPrefixLen is the number of leading characters of a webhook room
// UUID that is stable enough to match on. Zoom reports different UUID formats
// between the SDK and webhooks, so mappings are also indexed by this prefix.
const webhookUUIDPrefixLen = 8

// ParticipantState tracks a single participant within the current meeting.
type ParticipantState struct {
	CameraOn      bool
	CameraOnSince *time.Time
	CurrentRoom   string
	JoinedAt      *time.Time
}

// PendingRoomMove is one queued calibration move awaiting its matching
// breakout-room webhook.
type PendingRoomMove struct {
	RoomName    string
	SDKUUID     string
	QueuedAt    time.Time
	Matched     bool
	WebhookUUID string
}

// MeetingState holds the in-memory state of the current meeting. It resets
// whenever a new meeting ID or a new date is observed. All methods are safe
// for concurrent use.
type MeetingState struct {
	mu sync.Mutex

	meetingID   string
	meetingUUID string
	meetingDate string

	uuidToName map[string]string
	nameToUUID map[string]string

	calibrationInProgress      bool
	calibrationComplete        bool
	calibratedAt               *time.Time
	calibrationParticipantName string
	scoutCurrentRoom           string
	pendingMoves               []*PendingRoomMove

	participants map[string]*ParticipantState
}

// NewMeetingState creates an empty meeting state.
func NewMeetingState() *MeetingState {
	s := &MeetingState{}
	s.resetLocked()
	return s
}

// PreviousMeeting identifies a meeting that was superseded by a newer one and
// still needs its QoS data collected.
type PreviousMeeting struct {
	MeetingID   string
	MeetingUUID string
}

// SetMeeting records the current meeting. When the meeting ID or the date
// changes, all state is reset and the previous meeting (if its UUID differs)
// is returned so the caller can trigger QoS collection and clear same-day
// mappings.
func (s *MeetingState) SetMeeting(meetingID, meetingUUID string, now time.Time) (*PreviousMeeting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := now.UTC().Format(time.DateOnly)
	if s.meetingID == meetingID && s.meetingDate == today {
		if meetingUUID != "" && s.meetingUUID == "" {
			s.meetingUUID = meetingUUID
		}
		return nil, false
	}

	var previous *PreviousMeeting
	if s.meetingUUID != "" && s.meetingUUID != meetingUUID {
		previous = &PreviousMeeting{
			MeetingID:   s.meetingID,
			MeetingUUID: s.meetingUUID,
		}
	}

	slog.Info("new meeting detected, resetting state",
		"meeting_id", meetingID, "meeting_date", today)

	s.resetLocked()
	s.meetingID = meetingID
	s.meetingUUID = meetingUUID
	s.meetingDate = today

	return previous, true
}

// Reset clears all meeting state.
func (s *MeetingState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *MeetingState) resetLocked() {
	s.meetingID = ""
	s.meetingUUID = ""
	s.meetingDate = ""
	s.uuidToName = make(map[string]string)
	s.nameToUUID = make(map[string]string)
	s.calibrationInProgress = false
	s.calibrationComplete = false
	s.calibratedAt = nil
	s.calibrationParticipantName = ""
	s.scoutCurrentRoom = ""
	s.pendingMoves = nil
	s.participants = make(map[string]*ParticipantState)
}

// MeetingID returns the current meeting ID.
func (s *MeetingState) MeetingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meetingID
}

// MeetingUUID returns the current meeting UUID.
func (s *MeetingState) MeetingUUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meetingUUID
}

// AddRoomMapping records a room UUID to name mapping from the SDK app. The
// UUID is also indexed without braces and lowercased since Zoom is not
// consistent about the format across surfaces.
func (s *MeetingState) AddRoomMapping(roomUUID, roomName string) {
	if roomUUID == "" || roomName == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.uuidToName[roomUUID] = roomName
	s.nameToUUID[roomName] = roomUUID

	stripped := stripBraces(roomUUID)
	if stripped != roomUUID {
		s.uuidToName[stripped] = roomName
	}
	s.uuidToName[strings.ToLower(roomUUID)] = roomName
	s.uuidToName[strings.ToLower(stripped)] = roomName
}

// AddWebhookRoomMapping records a mapping learned from a calibration webhook.
// Webhook UUIDs use a different format than SDK UUIDs, so the leading prefix
// is indexed as well.
func (s *MeetingState) AddWebhookRoomMapping(webhookUUID, roomName string) {
	if webhookUUID == "" || roomName == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.uuidToName[webhookUUID] = roomName
	if len(webhookUUID) >= webhookUUIDPrefixLen {
		prefix := webhookUUID[:webhookUUIDPrefixLen]
		if _, exists := s.uuidToName[prefix]; !exists {
			s.uuidToName[prefix] = roomName
		}
	}
}

// RoomName resolves a room UUID to its mapped name. Returns "" when unknown.
func (s *MeetingState) RoomName(roomUUID string) string {
	if roomUUID == "" {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if name, ok := s.uuidToName[roomUUID]; ok {
		return name
	}
	return s.uuidToName[stripBraces(roomUUID)]
}

// MappingCount returns the number of UUID keys currently mapped.
func (s *MeetingState) MappingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uuidToName)
}

// RoomNames returns the mapped room names, sorted.
func (s *MeetingState) RoomNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.nameToUUID))
	for name := range s.nameToUUID {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mappings returns a room-name to UUID snapshot, sorted by room name.
func (s *MeetingState) Mappings() []models.RoomMappingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.RoomMappingEntry, 0, len(s.nameToUUID))
	for name, uuid := range s.nameToUUID {
		entries = append(entries, models.RoomMappingEntry{RoomName: name, RoomUUID: uuid})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RoomName < entries[j].RoomName })
	return entries
}

// BeginCalibration marks a calibration session as in progress and clears any
// previously queued moves.
func (s *MeetingState) BeginCalibration(participantName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calibrationInProgress = true
	s.calibrationComplete = false
	s.calibratedAt = nil
	s.calibrationParticipantName = participantName
	s.pendingMoves = nil
}

// FinishCalibration marks calibration as finished.
func (s *MeetingState) FinishCalibration(success bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calibrationInProgress = false
	s.calibrationComplete = success
	s.calibratedAt = &at
}

// CalibrationInProgress reports whether a calibration session is active.
func (s *MeetingState) CalibrationInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrationInProgress
}

// CalibrationComplete reports whether calibration finished successfully and
// when.
func (s *MeetingState) CalibrationComplete() (bool, *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrationComplete, s.calibratedAt
}

// CalibrationParticipantName returns the name of the participant performing
// calibration, if set.
func (s *MeetingState) CalibrationParticipantName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrationParticipantName
}

// QueuePendingMove records that the calibration participant is being moved to
// a room, awaiting the matching webhook.
func (s *MeetingState) QueuePendingMove(roomName, sdkUUID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scoutCurrentRoom = roomName
	s.pendingMoves = append(s.pendingMoves, &PendingRoomMove{
		RoomName: roomName,
		SDKUUID:  sdkUUID,
		QueuedAt: at,
	})
}

// MatchPendingMove matches a breakout-room webhook UUID against the oldest
// unmatched pending move. When no pending move exists, the calibration
// participant's last known room is used as a fallback. The returned index is
// the number of moves matched so far including this one; -1 means the match
// came from the fallback.
func (s *MeetingState) MatchPendingMove(webhookUUID string) (roomName string, roomIndex int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, move := range s.pendingMoves {
		if !move.Matched {
			move.Matched = true
			move.WebhookUUID = webhookUUID
			return move.RoomName, s.matchedMovesLocked(), true
		}
	}

	if s.scoutCurrentRoom != "" {
		return s.scoutCurrentRoom, -1, true
	}
	return "", 0, false
}

// PendingMoveCounts returns how many pending moves have and have not been
// matched to a webhook yet.
func (s *MeetingState) PendingMoveCounts() (matched, unmatched int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched = s.matchedMovesLocked()
	return matched, len(s.pendingMoves) - matched
}

func (s *MeetingState) matchedMovesLocked() int {
	count := 0
	for _, move := range s.pendingMoves {
		if move.Matched {
			count++
		}
	}
	return count
}

// Participant returns the state for a participant, creating it if needed.
func (s *MeetingState) Participant(participantID string) ParticipantState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.participantLocked(participantID)
}

func (s *MeetingState) participantLocked(participantID string) *ParticipantState {
	state, ok := s.participants[participantID]
	if !ok {
		state = &ParticipantState{}
		s.participants[participantID] = state
	}
	return state
}

// SetParticipantJoined records a participant joining the main room.
func (s *MeetingState) SetParticipantJoined(participantID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.participantLocked(participantID)
	state.JoinedAt = &at
	state.CurrentRoom = models.MainRoomName
}

// SetParticipantRoom records the room a participant is currently in.
func (s *MeetingState) SetParticipantRoom(participantID, roomName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participantLocked(participantID).CurrentRoom = roomName
}

// UpdateCameraState transitions a participant's camera state. It returns the
// time the camera was last turned on, which the caller reads before a
// camera-off transition to compute the on-duration.
func (s *MeetingState) UpdateCameraState(participantID string, cameraOn bool, at time.Time) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.participantLocked(participantID)
	onSince := state.CameraOnSince

	if cameraOn && !state.CameraOn {
		state.CameraOn = true
		state.CameraOnSince = &at
	} else if !cameraOn && state.CameraOn {
		state.CameraOn = false
		state.CameraOnSince = nil
	}

	return onSince
}

// TrackedParticipants returns how many participants have state recorded.
func (s *MeetingState) TrackedParticipants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// Snapshot is a point-in-time view of the meeting state for diagnostics.
type Snapshot struct {
	MeetingID           string                      `json:"meeting_id"`
	MeetingUUID         string                      `json:"meeting_uuid"`
	MeetingDate         string                      `json:"meeting_date"`
	CalibrationComplete bool                        `json:"calibration_complete"`
	RoomsMapped         int                         `json:"rooms_mapped"`
	TrackedParticipants int                         `json:"tracked_participants"`
	Participants        map[string]ParticipantState `json:"participants"`
}

// Snapshot returns a copy of the current state for the debug endpoints.
func (s *MeetingState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants := make(map[string]ParticipantState, len(s.participants))
	for id, state := range s.participants {
		participants[id] = *state
	}

	return Snapshot{
		MeetingID:           s.meetingID,
		MeetingUUID:         s.meetingUUID,
		MeetingDate:         s.meetingDate,
		CalibrationComplete: s.calibrationComplete,
		RoomsMapped:         len(s.uuidToName),
		TrackedParticipants: len(s.participants),
		Participants:        participants,
	}
}

func stripBraces(uuid string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(uuid)
}
