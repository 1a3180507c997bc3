// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package models

// NATS subjects used by the breakout tracker service.
const (
	// Zoom webhook events republished by the HTTP layer for async processing.
	ZoomWebhookMeetingEndedSubject                  = "breakout-tracker.webhook.zoom.meeting.ended"
	ZoomWebhookMeetingParticipantJoinedSubject      = "breakout-tracker.webhook.zoom.meeting.participant_joined"
	ZoomWebhookMeetingParticipantLeftSubject        = "breakout-tracker.webhook.zoom.meeting.participant_left"
	ZoomWebhookBreakoutRoomParticipantJoinedSubject = "breakout-tracker.webhook.zoom.meeting.participant_joined_breakout_room"
	ZoomWebhookBreakoutRoomParticipantLeftSubject   = "breakout-tracker.webhook.zoom.meeting.participant_left_breakout_room"
	ZoomWebhookMeetingParticipantVideoOnSubject     = "breakout-tracker.webhook.zoom.meeting.participant_video_on"
	ZoomWebhookMeetingParticipantVideoOffSubject    = "breakout-tracker.webhook.zoom.meeting.participant_video_off"

	// CalibrationMappingSubject carries mapping notifications emitted while a
	// calibration run is in flight, so the webhook capture side can bind room
	// names before the corresponding breakout join event arrives.
	CalibrationMappingSubject = "breakout-tracker.calibration.mapping"

	// CalibrationStartedSubject and CalibrationCompletedSubject bracket a
	// calibration run.
	CalibrationStartedSubject   = "breakout-tracker.calibration.started"
	CalibrationCompletedSubject = "breakout-tracker.calibration.completed"

	// Room controller bridge subjects. The in-meeting companion app subscribes
	// to these and answers over NATS request/reply.
	RoomControllerListRoomsSubject    = "breakout-tracker.rooms.list"
	RoomControllerListRosterSubject   = "breakout-tracker.rooms.roster"
	RoomControllerMoveSubject         = "breakout-tracker.rooms.move"
	RoomControllerReturnToMainSubject = "breakout-tracker.rooms.return_to_main"
)

// ZoomWebhookEventMessage is the schema for Zoom webhook events sent via NATS
// for async processing. The payload is kept untyped here; handlers convert it
// to the typed payload structs.
type ZoomWebhookEventMessage struct {
	EventType string                 `json:"event_type"`
	EventTS   int64                  `json:"event_ts"`
	Payload   map[string]interface{} `json:"payload"`
}

// CalibrationMappingMessage is the schema for mapping notifications published
// on CalibrationMappingSubject.
type CalibrationMappingMessage struct {
	MeetingID string       `json:"meeting_id"`
	Mapping   *RoomMapping `json:"mapping"`
}

// CalibrationLifecycleMessage is the schema for calibration start/complete
// notifications.
type CalibrationLifecycleMessage struct {
	MeetingID      string `json:"meeting_id"`
	State          string `json:"state,omitempty"`
	RoomsMapped    int    `json:"rooms_mapped,omitempty"`
	RoomsFromCache int    `json:"rooms_from_cache,omitempty"`
	Failures       int    `json:"failures,omitempty"`
}

// RoomControllerRequest is the request schema for the room controller bridge.
type RoomControllerRequest struct {
	MeetingID     string `json:"meeting_id"`
	ParticipantID string `json:"participant_id,omitempty"`
	RoomID        string `json:"room_id,omitempty"`
}

// RoomControllerResponse is the reply schema for the room controller bridge.
// Exactly one of Rooms or Roster is set for the list operations; Error is set
// when the companion app could not perform the operation.
type RoomControllerResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Rooms   []BreakoutRoom `json:"rooms,omitempty"`
	Roster  []Participant  `json:"roster,omitempty"`
}
