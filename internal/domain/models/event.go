// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package models contains the domain models for the breakout tracker service.
package models

import "time"

// Participant event types stored by the capture pipeline.
const (
	EventTypeParticipantJoined  = "participant_joined"
	EventTypeParticipantLeft    = "participant_left"
	EventTypeBreakoutRoomJoined = "breakout_room_joined"
	EventTypeBreakoutRoomLeft   = "breakout_room_left"
	EventTypeCameraOn           = "camera_on"
	EventTypeCameraOff          = "camera_off"
)

// MainRoomName is the room name recorded for events that happen outside any
// breakout room.
const MainRoomName = "Main Room"

// ParticipantEvent is one attendance event captured from a Zoom webhook.
type ParticipantEvent struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	EventTimestamp   time.Time `json:"event_timestamp"`
	EventDate        string    `json:"event_date"` // YYYY-MM-DD, used as the list prefix for reports
	MeetingID        string    `json:"meeting_id"`
	MeetingUUID      string    `json:"meeting_uuid"`
	ParticipantID    string    `json:"participant_id"`
	ParticipantName  string    `json:"participant_name"`
	ParticipantEmail string    `json:"participant_email"`
	RoomUUID         string    `json:"room_uuid"`
	RoomName         string    `json:"room_name"`
	InsertedAt       time.Time `json:"inserted_at"`
}

// CameraEvent is one camera on/off event captured from a Zoom webhook.
// DurationSeconds is set on camera-off events when the preceding camera-on
// time is known; nil means no usable duration.
type CameraEvent struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	EventTimestamp   time.Time `json:"event_timestamp"`
	EventDate        string    `json:"event_date"`
	EventTime        string    `json:"event_time"` // HH:MM:SS
	MeetingID        string    `json:"meeting_id"`
	MeetingUUID      string    `json:"meeting_uuid"`
	ParticipantID    string    `json:"participant_id"`
	ParticipantName  string    `json:"participant_name"`
	ParticipantEmail string    `json:"participant_email"`
	CameraOn         bool      `json:"camera_on"`
	RoomName         string    `json:"room_name"`
	DurationSeconds  *int      `json:"duration_seconds,omitempty"`
	InsertedAt       time.Time `json:"inserted_at"`
}
