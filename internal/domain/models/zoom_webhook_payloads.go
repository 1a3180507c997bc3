// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Zoom webhook event types handled by the service. Zoom has shipped the
// camera events under two names over time, so both spellings are accepted.
const (
	ZoomEventURLValidation           = "endpoint.url_validation"
	ZoomEventMeetingEnded            = "meeting.ended"
	ZoomEventParticipantJoined       = "meeting.participant_joined"
	ZoomEventParticipantLeft         = "meeting.participant_left"
	ZoomEventBreakoutRoomJoined      = "meeting.participant_joined_breakout_room"
	ZoomEventBreakoutRoomLeft        = "meeting.participant_left_breakout_room"
	ZoomEventParticipantVideoOn      = "meeting.participant_video_on"
	ZoomEventParticipantVideoStarted = "meeting.participant_video_started"
	ZoomEventParticipantVideoOff     = "meeting.participant_video_off"
	ZoomEventParticipantVideoStopped = "meeting.participant_video_stopped"
)

// ZoomWebhookParticipant is the participant block shared by the participant
// and breakout room webhook payloads.
type ZoomWebhookParticipant struct {
	UserID            string    `json:"user_id"`
	UserName          string    `json:"user_name"`
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	JoinTime          time.Time `json:"join_time,omitzero"`
	LeaveTime         time.Time `json:"leave_time,omitzero"`
	ParticipantUserID string    `json:"participant_user_id"`
	ParticipantUUID   string    `json:"participant_uuid"`
}

// ZoomParticipantEventPayload represents the payload for
// meeting.participant_joined and meeting.participant_left webhook events.
type ZoomParticipantEventPayload struct {
	Object struct {
		UUID        string                 `json:"uuid"`
		ID          string                 `json:"id"` // Zoom sends as string for participant events
		HostID      string                 `json:"host_id"`
		Topic       string                 `json:"topic"`
		Type        int                    `json:"type"`
		StartTime   time.Time              `json:"start_time"`
		Timezone    string                 `json:"timezone"`
		Participant ZoomWebhookParticipant `json:"participant"`
	} `json:"object"`
}

// ZoomBreakoutRoomEventPayload represents the payload for
// meeting.participant_joined_breakout_room and
// meeting.participant_left_breakout_room webhook events. Depending on account
// settings Zoom reports the room under breakout_room_uuid or room_uuid.
type ZoomBreakoutRoomEventPayload struct {
	Object struct {
		UUID             string                 `json:"uuid"`
		ID               string                 `json:"id"`
		HostID           string                 `json:"host_id"`
		Topic            string                 `json:"topic"`
		Type             int                    `json:"type"`
		StartTime        time.Time              `json:"start_time"`
		Timezone         string                 `json:"timezone"`
		BreakoutRoomUUID string                 `json:"breakout_room_uuid"`
		RoomUUID         string                 `json:"room_uuid"`
		Participant      ZoomWebhookParticipant `json:"participant"`
	} `json:"object"`
}

// RoomIdentifier returns whichever room identifier the payload carried.
func (p *ZoomBreakoutRoomEventPayload) RoomIdentifier() string {
	if p.Object.BreakoutRoomUUID != "" {
		return p.Object.BreakoutRoomUUID
	}
	return p.Object.RoomUUID
}

// ZoomVideoEventPayload represents the payload for the participant camera
// on/off webhook events.
type ZoomVideoEventPayload struct {
	Object struct {
		UUID        string                 `json:"uuid"`
		ID          string                 `json:"id"`
		HostID      string                 `json:"host_id"`
		Topic       string                 `json:"topic"`
		Type        int                    `json:"type"`
		StartTime   time.Time              `json:"start_time"`
		Timezone    string                 `json:"timezone"`
		Participant ZoomWebhookParticipant `json:"participant"`
	} `json:"object"`
}

// ZoomMeetingEndedPayload represents the payload for meeting.ended webhook events
type ZoomMeetingEndedPayload struct {
	Object struct {
		UUID      string    `json:"uuid"`
		ID        string    `json:"id"` // Zoom sends as string in webhook events
		HostID    string    `json:"host_id"`
		Topic     string    `json:"topic"`
		Type      int       `json:"type"`
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
		Duration  int       `json:"duration"`
		Timezone  string    `json:"timezone"`
	} `json:"object"`
}

func convertPayload[T any](payload map[string]interface{}, target *T, name string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal to %s payload: %w", name, err)
	}
	return nil
}

// ToParticipantEventPayload converts the webhook event to a typed participant
// joined/left payload.
func (z *ZoomWebhookEventMessage) ToParticipantEventPayload() (*ZoomParticipantEventPayload, error) {
	if z.EventType != ZoomEventParticipantJoined && z.EventType != ZoomEventParticipantLeft {
		return nil, fmt.Errorf("invalid event type: expected a participant event, got %s", z.EventType)
	}

	var payload ZoomParticipantEventPayload
	if err := convertPayload(z.Payload, &payload, "participant event"); err != nil {
		return nil, err
	}

	return &payload, nil
}

// ToBreakoutRoomEventPayload converts the webhook event to a typed breakout
// room joined/left payload.
func (z *ZoomWebhookEventMessage) ToBreakoutRoomEventPayload() (*ZoomBreakoutRoomEventPayload, error) {
	if z.EventType != ZoomEventBreakoutRoomJoined && z.EventType != ZoomEventBreakoutRoomLeft {
		return nil, fmt.Errorf("invalid event type: expected a breakout room event, got %s", z.EventType)
	}

	var payload ZoomBreakoutRoomEventPayload
	if err := convertPayload(z.Payload, &payload, "breakout room event"); err != nil {
		return nil, err
	}

	return &payload, nil
}

// ToVideoEventPayload converts the webhook event to a typed camera on/off payload.
func (z *ZoomWebhookEventMessage) ToVideoEventPayload() (*ZoomVideoEventPayload, error) {
	switch z.EventType {
	case ZoomEventParticipantVideoOn, ZoomEventParticipantVideoStarted,
		ZoomEventParticipantVideoOff, ZoomEventParticipantVideoStopped:
	default:
		return nil, fmt.Errorf("invalid event type: expected a camera event, got %s", z.EventType)
	}

	var payload ZoomVideoEventPayload
	if err := convertPayload(z.Payload, &payload, "camera event"); err != nil {
		return nil, err
	}

	return &payload, nil
}

// ToMeetingEndedPayload converts the webhook event to a typed meeting ended payload
func (z *ZoomWebhookEventMessage) ToMeetingEndedPayload() (*ZoomMeetingEndedPayload, error) {
	if z.EventType != ZoomEventMeetingEnded {
		return nil, fmt.Errorf("invalid event type: expected meeting.ended, got %s", z.EventType)
	}

	var payload ZoomMeetingEndedPayload
	if err := convertPayload(z.Payload, &payload, "meeting ended"); err != nil {
		return nil, err
	}

	return &payload, nil
}

// CameraOn reports whether the event type is one of the camera-on spellings.
func CameraOn(eventType string) bool {
	return eventType == ZoomEventParticipantVideoOn || eventType == ZoomEventParticipantVideoStarted
}
