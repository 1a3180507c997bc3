// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package models

import "time"

// Sources for a room mapping. SDK mappings come from the in-meeting companion
// app during calibration; webhook-calibration mappings are learned by matching
// a pending scout move against the breakout join webhook that follows it.
const (
	MappingSourceSDKApp             = "zoom_sdk_app"
	MappingSourceWebhookCalibration = "webhook_calibration"
)

// RoomMapping binds a breakout room UUID to its human-readable name.
// The SDK and webhook surfaces report different UUIDs for the same room, so a
// room typically ends up with one mapping per source.
type RoomMapping struct {
	MappingID   string    `json:"mapping_id"`
	MeetingID   string    `json:"meeting_id"`
	MeetingUUID string    `json:"meeting_uuid"`
	RoomUUID    string    `json:"room_uuid"`
	RoomName    string    `json:"room_name"`
	RoomIndex   int       `json:"room_index"`
	MappingDate string    `json:"mapping_date"` // YYYY-MM-DD
	MappedAt    time.Time `json:"mapped_at"`
	Source      string    `json:"source"`
}

// RoomMappingEntry is the lightweight name/UUID pair exchanged with the
// in-meeting companion app. RoomIndex is a pointer so an explicit index 0 can
// be told apart from an entry that carries no index at all.
type RoomMappingEntry struct {
	RoomUUID  string `json:"room_uuid"`
	RoomName  string `json:"room_name"`
	RoomIndex *int   `json:"room_index,omitempty"`
}
