// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package models

import "time"

// QoSRecord is one participant's quality-of-service summary for a finished
// meeting, assembled from the past-meeting participants API joined with the
// dashboard camera data.
type QoSRecord struct {
	QoSID              string    `json:"qos_id"`
	MeetingUUID        string    `json:"meeting_uuid"`
	ParticipantID      string    `json:"participant_id"`
	ParticipantName    string    `json:"participant_name"`
	ParticipantEmail   string    `json:"participant_email"`
	JoinTime           string    `json:"join_time"`
	LeaveTime          string    `json:"leave_time"`
	DurationMinutes    int       `json:"duration_minutes"`
	AttentivenessScore string    `json:"attentiveness_score"`
	CameraOn           bool      `json:"camera_on"`
	CameraBitrate      string    `json:"camera_bitrate,omitempty"`
	CameraResolution   string    `json:"camera_resolution,omitempty"`
	RecordedAt         time.Time `json:"recorded_at"`
	EventDate          string    `json:"event_date"` // YYYY-MM-DD
}
