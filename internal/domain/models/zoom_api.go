// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package models

// PastParticipant is one entry from the Zoom past-meeting participants API.
// Duration is reported in seconds. AttentivenessScore is only present on
// Business+ accounts and may be a string or a number on the wire.
type PastParticipant struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	Name               string `json:"name"`
	UserEmail          string `json:"user_email"`
	JoinTime           string `json:"join_time"`
	LeaveTime          string `json:"leave_time"`
	Duration           int    `json:"duration"`
	AttentivenessScore string `json:"attentiveness_score,omitempty"`
}

// DashboardParticipant is one entry from the Zoom dashboard metrics API with
// the camera status derived from its QoS video output stats. CameraOn is true
// when any QoS sample reported a video output bitrate. The bitrate is kept in
// Zoom's display form (e.g. "100 kbps").
type DashboardParticipant struct {
	ID         string `json:"id"`
	UserName   string `json:"user_name"`
	Email      string `json:"email"`
	CameraOn   bool   `json:"camera_on"`
	Bitrate    string `json:"bitrate,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	FrameRate  string `json:"frame_rate,omitempty"`
}
