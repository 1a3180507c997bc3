// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// RoomController defines the interface to the in-meeting breakout room
// surface. The production implementation bridges to the companion SDK app
// over NATS request/reply; tests use in-memory fakes.
type RoomController interface {
	// ListRooms returns the currently open breakout rooms.
	ListRooms(ctx context.Context, meetingID string) ([]models.BreakoutRoom, error)

	// ListRoster returns the participants currently in the meeting.
	ListRoster(ctx context.Context, meetingID string) ([]models.Participant, error)

	// MoveParticipant moves a participant into a breakout room.
	MoveParticipant(ctx context.Context, meetingID, participantID, roomID string) error

	// ReturnToMain returns a participant to the main room.
	ReturnToMain(ctx context.Context, meetingID, participantID string) error
}

// ParticipantMover is the single-operation subset of RoomController used by
// the move retry helper.
type ParticipantMover interface {
	MoveParticipant(ctx context.Context, meetingID, participantID, roomID string) error
}

// PastMeetingProvider defines the interface to the Zoom REST surface used by
// QoS collection.
type PastMeetingProvider interface {
	// GetPastMeetingParticipants returns the final participant list of an
	// ended meeting, following pagination.
	GetPastMeetingParticipants(ctx context.Context, meetingUUID string) ([]models.PastParticipant, error)

	// GetDashboardParticipants returns per-participant dashboard data for an
	// ended meeting, including camera status derived from video output stats.
	GetDashboardParticipants(ctx context.Context, meetingUUID string) ([]models.DashboardParticipant, error)
}
