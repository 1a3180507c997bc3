// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// ParticipantEventRepository defines the interface for attendance event storage.
// This interface can be implemented by different storage backends (NATS KV, SQL, etc.)
type ParticipantEventRepository interface {
	Create(ctx context.Context, event *models.ParticipantEvent) error
	ListByDate(ctx context.Context, date string) ([]*models.ParticipantEvent, error)
}

// CameraEventRepository defines the interface for camera event storage.
type CameraEventRepository interface {
	Create(ctx context.Context, event *models.CameraEvent) error
	ListByDate(ctx context.Context, date string) ([]*models.CameraEvent, error)
}

// RoomMappingRepository defines the interface for room mapping storage.
type RoomMappingRepository interface {
	Create(ctx context.Context, mapping *models.RoomMapping) error
	ListByDate(ctx context.Context, date string) ([]*models.RoomMapping, error)
	DeleteByDate(ctx context.Context, date string) (int, error)
}

// QoSRepository defines the interface for quality-of-service record storage.
type QoSRepository interface {
	Create(ctx context.Context, record *models.QoSRecord) error
	ListByDate(ctx context.Context, date string) ([]*models.QoSRecord, error)
	ListByMeetingUUID(ctx context.Context, meetingUUID string) ([]*models.QoSRecord, error)
	DeleteOlderThan(ctx context.Context, cutoffDate string) (int, error)
}
