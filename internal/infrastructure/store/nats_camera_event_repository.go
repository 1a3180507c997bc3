// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// NatsCameraEventRepository is the NATS KV store repository for camera events.
type NatsCameraEventRepository struct {
	*NatsBaseRepository[models.CameraEvent]
	keyBuilder *KeyBuilder
}

// NewNatsCameraEventRepository creates a new NATS KV store repository for camera events.
func NewNatsCameraEventRepository(kvStore INatsKeyValue) *NatsCameraEventRepository {
	return &NatsCameraEventRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.CameraEvent](kvStore, "camera event"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

// Create stores a camera event under a date-scoped key.
func (s *NatsCameraEventRepository) Create(ctx context.Context, event *models.CameraEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.InsertedAt.IsZero() {
		event.InsertedAt = time.Now().UTC()
	}

	key := s.keyBuilder.DateScopedKeyEncoded(KeyPrefixCamera, event.EventDate, event.EventID)
	return s.NatsBaseRepository.Create(ctx, key, event)
}

// ListByDate returns every camera event of one date, ordered by event timestamp.
func (s *NatsCameraEventRepository) ListByDate(ctx context.Context, date string) ([]*models.CameraEvent, error) {
	pattern := s.keyBuilder.DatePrefix(KeyPrefixCamera, date)
	events, err := s.ListEntitiesEncoded(ctx, pattern, s.keyBuilder)
	if err != nil {
		return nil, err
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].EventTimestamp.Before(events[j].EventTimestamp)
	})
	return events, nil
}
