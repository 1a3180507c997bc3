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

// NatsRoomMappingRepository is the NATS KV store repository for room mappings.
type NatsRoomMappingRepository struct {
	*NatsBaseRepository[models.RoomMapping]
	keyBuilder *KeyBuilder
}

// NewNatsRoomMappingRepository creates a new NATS KV store repository for room mappings.
func NewNatsRoomMappingRepository(kvStore INatsKeyValue) *NatsRoomMappingRepository {
	return &NatsRoomMappingRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.RoomMapping](kvStore, "room mapping"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

// Create stores a room mapping under a date-scoped key.
func (s *NatsRoomMappingRepository) Create(ctx context.Context, mapping *models.RoomMapping) error {
	if mapping.MappingID == "" {
		mapping.MappingID = uuid.New().String()
	}
	if mapping.MappedAt.IsZero() {
		mapping.MappedAt = time.Now().UTC()
	}
	if mapping.MappingDate == "" {
		mapping.MappingDate = mapping.MappedAt.Format(time.DateOnly)
	}

	key := s.keyBuilder.DateScopedKeyEncoded(KeyPrefixMapping, mapping.MappingDate, mapping.MappingID)
	return s.NatsBaseRepository.Create(ctx, key, mapping)
}

// ListByDate returns every room mapping of one date, newest first.
func (s *NatsRoomMappingRepository) ListByDate(ctx context.Context, date string) ([]*models.RoomMapping, error) {
	pattern := s.keyBuilder.DatePrefix(KeyPrefixMapping, date)
	mappings, err := s.ListEntitiesEncoded(ctx, pattern, s.keyBuilder)
	if err != nil {
		return nil, err
	}

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].MappedAt.After(mappings[j].MappedAt)
	})
	return mappings, nil
}

// DeleteByDate removes every room mapping of one date. Used when the meeting
// state resets so stale same-day bindings cannot shadow a recalibration.
func (s *NatsRoomMappingRepository) DeleteByDate(ctx context.Context, date string) (int, error) {
	pattern := s.keyBuilder.DatePrefix(KeyPrefixMapping, date)
	return s.DeleteEntitiesEncoded(ctx, pattern, s.keyBuilder)
}
