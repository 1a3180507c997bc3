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

// NatsParticipantEventRepository is the NATS KV store repository for
// attendance events.
type NatsParticipantEventRepository struct {
	*NatsBaseRepository[models.ParticipantEvent]
	keyBuilder *KeyBuilder
}

// NewNatsParticipantEventRepository creates a new NATS KV store repository for attendance events.
func NewNatsParticipantEventRepository(kvStore INatsKeyValue) *NatsParticipantEventRepository {
	return &NatsParticipantEventRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.ParticipantEvent](kvStore, "participant event"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

// Create stores an attendance event under a date-scoped key.
func (s *NatsParticipantEventRepository) Create(ctx context.Context, event *models.ParticipantEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.InsertedAt.IsZero() {
		event.InsertedAt = time.Now().UTC()
	}

	key := s.keyBuilder.DateScopedKeyEncoded(KeyPrefixEvent, event.EventDate, event.EventID)
	return s.NatsBaseRepository.Create(ctx, key, event)
}

// ListByDate returns every attendance event of one date, ordered by event
// timestamp.
func (s *NatsParticipantEventRepository) ListByDate(ctx context.Context, date string) ([]*models.ParticipantEvent, error) {
	pattern := s.keyBuilder.DatePrefix(KeyPrefixEvent, date)
	events, err := s.ListEntitiesEncoded(ctx, pattern, s.keyBuilder)
	if err != nil {
		return nil, err
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].EventTimestamp.Before(events[j].EventTimestamp)
	})
	return events, nil
}
