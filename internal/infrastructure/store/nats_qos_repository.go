// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// NatsQoSRepository is the NATS KV store repository for quality-of-service
// records. Keys carry both the date and the meeting UUID so records can be
// listed either way.
type NatsQoSRepository struct {
	*NatsBaseRepository[models.QoSRecord]
	keyBuilder *KeyBuilder
}

// NewNatsQoSRepository creates a new NATS KV store repository for QoS records.
func NewNatsQoSRepository(kvStore INatsKeyValue) *NatsQoSRepository {
	return &NatsQoSRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.QoSRecord](kvStore, "qos record"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

func (s *NatsQoSRepository) key(record *models.QoSRecord) string {
	decoded := s.keyBuilder.CompoundKey(KeyPrefixQoS, record.EventDate, record.MeetingUUID, record.QoSID)
	encoded, err := s.keyBuilder.EncodeKey(decoded)
	if err != nil {
		slog.Error("error encoding qos key", logging.ErrKey, err, "key", decoded)
		return decoded
	}
	return encoded
}

// Create stores a QoS record.
func (s *NatsQoSRepository) Create(ctx context.Context, record *models.QoSRecord) error {
	if record.QoSID == "" {
		record.QoSID = uuid.New().String()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	if record.EventDate == "" {
		record.EventDate = record.RecordedAt.Format(time.DateOnly)
	}

	return s.NatsBaseRepository.Create(ctx, s.key(record), record)
}

// ListByDate returns every QoS record of one date.
func (s *NatsQoSRepository) ListByDate(ctx context.Context, date string) ([]*models.QoSRecord, error) {
	pattern := s.keyBuilder.DatePrefix(KeyPrefixQoS, date)
	records, err := s.ListEntitiesEncoded(ctx, pattern, s.keyBuilder)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ParticipantName < records[j].ParticipantName
	})
	return records, nil
}

// ListByMeetingUUID returns every QoS record of one meeting.
func (s *NatsQoSRepository) ListByMeetingUUID(ctx context.Context, meetingUUID string) ([]*models.QoSRecord, error) {
	pattern := fmt.Sprintf("/%s/", meetingUUID)
	return s.ListEntitiesEncoded(ctx, pattern, s.keyBuilder)
}

// DeleteOlderThan removes every QoS record whose date sorts strictly before
// the cutoff date (YYYY-MM-DD) and returns the number removed.
func (s *NatsQoSRepository) DeleteOlderThan(ctx context.Context, cutoffDate string) (int, error) {
	keys, err := s.ListKeys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, encodedKey := range keys {
		decodedKey, err := s.keyBuilder.DecodeKey(encodedKey)
		if err != nil {
			slog.WarnContext(ctx, "failed to decode key, skipping",
				"encoded_key", encodedKey, logging.ErrKey, err)
			continue
		}

		// Decoded form is "/qos/<date>/<meeting-uuid>/<id>".
		parts := strings.Split(strings.TrimPrefix(decodedKey, "/"), "/")
		if len(parts) < 2 || parts[0] != KeyPrefixQoS {
			continue
		}
		if parts[1] >= cutoffDate {
			continue
		}

		if err := s.DeleteWithoutRevision(ctx, encodedKey); err != nil {
			slog.WarnContext(ctx, "failed to delete qos record, skipping",
				"key", encodedKey, logging.ErrKey, err)
			continue
		}
		deleted++
	}

	return deleted, nil
}
