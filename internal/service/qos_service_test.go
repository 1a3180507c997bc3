// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

type qosFixture struct {
	service  *QoSService
	provider *domain.MockPastMeetingProvider
	qos      *domain.MockQoSRepository
	events   *domain.MockParticipantEventRepository
}

func newQoSFixture() *qosFixture {
	f := &qosFixture{
		provider: &domain.MockPastMeetingProvider{},
		qos:      &domain.MockQoSRepository{},
		events:   &domain.MockParticipantEventRepository{},
	}
	f.service = NewQoSService(f.provider, f.qos, f.events, time.Millisecond)
	f.service.now = func() time.Time {
		return time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	}
	return f
}

func pastParticipants() []models.PastParticipant {
	return []models.PastParticipant{
		{
			UserID:    "p1",
			Name:      "Alice",
			UserEmail: "alice@example.com",
			JoinTime:  "2026-03-10T09:00:00Z",
			LeaveTime: "2026-03-10T10:30:00Z",
			Duration:  5400,
		},
		{
			ID:       "p2",
			Name:     "Bob",
			Duration: 125,
		},
	}
}

func TestCollectStoresRecordsWithCameraData(t *testing.T) {
	f := newQoSFixture()

	f.provider.On("GetPastMeetingParticipants", mock.Anything, "uuid-1").
		Return(pastParticipants(), nil)
	f.provider.On("GetDashboardParticipants", mock.Anything, "uuid-1").
		Return([]models.DashboardParticipant{
			{UserName: "ALICE", Email: "Alice@Example.com", CameraOn: true, Bitrate: "100 kbps"},
		}, nil)

	f.qos.On("Create", mock.Anything, mock.MatchedBy(func(r *models.QoSRecord) bool {
		return r.ParticipantName == "Alice" &&
			r.DurationMinutes == 90 &&
			r.CameraOn &&
			r.CameraBitrate == "100 kbps" &&
			r.EventDate == "2026-03-10"
	})).Return(nil).Once()
	f.qos.On("Create", mock.Anything, mock.MatchedBy(func(r *models.QoSRecord) bool {
		return r.ParticipantName == "Bob" && r.DurationMinutes == 2 && !r.CameraOn
	})).Return(nil).Once()

	stored, err := f.service.Collect(t.Context(), "uuid-1", "84123", "2026-03-10")

	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	f.qos.AssertExpectations(t)
}

func TestCollectFallsBackToMeetingID(t *testing.T) {
	f := newQoSFixture()

	f.provider.On("GetPastMeetingParticipants", mock.Anything, "uuid-1").
		Return(nil, domain.NewNotFoundError("not found"))
	f.provider.On("GetPastMeetingParticipants", mock.Anything, "84123").
		Return(pastParticipants()[:1], nil)
	f.provider.On("GetDashboardParticipants", mock.Anything, "84123").
		Return(nil, domain.NewNotFoundError("not found"))
	f.qos.On("Create", mock.Anything, mock.Anything).Return(nil)

	stored, err := f.service.Collect(t.Context(), "uuid-1", "84123", "")

	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestCollectNoIdentifiers(t *testing.T) {
	f := newQoSFixture()
	_, err := f.service.Collect(t.Context(), "", "", "")
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestCollectAllLookupsFail(t *testing.T) {
	f := newQoSFixture()
	f.provider.On("GetPastMeetingParticipants", mock.Anything, mock.Anything).
		Return(nil, errors.New("zoom down"))

	_, err := f.service.Collect(t.Context(), "uuid-1", "84123", "")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestCollectContinuesPastStorageFailures(t *testing.T) {
	f := newQoSFixture()

	f.provider.On("GetPastMeetingParticipants", mock.Anything, "uuid-1").
		Return(pastParticipants(), nil)
	f.provider.On("GetDashboardParticipants", mock.Anything, "uuid-1").
		Return(nil, errors.New("plan gated"))

	f.qos.On("Create", mock.Anything, mock.MatchedBy(func(r *models.QoSRecord) bool {
		return r.ParticipantName == "Alice"
	})).Return(errors.New("kv unavailable")).Once()
	f.qos.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	stored, err := f.service.Collect(t.Context(), "uuid-1", "", "")

	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestCollectAsyncRunsInBackground(t *testing.T) {
	f := newQoSFixture()

	var wg sync.WaitGroup
	wg.Add(1)
	f.provider.On("GetPastMeetingParticipants", mock.Anything, "uuid-1").
		Return(nil, errors.New("zoom down")).
		Run(func(mock.Arguments) { wg.Done() })
	f.provider.On("GetPastMeetingParticipants", mock.Anything, "84123").
		Return([]models.PastParticipant{}, nil)

	f.service.CollectAsync("uuid-1", "84123")
	wg.Wait()
}

func TestCollectScheduledSkipsWhenRecordsExist(t *testing.T) {
	f := newQoSFixture()

	existing := make([]*models.QoSRecord, 51)
	for i := range existing {
		existing[i] = &models.QoSRecord{}
	}
	f.qos.On("ListByDate", mock.Anything, "2026-03-10").Return(existing, nil)
	f.qos.On("DeleteOlderThan", mock.Anything, "2026-03-09").Return(3, nil)

	result, err := f.service.CollectScheduled(t.Context(), "")

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "2026-03-10", result.EventDate)
	assert.Equal(t, 3, result.RecordsCleaned)
	f.events.AssertNotCalled(t, "ListByDate", mock.Anything, mock.Anything)
}

func TestCollectScheduledCollectsDistinctMeetings(t *testing.T) {
	f := newQoSFixture()

	f.qos.On("ListByDate", mock.Anything, "2026-03-10").Return([]*models.QoSRecord{}, nil)
	f.events.On("ListByDate", mock.Anything, "2026-03-10").Return([]*models.ParticipantEvent{
		{MeetingUUID: "uuid-1"},
		{MeetingUUID: "uuid-1"},
		{MeetingUUID: "uuid-2"},
		{MeetingUUID: ""},
	}, nil)

	for _, uuid := range []string{"uuid-1", "uuid-2"} {
		f.provider.On("GetPastMeetingParticipants", mock.Anything, uuid).
			Return(pastParticipants()[:1], nil)
		f.provider.On("GetDashboardParticipants", mock.Anything, uuid).
			Return([]models.DashboardParticipant{}, nil)
	}
	f.qos.On("Create", mock.Anything, mock.Anything).Return(nil).Times(2)
	f.qos.On("DeleteOlderThan", mock.Anything, "2026-03-09").Return(0, nil)

	result, err := f.service.CollectScheduled(t.Context(), "2026-03-10")

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.ElementsMatch(t, []string{"uuid-1", "uuid-2"}, result.Meetings)
	assert.Equal(t, 2, result.RecordsStored)
	f.qos.AssertExpectations(t)
}

func TestCollectScheduledCapsMeetingCount(t *testing.T) {
	f := newQoSFixture()

	events := make([]*models.ParticipantEvent, 0, 8)
	for _, uuid := range []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"} {
		events = append(events, &models.ParticipantEvent{MeetingUUID: uuid})
	}

	f.qos.On("ListByDate", mock.Anything, "2026-03-10").Return([]*models.QoSRecord{}, nil)
	f.events.On("ListByDate", mock.Anything, "2026-03-10").Return(events, nil)
	f.provider.On("GetPastMeetingParticipants", mock.Anything, mock.Anything).
		Return([]models.PastParticipant{}, nil)
	f.qos.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(0, nil)

	result, err := f.service.CollectScheduled(t.Context(), "2026-03-10")

	require.NoError(t, err)
	assert.Len(t, result.Meetings, scheduledMeetingLimit)
}

func TestStatusReportsLastSevenDays(t *testing.T) {
	f := newQoSFixture()
	f.qos.On("ListByDate", mock.Anything, "2026-03-11").Return([]*models.QoSRecord{{}, {}}, nil)
	f.qos.On("ListByDate", mock.Anything, mock.Anything).Return([]*models.QoSRecord{}, nil)

	statuses, err := f.service.Status(t.Context())

	require.NoError(t, err)
	require.Len(t, statuses, 7)
	assert.Equal(t, "2026-03-11", statuses[0].EventDate)
	assert.Equal(t, 2, statuses[0].Records)
	assert.Equal(t, "2026-03-05", statuses[6].EventDate)
}

func TestCameraKeyNormalizesCase(t *testing.T) {
	assert.Equal(t, cameraKey("Alice", "ALICE@example.com"), cameraKey("alice", "alice@Example.com"))
}

func TestSleepContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Minute), context.Canceled)
}
