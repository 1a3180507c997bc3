// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/service"
)

type webhookHandlerFixture struct {
	handler  *ZoomWebhookHandler
	events   *domain.MockParticipantEventRepository
	cameras  *domain.MockCameraEventRepository
	mappings *domain.MockRoomMappingRepository
}

func newWebhookHandlerFixture() *webhookHandlerFixture {
	events := &domain.MockParticipantEventRepository{}
	cameras := &domain.MockCameraEventRepository{}
	mappings := &domain.MockRoomMappingRepository{}

	eventService := service.NewEventService(
		service.NewMeetingState(),
		events,
		cameras,
		mappings,
		nil,
		"Scout Bot",
		"scout@example.com",
	)

	return &webhookHandlerFixture{
		handler:  NewZoomWebhookHandler(eventService),
		events:   events,
		cameras:  cameras,
		mappings: mappings,
	}
}

func participantJoinedMessage(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(models.ZoomWebhookEventMessage{
		EventType: models.ZoomEventParticipantJoined,
		EventTS:   time.Now().UnixMilli(),
		Payload: map[string]interface{}{
			"object": map[string]interface{}{
				"uuid":  "meeting-uuid-1",
				"id":    "84123456789",
				"topic": "Daily Session",
				"participant": map[string]interface{}{
					"user_id":   "user-1",
					"user_name": "Alice Example",
					"email":     "alice@example.com",
				},
			},
		},
	})
	require.NoError(t, err)
	return data
}

func TestHandlerReady(t *testing.T) {
	fixture := newWebhookHandlerFixture()
	assert.True(t, fixture.handler.HandlerReady())

	empty := NewZoomWebhookHandler(nil)
	assert.False(t, empty.HandlerReady())
}

func TestHandleMessageParticipantJoined(t *testing.T) {
	fixture := newWebhookHandlerFixture()

	fixture.mappings.On("DeleteByDate", mock.Anything, mock.AnythingOfType("string")).Return(0, nil)
	fixture.events.On("Create", mock.Anything, mock.MatchedBy(func(event *models.ParticipantEvent) bool {
		return event.EventType == models.EventTypeParticipantJoined &&
			event.ParticipantName == "Alice Example" &&
			event.RoomName == models.MainRoomName
	})).Return(nil)

	msg := domain.NewMockMessage(
		participantJoinedMessage(t),
		models.ZoomWebhookMeetingParticipantJoinedSubject,
	)
	msg.On("HasReply").Return(false)

	fixture.handler.HandleMessage(t.Context(), msg)

	fixture.events.AssertExpectations(t)
	fixture.mappings.AssertExpectations(t)
}

func TestHandleMessageRespondsWhenReplyExpected(t *testing.T) {
	fixture := newWebhookHandlerFixture()

	fixture.mappings.On("DeleteByDate", mock.Anything, mock.AnythingOfType("string")).Return(0, nil)
	fixture.events.On("Create", mock.Anything, mock.Anything).Return(nil)

	msg := domain.NewMockMessage(
		participantJoinedMessage(t),
		models.ZoomWebhookMeetingParticipantJoinedSubject,
	)
	msg.On("HasReply").Return(true)
	msg.On("Respond", []byte(nil)).Return(nil)

	fixture.handler.HandleMessage(t.Context(), msg)

	msg.AssertExpectations(t)
}

func TestHandleMessageUnknownSubject(t *testing.T) {
	fixture := newWebhookHandlerFixture()

	msg := domain.NewMockMessage([]byte(`{}`), "breakout-tracker.webhook.zoom.meeting.unknown")
	msg.On("HasReply").Return(false)

	fixture.handler.HandleMessage(t.Context(), msg)

	fixture.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandleMessageInvalidJSON(t *testing.T) {
	fixture := newWebhookHandlerFixture()

	msg := domain.NewMockMessage([]byte(`not json`), models.ZoomWebhookMeetingParticipantJoinedSubject)
	msg.On("HasReply").Return(false)

	fixture.handler.HandleMessage(t.Context(), msg)

	fixture.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandleMessageCameraEventBothSpellings(t *testing.T) {
	for _, eventType := range []string{
		models.ZoomEventParticipantVideoOn,
		models.ZoomEventParticipantVideoStarted,
	} {
		fixture := newWebhookHandlerFixture()
		fixture.cameras.On("Create", mock.Anything, mock.MatchedBy(func(event *models.CameraEvent) bool {
			return event.CameraOn && event.EventType == models.EventTypeCameraOn
		})).Return(nil)

		data, err := json.Marshal(models.ZoomWebhookEventMessage{
			EventType: eventType,
			EventTS:   time.Now().UnixMilli(),
			Payload: map[string]interface{}{
				"object": map[string]interface{}{
					"uuid": "meeting-uuid-1",
					"id":   "84123456789",
					"participant": map[string]interface{}{
						"user_id":   "user-1",
						"user_name": "Alice Example",
					},
				},
			},
		})
		require.NoError(t, err)

		msg := domain.NewMockMessage(data, models.ZoomWebhookMeetingParticipantVideoOnSubject)
		msg.On("HasReply").Return(false)

		fixture.handler.HandleMessage(t.Context(), msg)
		fixture.cameras.AssertExpectations(t)
	}
}
