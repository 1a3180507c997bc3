// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/webhook"
)

const testWebhookSecret = "test-secret"

func signWebhookRequest(t *testing.T, req *http.Request, body []byte) {
	t.Helper()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := fmt.Sprintf("v0:%s:%s", timestamp, string(body))

	h := hmac.New(sha256.New, []byte(testWebhookSecret))
	h.Write([]byte(message))

	req.Header.Set("x-zm-request-timestamp", timestamp)
	req.Header.Set("x-zm-signature", "v0="+hex.EncodeToString(h.Sum(nil)))
}

func newWebhookHTTPFixture() (*ZoomWebhookHTTPHandler, *domain.MockWebhookEventPublisher) {
	publisher := &domain.MockWebhookEventPublisher{}
	handler := NewZoomWebhookHTTPHandler(
		webhook.NewZoomWebhookValidator(testWebhookSecret),
		publisher,
	)
	return handler, publisher
}

func postWebhook(t *testing.T, handler *ZoomWebhookHTTPHandler, body []byte, signed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/zoom", bytes.NewReader(body))
	if signed {
		signWebhookRequest(t, req, body)
	}
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)
	return rec
}

func TestWebhookURLValidation(t *testing.T) {
	handler, _ := newWebhookHTTPFixture()

	body, err := json.Marshal(map[string]interface{}{
		"event": models.ZoomEventURLValidation,
		"payload": map[string]interface{}{
			"plainToken": "abc123",
		},
	})
	require.NoError(t, err)

	rec := postWebhook(t, handler, body, false)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp["plainToken"])

	// The encrypted token is the HMAC of the plain token with the secret.
	h := hmac.New(sha256.New, []byte(testWebhookSecret))
	h.Write([]byte("abc123"))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), resp["encryptedToken"])
}

func TestWebhookPublishesKnownEvent(t *testing.T) {
	handler, publisher := newWebhookHTTPFixture()

	publisher.On("PublishZoomWebhookEvent", mock.Anything,
		models.ZoomWebhookMeetingParticipantJoinedSubject,
		mock.MatchedBy(func(msg models.ZoomWebhookEventMessage) bool {
			return msg.EventType == models.ZoomEventParticipantJoined && msg.EventTS == 1700000000000
		})).Return(nil)

	body, err := json.Marshal(map[string]interface{}{
		"event":    models.ZoomEventParticipantJoined,
		"event_ts": 1700000000000,
		"payload":  map[string]interface{}{"object": map[string]interface{}{"id": "84123"}},
	})
	require.NoError(t, err)

	rec := postWebhook(t, handler, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}

func TestWebhookCameraSpellingsShareSubject(t *testing.T) {
	tests := []struct {
		eventType string
		subject   string
	}{
		{models.ZoomEventParticipantVideoOn, models.ZoomWebhookMeetingParticipantVideoOnSubject},
		{models.ZoomEventParticipantVideoStarted, models.ZoomWebhookMeetingParticipantVideoOnSubject},
		{models.ZoomEventParticipantVideoOff, models.ZoomWebhookMeetingParticipantVideoOffSubject},
		{models.ZoomEventParticipantVideoStopped, models.ZoomWebhookMeetingParticipantVideoOffSubject},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			handler, publisher := newWebhookHTTPFixture()
			publisher.On("PublishZoomWebhookEvent", mock.Anything, tt.subject,
				mock.MatchedBy(func(msg models.ZoomWebhookEventMessage) bool {
					return msg.EventType == tt.eventType
				})).Return(nil)

			body, err := json.Marshal(map[string]interface{}{
				"event":   tt.eventType,
				"payload": map[string]interface{}{},
			})
			require.NoError(t, err)

			rec := postWebhook(t, handler, body, true)

			assert.Equal(t, http.StatusOK, rec.Code)
			publisher.AssertExpectations(t)
		})
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	handler, publisher := newWebhookHTTPFixture()

	body, err := json.Marshal(map[string]interface{}{
		"event":   models.ZoomEventParticipantJoined,
		"payload": map[string]interface{}{},
	})
	require.NoError(t, err)

	rec := postWebhook(t, handler, body, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	publisher.AssertNotCalled(t, "PublishZoomWebhookEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookAcknowledgesUnknownEvent(t *testing.T) {
	handler, publisher := newWebhookHTTPFixture()

	body, err := json.Marshal(map[string]interface{}{
		"event":   "meeting.sharing_started",
		"payload": map[string]interface{}{},
	})
	require.NoError(t, err)

	rec := postWebhook(t, handler, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
	publisher.AssertNotCalled(t, "PublishZoomWebhookEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookPublishFailure(t *testing.T) {
	handler, publisher := newWebhookHTTPFixture()
	publisher.On("PublishZoomWebhookEvent", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.NewUnavailableError("nats down"))

	body, err := json.Marshal(map[string]interface{}{
		"event":   models.ZoomEventMeetingEnded,
		"payload": map[string]interface{}{},
	})
	require.NoError(t, err)

	rec := postWebhook(t, handler, body, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookInvalidJSON(t *testing.T) {
	handler, _ := newWebhookHTTPFixture()
	rec := postWebhook(t, handler, []byte("not json"), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
