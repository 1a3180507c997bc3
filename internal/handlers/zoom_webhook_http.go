// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/webhook"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// maxWebhookBodySize bounds the webhook request body. Zoom payloads are small;
// anything larger is not a webhook.
const maxWebhookBodySize = 1 << 20

// Zoom webhook signature headers.
const (
	zoomSignatureHeader = "x-zm-signature"
	zoomTimestampHeader = "x-zm-request-timestamp"
)

// zoomWebhookRequest is the envelope Zoom posts to the webhook endpoint.
type zoomWebhookRequest struct {
	Event   string                 `json:"event"`
	EventTS int64                  `json:"event_ts"`
	Payload map[string]interface{} `json:"payload"`
}

// ZoomWebhookHTTPHandler receives Zoom webhook posts, validates their
// signature, and republishes the events on NATS for async processing. The
// endpoint itself always answers fast so Zoom does not retry or disable the
// subscription.
type ZoomWebhookHTTPHandler struct {
	validator *webhook.ZoomWebhookValidator
	publisher domain.WebhookEventPublisher
}

// NewZoomWebhookHTTPHandler creates the webhook HTTP handler.
func NewZoomWebhookHTTPHandler(validator *webhook.ZoomWebhookValidator, publisher domain.WebhookEventPublisher) *ZoomWebhookHTTPHandler {
	return &ZoomWebhookHTTPHandler{
		validator: validator,
		publisher: publisher,
	}
}

// eventSubjects routes Zoom event names to NATS subjects. Both historical
// spellings of the camera events land on the same subject per direction.
var eventSubjects = map[string]string{
	models.ZoomEventMeetingEnded:            models.ZoomWebhookMeetingEndedSubject,
	models.ZoomEventParticipantJoined:       models.ZoomWebhookMeetingParticipantJoinedSubject,
	models.ZoomEventParticipantLeft:         models.ZoomWebhookMeetingParticipantLeftSubject,
	models.ZoomEventBreakoutRoomJoined:      models.ZoomWebhookBreakoutRoomParticipantJoinedSubject,
	models.ZoomEventBreakoutRoomLeft:        models.ZoomWebhookBreakoutRoomParticipantLeftSubject,
	models.ZoomEventParticipantVideoOn:      models.ZoomWebhookMeetingParticipantVideoOnSubject,
	models.ZoomEventParticipantVideoStarted: models.ZoomWebhookMeetingParticipantVideoOnSubject,
	models.ZoomEventParticipantVideoOff:     models.ZoomWebhookMeetingParticipantVideoOffSubject,
	models.ZoomEventParticipantVideoStopped: models.ZoomWebhookMeetingParticipantVideoOffSubject,
}

// Handle processes one webhook post.
func (h *ZoomWebhookHTTPHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		slog.ErrorContext(ctx, "failed to read webhook body", logging.ErrKey, err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var event zoomWebhookRequest
	if err := json.Unmarshal(body, &event); err != nil {
		slog.WarnContext(ctx, "invalid webhook JSON", logging.ErrKey, err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ctx = logging.AppendCtx(ctx, slog.String("event_type", event.Event))

	// The URL validation challenge is unsigned; everything else must carry a
	// valid signature.
	if event.Event == models.ZoomEventURLValidation {
		h.handleURLValidation(ctx, w, event)
		return
	}

	err = h.validator.ValidateSignature(body,
		r.Header.Get(zoomSignatureHeader),
		r.Header.Get(zoomTimestampHeader),
	)
	if err != nil {
		slog.WarnContext(ctx, "webhook signature validation failed", logging.ErrKey, err)
		writeJSON(r, w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	subject, ok := eventSubjects[event.Event]
	if !ok {
		// Unknown events are acknowledged so Zoom does not retry them.
		slog.InfoContext(ctx, "ignoring unsupported webhook event")
		writeJSON(r, w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	message := models.ZoomWebhookEventMessage{
		EventType: event.Event,
		EventTS:   event.EventTS,
		Payload:   event.Payload,
	}
	if err := h.publisher.PublishZoomWebhookEvent(ctx, subject, message); err != nil {
		slog.ErrorContext(ctx, "failed to publish webhook event", logging.ErrKey, err)
		writeJSON(r, w, http.StatusServiceUnavailable, map[string]string{"error": "event not accepted"})
		return
	}

	writeJSON(r, w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *ZoomWebhookHTTPHandler) handleURLValidation(ctx context.Context, w http.ResponseWriter, event zoomWebhookRequest) {
	plainToken, _ := event.Payload["plainToken"].(string)
	if plainToken == "" {
		slog.WarnContext(ctx, "url_validation event without plainToken")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	response := map[string]string{
		"plainToken":     plainToken,
		"encryptedToken": h.validator.EncryptToken(plainToken),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
