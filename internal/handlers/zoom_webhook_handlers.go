// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package handlers contains the NATS message handlers and the HTTP API
// surface of the service.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
	"github.com/verveadvisory/breakout-tracker-service/internal/service"
)

// ZoomWebhookHandler consumes Zoom webhook events republished on NATS and
// feeds them into the event capture service.
type ZoomWebhookHandler struct {
	eventService *service.EventService
}

// NewZoomWebhookHandler creates a new ZoomWebhookHandler.
func NewZoomWebhookHandler(eventService *service.EventService) *ZoomWebhookHandler {
	return &ZoomWebhookHandler{
		eventService: eventService,
	}
}

// HandlerReady implements [domain.MessageHandler].
func (h *ZoomWebhookHandler) HandlerReady() bool {
	return h.eventService != nil && h.eventService.ServiceReady()
}

// HandleMessage implements [domain.MessageHandler].
func (h *ZoomWebhookHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, event models.ZoomWebhookEventMessage) error{
		models.ZoomWebhookMeetingParticipantJoinedSubject:      h.eventService.HandleParticipantJoined,
		models.ZoomWebhookMeetingParticipantLeftSubject:        h.eventService.HandleParticipantLeft,
		models.ZoomWebhookBreakoutRoomParticipantJoinedSubject: h.eventService.HandleBreakoutRoomJoined,
		models.ZoomWebhookBreakoutRoomParticipantLeftSubject:   h.eventService.HandleBreakoutRoomLeft,
		models.ZoomWebhookMeetingParticipantVideoOnSubject:     h.eventService.HandleCameraEvent,
		models.ZoomWebhookMeetingParticipantVideoOffSubject:    h.eventService.HandleCameraEvent,
		models.ZoomWebhookMeetingEndedSubject:                  h.eventService.HandleMeetingEnded,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		h.respond(ctx, msg, nil)
		return
	}

	var webhookEvent models.ZoomWebhookEventMessage
	if err := json.Unmarshal(msg.Data(), &webhookEvent); err != nil {
		slog.ErrorContext(ctx, "failed to unmarshal Zoom webhook event", logging.ErrKey, err)
		h.respond(ctx, msg, nil)
		return
	}

	ctx = logging.AppendCtx(ctx, slog.String("event_type", webhookEvent.EventType))

	if err := handler(ctx, webhookEvent); err != nil {
		slog.ErrorContext(ctx, "error handling webhook event", logging.ErrKey, err)
		h.respond(ctx, msg, nil)
		return
	}

	slog.DebugContext(ctx, "successfully processed webhook event")
	h.respond(ctx, msg, nil)
}

// respond answers the message when a reply is expected. Webhook events are
// fire-and-forget, so the response carries no payload.
func (h *ZoomWebhookHandler) respond(ctx context.Context, msg domain.Message, response []byte) {
	if !msg.HasReply() {
		return
	}
	if err := msg.Respond(response); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
	}
}
