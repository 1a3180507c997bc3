// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// WebhookEventPublisher publishes validated Zoom webhook events for async
// processing.
type WebhookEventPublisher interface {
	PublishZoomWebhookEvent(ctx context.Context, subject string, event models.ZoomWebhookEventMessage) error
}

// CalibrationPublisher publishes calibration lifecycle and mapping
// notifications.
type CalibrationPublisher interface {
	PublishCalibrationStarted(ctx context.Context, msg models.CalibrationLifecycleMessage) error
	PublishCalibrationMapping(ctx context.Context, msg models.CalibrationMappingMessage) error
	PublishCalibrationCompleted(ctx context.Context, msg models.CalibrationLifecycleMessage) error
}
