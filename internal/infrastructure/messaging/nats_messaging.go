// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package messaging contains the NATS messaging layer for the breakout
// tracker service.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// INatsConn is the NATS connection interface the message builder needs.
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
type MessageBuilder struct {
	NatsConn INatsConn
}

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{
		NatsConn: natsConn,
	}
}

// sendMessage sends the message to the NATS server.
func (m *MessageBuilder) sendMessage(ctx context.Context, subject string, data []byte) error {
	err := m.NatsConn.Publish(subject, data)
	if err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

// PublishZoomWebhookEvent publishes a Zoom webhook event to NATS for async processing.
func (m *MessageBuilder) PublishZoomWebhookEvent(ctx context.Context, subject string, message models.ZoomWebhookEventMessage) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling Zoom webhook event into JSON", logging.ErrKey, err, "subject", subject)
		return err
	}

	slog.DebugContext(ctx, "publishing Zoom webhook event to NATS",
		"subject", subject,
		"event_type", message.EventType,
		"event_ts", message.EventTS,
	)

	return m.sendMessage(ctx, subject, messageBytes)
}

// PublishCalibrationStarted announces that a calibration run has begun.
func (m *MessageBuilder) PublishCalibrationStarted(ctx context.Context, message models.CalibrationLifecycleMessage) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling calibration started message into JSON", logging.ErrKey, err)
		return err
	}

	return m.sendMessage(ctx, models.CalibrationStartedSubject, messageBytes)
}

// PublishCalibrationMapping announces one resolved room mapping.
func (m *MessageBuilder) PublishCalibrationMapping(ctx context.Context, message models.CalibrationMappingMessage) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling calibration mapping message into JSON", logging.ErrKey, err)
		return err
	}

	slog.DebugContext(ctx, "publishing calibration mapping to NATS",
		"meeting_id", message.MeetingID,
		"room_name", message.Mapping.RoomName,
	)

	return m.sendMessage(ctx, models.CalibrationMappingSubject, messageBytes)
}

// PublishCalibrationCompleted announces that a calibration run has finished.
func (m *MessageBuilder) PublishCalibrationCompleted(ctx context.Context, message models.CalibrationLifecycleMessage) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling calibration completed message into JSON", logging.ErrKey, err)
		return err
	}

	return m.sendMessage(ctx, models.CalibrationCompletedSubject, messageBytes)
}
