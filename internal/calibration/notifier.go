// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package calibration

import (
	"context"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// Notifier announces calibration progress to the backend store so room
// bindings are known there before the matching webhook join events arrive.
//
// Implementations must be best-effort: log delivery failures and swallow
// them. Losing a notification must never abort an otherwise-successful
// in-meeting calibration pass, so none of these methods return an error.
type Notifier interface {
	NotifyStart(ctx context.Context, meetingID string)
	NotifyMapping(ctx context.Context, meetingID string, mapping *models.RoomMapping)
	NotifyComplete(ctx context.Context, meetingID string, result *models.CalibrationResult)
}

// NopNotifier is a Notifier that does nothing.
type NopNotifier struct{}

func (NopNotifier) NotifyStart(ctx context.Context, meetingID string) {}
func (NopNotifier) NotifyMapping(ctx context.Context, meetingID string, mapping *models.RoomMapping) {
}
func (NopNotifier) NotifyComplete(ctx context.Context, meetingID string, result *models.CalibrationResult) {
}
