// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package calibration

import (
	"time"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// ProgressSink receives the typed progress sequence a calibration run emits.
// Emit must not block for long; the orchestrator calls it inline between
// state transitions.
type ProgressSink interface {
	Emit(progress models.CalibrationProgress)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(progress models.CalibrationProgress)

// Emit calls the wrapped function.
func (f ProgressFunc) Emit(progress models.CalibrationProgress) {
	f(progress)
}

// ChannelSink buffers progress events on a channel so tests and streaming
// consumers can replay the sequence.
type ChannelSink struct {
	ch chan models.CalibrationProgress
}

// NewChannelSink creates a channel-backed sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		ch: make(chan models.CalibrationProgress, buffer),
	}
}

// Emit enqueues the event, dropping it if the buffer is full so a stalled
// consumer cannot wedge a calibration run.
func (s *ChannelSink) Emit(progress models.CalibrationProgress) {
	select {
	case s.ch <- progress:
	default:
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan models.CalibrationProgress {
	return s.ch
}

// Close closes the event channel. Call only after the run has finished.
func (s *ChannelSink) Close() {
	close(s.ch)
}

func progressEvent(state models.CalibrationState, message string) models.CalibrationProgress {
	return models.CalibrationProgress{
		State:     state,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
