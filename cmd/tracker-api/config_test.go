// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/verveadvisory/breakout-tracker-service/internal/calibration"
)

func TestParseEnvDefaults(t *testing.T) {
	t.Setenv("ZOOM_WEBHOOK_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("CALIBRATION_MAX_MOVE_RETRIES", "")
	t.Setenv("CALIBRATION_INTER_MOVE_DELAY", "")
	t.Setenv("SCOUT_BOT_NAME", "")

	env := parseEnv()

	assert.Equal(t, "8080", env.Port)
	assert.Equal(t, "Scout Bot", env.Scout.Name)
	// The move executor documents 3 total attempts per room; the env default
	// must not silently grant a fourth.
	assert.Equal(t, calibration.DefaultMaxRetries, env.Calibration.MaxMoveRetries)
	assert.Equal(t, 5*time.Second, env.Calibration.InterMoveDelay)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("ZOOM_WEBHOOK_SECRET", "test-secret")
	t.Setenv("CALIBRATION_MAX_MOVE_RETRIES", "5")
	t.Setenv("REPORT_RECIPIENTS", "a@example.com, b@example.com,")

	env := parseEnv()

	assert.Equal(t, 5, env.Calibration.MaxMoveRetries)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, env.Report.Recipients)
}

func TestDurationEnvMalformedFallsBack(t *testing.T) {
	t.Setenv("QOS_FINALIZE_DELAY", "not a duration")
	assert.Equal(t, 30*time.Second, durationEnv("QOS_FINALIZE_DELAY", 30*time.Second))
}
