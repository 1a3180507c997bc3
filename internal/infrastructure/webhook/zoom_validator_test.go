// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

const testSecret = "test-secret-token"

func signBody(t *testing.T, secret string, body []byte, timestamp string) string {
	t.Helper()
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fmt.Sprintf("v0:%s:%s", timestamp, string(body))))
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	validator := NewZoomWebhookValidator(testSecret)
	body := []byte(`{"event":"meeting.participant_joined"}`)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	signature := signBody(t, testSecret, body, timestamp)
	require.NoError(t, validator.ValidateSignature(body, signature, timestamp))
}

func TestValidateSignatureRejections(t *testing.T) {
	body := []byte(`{"event":"meeting.ended"}`)
	now := strconv.FormatInt(time.Now().Unix(), 10)
	old := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature func(t *testing.T) string
		timestamp string
	}{
		{
			name:      "no secret configured",
			secret:    "",
			body:      body,
			signature: func(t *testing.T) string { return signBody(t, testSecret, body, now) },
			timestamp: now,
		},
		{
			name:      "missing signature",
			secret:    testSecret,
			body:      body,
			signature: func(t *testing.T) string { return "" },
			timestamp: now,
		},
		{
			name:      "missing timestamp",
			secret:    testSecret,
			body:      body,
			signature: func(t *testing.T) string { return signBody(t, testSecret, body, now) },
			timestamp: "",
		},
		{
			name:      "non-numeric timestamp",
			secret:    testSecret,
			body:      body,
			signature: func(t *testing.T) string { return signBody(t, testSecret, body, "nope") },
			timestamp: "nope",
		},
		{
			name:      "replayed timestamp",
			secret:    testSecret,
			body:      body,
			signature: func(t *testing.T) string { return signBody(t, testSecret, body, old) },
			timestamp: old,
		},
		{
			name:      "wrong secret",
			secret:    testSecret,
			body:      body,
			signature: func(t *testing.T) string { return signBody(t, "other-secret", body, now) },
			timestamp: now,
		},
		{
			name:      "tampered body",
			secret:    testSecret,
			body:      []byte(`{"event":"tampered"}`),
			signature: func(t *testing.T) string { return signBody(t, testSecret, body, now) },
			timestamp: now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewZoomWebhookValidator(tt.secret)
			err := validator.ValidateSignature(tt.body, tt.signature(t), tt.timestamp)
			assert.Error(t, err)
		})
	}
}

func TestEncryptToken(t *testing.T) {
	validator := NewZoomWebhookValidator(testSecret)

	h := hmac.New(sha256.New, []byte(testSecret))
	h.Write([]byte("plain-token"))
	expected := hex.EncodeToString(h.Sum(nil))

	assert.Equal(t, expected, validator.EncryptToken("plain-token"))
}

func TestIsValidEvent(t *testing.T) {
	validator := NewZoomWebhookValidator(testSecret)

	assert.True(t, validator.IsValidEvent(models.ZoomEventParticipantJoined))
	assert.True(t, validator.IsValidEvent(models.ZoomEventBreakoutRoomJoined))
	assert.True(t, validator.IsValidEvent(models.ZoomEventParticipantVideoStopped))
	assert.False(t, validator.IsValidEvent("meeting.started"))
	assert.False(t, validator.IsValidEvent("recording.completed"))
	assert.False(t, validator.IsValidEvent(""))
}
