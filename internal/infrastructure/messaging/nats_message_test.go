// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package messaging

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestNatsMsgAccessors(t *testing.T) {
	msg := NewNatsMsg(&nats.Msg{
		Subject: "breakout-tracker.webhook.zoom.meeting.ended",
		Data:    []byte(`{"event":"meeting.ended"}`),
	})

	assert.Equal(t, "breakout-tracker.webhook.zoom.meeting.ended", msg.Subject())
	assert.Equal(t, []byte(`{"event":"meeting.ended"}`), msg.Data())
	assert.False(t, msg.HasReply())
}

func TestNatsMsgHasReply(t *testing.T) {
	msg := NewNatsMsg(&nats.Msg{Subject: "subj", Reply: "_INBOX.abc"})
	assert.True(t, msg.HasReply())
}
