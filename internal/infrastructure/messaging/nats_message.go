// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package messaging

import (
	"github.com/nats-io/nats.go"
)

// NatsMsg adapts a *nats.Msg to the domain message interface so that message
// handlers stay decoupled from the NATS client.
type NatsMsg struct {
	msg *nats.Msg
}

// NewNatsMsg wraps a NATS message.
func NewNatsMsg(msg *nats.Msg) *NatsMsg {
	return &NatsMsg{msg: msg}
}

// Subject returns the subject the message was published on.
func (m *NatsMsg) Subject() string {
	return m.msg.Subject
}

// Data returns the message payload.
func (m *NatsMsg) Data() []byte {
	return m.msg.Data
}

// Respond replies to the message on its reply subject.
func (m *NatsMsg) Respond(data []byte) error {
	return m.msg.Respond(data)
}

// HasReply reports whether the publisher expects a reply.
func (m *NatsMsg) HasReply() bool {
	return m.msg.Reply != ""
}
