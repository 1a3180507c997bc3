// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

type mockNatsConn struct {
	published map[string][]byte
	pubErr    error
}

func newMockNatsConn() *mockNatsConn {
	return &mockNatsConn{published: make(map[string][]byte)}
}

func (m *mockNatsConn) IsConnected() bool { return true }

func (m *mockNatsConn) Publish(subj string, data []byte) error {
	if m.pubErr != nil {
		return m.pubErr
	}
	m.published[subj] = data
	return nil
}

func TestPublishZoomWebhookEvent(t *testing.T) {
	conn := newMockNatsConn()
	builder := NewMessageBuilder(conn)

	event := models.ZoomWebhookEventMessage{
		EventType: models.ZoomEventParticipantJoined,
		EventTS:   1756339200000,
		Payload:   map[string]interface{}{"object": map[string]interface{}{"id": "123"}},
	}

	err := builder.PublishZoomWebhookEvent(context.Background(), models.ZoomWebhookMeetingParticipantJoinedSubject, event)
	require.NoError(t, err)

	data, ok := conn.published[models.ZoomWebhookMeetingParticipantJoinedSubject]
	require.True(t, ok)

	var decoded models.ZoomWebhookEventMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.EventType, decoded.EventType)
	assert.Equal(t, event.EventTS, decoded.EventTS)
}

func TestPublishZoomWebhookEventError(t *testing.T) {
	conn := newMockNatsConn()
	conn.pubErr = errors.New("connection closed")
	builder := NewMessageBuilder(conn)

	err := builder.PublishZoomWebhookEvent(context.Background(), models.ZoomWebhookMeetingEndedSubject, models.ZoomWebhookEventMessage{})
	assert.Error(t, err)
}

func TestPublishCalibrationMapping(t *testing.T) {
	conn := newMockNatsConn()
	builder := NewMessageBuilder(conn)

	err := builder.PublishCalibrationMapping(context.Background(), models.CalibrationMappingMessage{
		MeetingID: "m-1",
		Mapping: &models.RoomMapping{
			RoomUUID: "room-a",
			RoomName: "Room A",
		},
	})
	require.NoError(t, err)

	data, ok := conn.published[models.CalibrationMappingSubject]
	require.True(t, ok)

	var decoded models.CalibrationMappingMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "m-1", decoded.MeetingID)
	require.NotNil(t, decoded.Mapping)
	assert.Equal(t, "Room A", decoded.Mapping.RoomName)
}

type mockRequester struct {
	responses map[string]*models.RoomControllerResponse
	err       error
	requests  []string
}

func (m *mockRequester) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	m.requests = append(m.requests, subj)
	if m.err != nil {
		return nil, m.err
	}
	resp := m.responses[subj]
	if resp == nil {
		resp = &models.RoomControllerResponse{Success: true}
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return &nats.Msg{Subject: subj, Data: payload}, nil
}

func TestNatsRoomControllerListRooms(t *testing.T) {
	requester := &mockRequester{
		responses: map[string]*models.RoomControllerResponse{
			models.RoomControllerListRoomsSubject: {
				Success: true,
				Rooms: []models.BreakoutRoom{
					{ID: "room-1", Name: "Room 1", Index: 0},
					{ID: "room-2", Name: "Room 2", Index: 1},
				},
			},
		},
	}
	controller := NewNatsRoomController(requester, 0)

	rooms, err := controller.ListRooms(context.Background(), "m-1")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Room 1", rooms[0].Name)
}

func TestNatsRoomControllerMoveFailure(t *testing.T) {
	requester := &mockRequester{
		responses: map[string]*models.RoomControllerResponse{
			models.RoomControllerMoveSubject: {
				Success: false,
				Error:   "room is not open",
			},
		},
	}
	controller := NewNatsRoomController(requester, 0)

	err := controller.MoveParticipant(context.Background(), "m-1", "scout", "room-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room is not open")
}

func TestNatsRoomControllerNoResponders(t *testing.T) {
	requester := &mockRequester{err: nats.ErrNoResponders}
	controller := NewNatsRoomController(requester, 0)

	_, err := controller.ListRoster(context.Background(), "m-1")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}
