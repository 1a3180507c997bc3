// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// DefaultRequestTimeout bounds one request/reply round trip to the companion
// app. Moves are answered as soon as the SDK accepts them, so this does not
// need to cover the room transition itself.
const DefaultRequestTimeout = 10 * time.Second

// INatsRequester is the NATS connection interface the room controller needs.
type INatsRequester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// NatsRoomController bridges domain.RoomController over NATS request/reply to
// the in-meeting companion SDK app, which is the only process with access to
// the live breakout room surface.
type NatsRoomController struct {
	conn    INatsRequester
	timeout time.Duration
}

// NewNatsRoomController creates a room controller bridge. A non-positive
// timeout selects the default.
func NewNatsRoomController(conn INatsRequester, timeout time.Duration) *NatsRoomController {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &NatsRoomController{
		conn:    conn,
		timeout: timeout,
	}
}

func (c *NatsRoomController) request(ctx context.Context, subject string, req models.RoomControllerRequest) (*models.RoomControllerResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal room controller request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, domain.NewUnavailableError("no in-meeting companion app is connected", err)
		}
		slog.ErrorContext(ctx, "room controller request failed",
			logging.ErrKey, err, "subject", subject)
		return nil, domain.NewUnavailableError("room controller request failed", err)
	}

	var resp models.RoomControllerResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, domain.NewInternalError("failed to unmarshal room controller response", err)
	}
	if !resp.Success {
		return nil, domain.NewInternalError(fmt.Sprintf("room controller error: %s", resp.Error))
	}

	return &resp, nil
}

// ListRooms returns the currently open breakout rooms.
func (c *NatsRoomController) ListRooms(ctx context.Context, meetingID string) ([]models.BreakoutRoom, error) {
	resp, err := c.request(ctx, models.RoomControllerListRoomsSubject, models.RoomControllerRequest{
		MeetingID: meetingID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// ListRoster returns the participants currently in the meeting.
func (c *NatsRoomController) ListRoster(ctx context.Context, meetingID string) ([]models.Participant, error) {
	resp, err := c.request(ctx, models.RoomControllerListRosterSubject, models.RoomControllerRequest{
		MeetingID: meetingID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Roster, nil
}

// MoveParticipant moves a participant into a breakout room.
func (c *NatsRoomController) MoveParticipant(ctx context.Context, meetingID, participantID, roomID string) error {
	_, err := c.request(ctx, models.RoomControllerMoveSubject, models.RoomControllerRequest{
		MeetingID:     meetingID,
		ParticipantID: participantID,
		RoomID:        roomID,
	})
	return err
}

// ReturnToMain returns a participant to the main room.
func (c *NatsRoomController) ReturnToMain(ctx context.Context, meetingID, participantID string) error {
	_, err := c.request(ctx, models.RoomControllerReturnToMainSubject, models.RoomControllerRequest{
		MeetingID:     meetingID,
		ParticipantID: participantID,
	})
	return err
}
