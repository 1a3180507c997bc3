// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// maxCameraOnSeconds discards camera-on durations longer than a day, which
// only happen when webhooks were lost.
const maxCameraOnSeconds = 86400

// QoSCollector triggers background QoS collection for an ended meeting.
type QoSCollector interface {
	CollectAsync(meetingUUID, meetingID string)
}

// EventService captures attendance and camera events from Zoom webhooks.
type EventService struct {
	state        *MeetingState
	events       domain.ParticipantEventRepository
	cameras      domain.CameraEventRepository
	roomMappings domain.RoomMappingRepository
	collector    QoSCollector

	scoutName  string
	scoutEmail string

	now func() time.Time
}

// NewEventService creates the webhook event capture service.
func NewEventService(
	state *MeetingState,
	events domain.ParticipantEventRepository,
	cameras domain.CameraEventRepository,
	roomMappings domain.RoomMappingRepository,
	collector QoSCollector,
	scoutName string,
	scoutEmail string,
) *EventService {
	return &EventService{
		state:        state,
		events:       events,
		cameras:      cameras,
		roomMappings: roomMappings,
		collector:    collector,
		scoutName:    scoutName,
		scoutEmail:   scoutEmail,
		now:          time.Now,
	}
}

// ServiceReady checks if the service is ready to process events.
func (s *EventService) ServiceReady() bool {
	return s.state != nil && s.events != nil && s.cameras != nil && s.roomMappings != nil
}

// participantInfo is the normalized participant data extracted from a webhook
// payload, since Zoom populates different fields per event type.
type participantInfo struct {
	ID    string
	Name  string
	Email string
}

func extractParticipant(p models.ZoomWebhookParticipant) participantInfo {
	info := participantInfo{
		Name:  p.UserName,
		Email: p.Email,
	}

	switch {
	case p.UserID != "":
		info.ID = p.UserID
	case p.ID != "":
		info.ID = p.ID
	case p.ParticipantUserID != "":
		info.ID = p.ParticipantUserID
	case p.ParticipantUUID != "":
		info.ID = p.ParticipantUUID
	default:
		// Last resort so the event is not lost.
		info.ID = uuid.New().String()[:8]
	}

	if info.Name == "" {
		info.Name = "Unknown"
	}
	return info
}

// eventTime converts a webhook event_ts to a time. Zoom usually sends
// milliseconds but some events carry seconds.
func (s *EventService) eventTime(eventTS int64) time.Time {
	switch {
	case eventTS > 1e12:
		return time.UnixMilli(eventTS).UTC()
	case eventTS > 0:
		return time.Unix(eventTS, 0).UTC()
	default:
		return s.now().UTC()
	}
}

// isScout reports whether the participant is the scout bot. Email comparison
// is exact; name comparison is a substring match since Zoom may decorate the
// display name.
func (s *EventService) isScout(name, email string) bool {
	if email != "" && s.scoutEmail != "" && strings.EqualFold(email, s.scoutEmail) {
		return true
	}
	if name != "" && s.scoutName != "" &&
		strings.Contains(strings.ToLower(name), strings.ToLower(s.scoutName)) {
		return true
	}
	return false
}

// isCalibrationParticipant reports whether the participant is performing
// calibration: the scout bot always, plus the named calibration participant
// while a session is in progress. Name matching is forgiving because Zoom
// truncates and decorates display names.
func (s *EventService) isCalibrationParticipant(name, email string) bool {
	if s.isScout(name, email) {
		return true
	}
	if !s.state.CalibrationInProgress() {
		return false
	}

	calName := strings.ToLower(strings.TrimSpace(s.state.CalibrationParticipantName()))
	webhookName := strings.ToLower(strings.TrimSpace(name))
	if calName == "" || webhookName == "" {
		return false
	}

	if webhookName == calName ||
		strings.Contains(webhookName, calName) ||
		strings.Contains(calName, webhookName) {
		return true
	}

	calFirst, _, _ := strings.Cut(calName, " ")
	webhookFirst, _, _ := strings.Cut(webhookName, " ")
	return calFirst != "" && calFirst == webhookFirst
}

// setMeeting updates the current meeting and handles the rollover side
// effects: QoS collection for the superseded meeting and clearing of same-day
// mappings.
func (s *EventService) setMeeting(ctx context.Context, meetingID, meetingUUID string) {
	now := s.now()
	previous, isNew := s.state.SetMeeting(meetingID, meetingUUID, now)
	if !isNew {
		return
	}

	if previous != nil && s.collector != nil {
		slog.InfoContext(ctx, "triggering QoS collection for previous meeting",
			"previous_meeting_uuid", previous.MeetingUUID)
		s.collector.CollectAsync(previous.MeetingUUID, previous.MeetingID)
	}

	today := now.UTC().Format(time.DateOnly)
	if deleted, err := s.roomMappings.DeleteByDate(ctx, today); err != nil {
		slog.WarnContext(ctx, "failed to clear same-day room mappings", logging.ErrKey, err)
	} else if deleted > 0 {
		slog.InfoContext(ctx, "cleared same-day room mappings", "deleted", deleted)
	}
}

// RestoreMappings reloads today's persisted room mappings into the in-memory
// state so breakout joins resolve to room names after a restart without a
// recalibration. Returns the number of mappings restored.
func (s *EventService) RestoreMappings(ctx context.Context) (int, error) {
	today := s.now().UTC().Format(time.DateOnly)
	mappings, err := s.roomMappings.ListByDate(ctx, today)
	if err != nil {
		return 0, err
	}
	if len(mappings) == 0 {
		return 0, nil
	}

	// Adopt the meeting the mappings belong to, otherwise the next webhook
	// would look like a meeting change and clear what was just restored.
	latest := mappings[0]
	for _, m := range mappings[1:] {
		if m.MappedAt.After(latest.MappedAt) {
			latest = m
		}
	}
	s.state.SetMeeting(latest.MeetingID, latest.MeetingUUID, s.now())

	restored := 0
	for _, m := range mappings {
		if m.RoomUUID == "" || m.RoomName == "" {
			continue
		}
		if m.Source == models.MappingSourceWebhookCalibration {
			s.state.AddWebhookRoomMapping(m.RoomUUID, m.RoomName)
		} else {
			s.state.AddRoomMapping(m.RoomUUID, m.RoomName)
		}
		restored++
	}

	slog.InfoContext(ctx, "restored persisted room mappings",
		"mapping_date", today,
		"restored", restored,
		"meeting_id", latest.MeetingID,
	)
	return restored, nil
}

// HandleParticipantJoined records a participant joining the main meeting.
func (s *EventService) HandleParticipantJoined(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToParticipantEventPayload()
	if err != nil {
		return domain.NewValidationError("invalid participant joined payload", err)
	}

	p := extractParticipant(payload.Object.Participant)
	ctx = logging.AppendCtx(ctx, slog.String("participant_name", p.Name))

	if s.isScout(p.Name, p.Email) {
		slog.DebugContext(ctx, "scout bot joined, skipping event storage")
		return nil
	}
	if payload.Object.ID == "" {
		return domain.NewValidationError("participant joined event has no meeting ID")
	}

	s.setMeeting(ctx, payload.Object.ID, payload.Object.UUID)

	eventDT := s.eventTime(event.EventTS)
	s.state.SetParticipantJoined(p.ID, eventDT)

	return s.events.Create(ctx, &models.ParticipantEvent{
		EventType:        models.EventTypeParticipantJoined,
		EventTimestamp:   eventDT,
		EventDate:        eventDT.Format(time.DateOnly),
		MeetingID:        payload.Object.ID,
		MeetingUUID:      payload.Object.UUID,
		ParticipantID:    p.ID,
		ParticipantName:  p.Name,
		ParticipantEmail: p.Email,
		RoomName:         models.MainRoomName,
	})
}

// HandleParticipantLeft records a participant leaving the meeting.
func (s *EventService) HandleParticipantLeft(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToParticipantEventPayload()
	if err != nil {
		return domain.NewValidationError("invalid participant left payload", err)
	}

	p := extractParticipant(payload.Object.Participant)
	ctx = logging.AppendCtx(ctx, slog.String("participant_name", p.Name))

	if s.isScout(p.Name, p.Email) {
		slog.DebugContext(ctx, "scout bot left, skipping event storage")
		return nil
	}
	if payload.Object.ID == "" {
		return domain.NewValidationError("participant left event has no meeting ID")
	}

	eventDT := s.eventTime(event.EventTS)

	return s.events.Create(ctx, &models.ParticipantEvent{
		EventType:        models.EventTypeParticipantLeft,
		EventTimestamp:   eventDT,
		EventDate:        eventDT.Format(time.DateOnly),
		MeetingID:        payload.Object.ID,
		MeetingUUID:      payload.Object.UUID,
		ParticipantID:    p.ID,
		ParticipantName:  p.Name,
		ParticipantEmail: p.Email,
	})
}

// HandleBreakoutRoomJoined records a participant joining a breakout room. A
// join by the calibration participant is not stored; instead it is matched
// against the pending move queue to learn the webhook UUID for that room.
func (s *EventService) HandleBreakoutRoomJoined(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToBreakoutRoomEventPayload()
	if err != nil {
		return domain.NewValidationError("invalid breakout room joined payload", err)
	}

	p := extractParticipant(payload.Object.Participant)
	roomUUID := payload.RoomIdentifier()
	ctx = logging.AppendCtx(ctx, slog.String("participant_name", p.Name))
	ctx = logging.AppendCtx(ctx, slog.String("room_uuid", roomUUID))

	if payload.Object.ID == "" {
		return domain.NewValidationError("breakout room joined event has no meeting ID")
	}
	s.setMeeting(ctx, payload.Object.ID, payload.Object.UUID)

	if s.isCalibrationParticipant(p.Name, p.Email) {
		return s.learnWebhookMapping(ctx, payload, roomUUID)
	}

	roomName := s.state.RoomName(roomUUID)
	if roomName == "" {
		roomName = fallbackRoomName(roomUUID)
	}

	eventDT := s.eventTime(event.EventTS)
	s.state.SetParticipantRoom(p.ID, roomName)

	return s.events.Create(ctx, &models.ParticipantEvent{
		EventType:        models.EventTypeBreakoutRoomJoined,
		EventTimestamp:   eventDT,
		EventDate:        eventDT.Format(time.DateOnly),
		MeetingID:        payload.Object.ID,
		MeetingUUID:      payload.Object.UUID,
		ParticipantID:    p.ID,
		ParticipantName:  p.Name,
		ParticipantEmail: p.Email,
		RoomUUID:         roomUUID,
		RoomName:         roomName,
	})
}

// learnWebhookMapping matches a calibration participant's breakout join
// against the oldest unmatched pending move and persists the learned webhook
// UUID mapping.
func (s *EventService) learnWebhookMapping(ctx context.Context, payload *models.ZoomBreakoutRoomEventPayload, roomUUID string) error {
	if roomUUID == "" {
		slog.WarnContext(ctx, "calibration breakout join carried no room UUID")
		return nil
	}

	roomName, roomIndex, ok := s.state.MatchPendingMove(roomUUID)
	if !ok {
		slog.WarnContext(ctx, "no pending move to match calibration breakout join")
		return nil
	}
	if roomIndex < 0 {
		roomIndex = 0
	}

	s.state.AddWebhookRoomMapping(roomUUID, roomName)
	slog.InfoContext(ctx, "learned webhook room mapping",
		"room_name", roomName, "room_index", roomIndex)

	now := s.now().UTC()
	err := s.roomMappings.Create(ctx, &models.RoomMapping{
		MeetingID:   payload.Object.ID,
		MeetingUUID: payload.Object.UUID,
		RoomUUID:    roomUUID,
		RoomName:    roomName,
		RoomIndex:   roomIndex,
		MappingDate: now.Format(time.DateOnly),
		MappedAt:    now,
		Source:      models.MappingSourceWebhookCalibration,
	})
	if err != nil {
		// The in-memory mapping still works for this process; losing the
		// persisted copy only affects reports after a restart.
		slog.WarnContext(ctx, "failed to persist webhook room mapping", logging.ErrKey, err)
	}
	return nil
}

// HandleBreakoutRoomLeft records a participant leaving a breakout room.
func (s *EventService) HandleBreakoutRoomLeft(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToBreakoutRoomEventPayload()
	if err != nil {
		return domain.NewValidationError("invalid breakout room left payload", err)
	}

	p := extractParticipant(payload.Object.Participant)
	ctx = logging.AppendCtx(ctx, slog.String("participant_name", p.Name))

	if s.isCalibrationParticipant(p.Name, p.Email) {
		slog.DebugContext(ctx, "calibration participant left breakout room, skipping")
		return nil
	}
	if payload.Object.ID == "" {
		return domain.NewValidationError("breakout room left event has no meeting ID")
	}

	roomUUID := payload.RoomIdentifier()
	roomName := s.state.RoomName(roomUUID)
	if roomName == "" {
		roomName = fallbackRoomName(roomUUID)
	}

	eventDT := s.eventTime(event.EventTS)

	return s.events.Create(ctx, &models.ParticipantEvent{
		EventType:        models.EventTypeBreakoutRoomLeft,
		EventTimestamp:   eventDT,
		EventDate:        eventDT.Format(time.DateOnly),
		MeetingID:        payload.Object.ID,
		MeetingUUID:      payload.Object.UUID,
		ParticipantID:    p.ID,
		ParticipantName:  p.Name,
		ParticipantEmail: p.Email,
		RoomUUID:         roomUUID,
		RoomName:         roomName,
	})
}

// HandleCameraEvent records a camera on/off event. Camera-off events carry
// the on-duration computed from the tracked camera-on time, clamped to sane
// bounds.
func (s *EventService) HandleCameraEvent(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToVideoEventPayload()
	if err != nil {
		return domain.NewValidationError("invalid camera event payload", err)
	}
	cameraOn := models.CameraOn(event.EventType)

	p := extractParticipant(payload.Object.Participant)
	ctx = logging.AppendCtx(ctx, slog.String("participant_name", p.Name))
	ctx = logging.AppendCtx(ctx, slog.Bool("camera_on", cameraOn))

	if s.isScout(p.Name, p.Email) {
		slog.DebugContext(ctx, "scout bot camera event, skipping")
		return nil
	}
	if payload.Object.ID == "" {
		return domain.NewValidationError("camera event has no meeting ID")
	}

	eventDT := s.eventTime(event.EventTS)

	currentRoom := s.state.Participant(p.ID).CurrentRoom
	if currentRoom == "" {
		currentRoom = models.MainRoomName
	}

	onSince := s.state.UpdateCameraState(p.ID, cameraOn, eventDT)

	var duration *int
	if !cameraOn && onSince != nil {
		seconds := int(eventDT.Sub(*onSince).Seconds())
		switch {
		case seconds < 0:
			seconds = 0
			duration = &seconds
		case seconds > maxCameraOnSeconds:
			// Unreasonable span, drop it.
			duration = nil
		default:
			duration = &seconds
		}
	}

	eventType := models.EventTypeCameraOff
	if cameraOn {
		eventType = models.EventTypeCameraOn
	}

	return s.cameras.Create(ctx, &models.CameraEvent{
		EventType:        eventType,
		EventTimestamp:   eventDT,
		EventDate:        eventDT.Format(time.DateOnly),
		EventTime:        eventDT.Format("15:04:05"),
		MeetingID:        payload.Object.ID,
		MeetingUUID:      payload.Object.UUID,
		ParticipantID:    p.ID,
		ParticipantName:  p.Name,
		ParticipantEmail: p.Email,
		CameraOn:         cameraOn,
		RoomName:         currentRoom,
		DurationSeconds:  duration,
	})
}

// HandleMeetingEnded triggers background QoS collection for the ended meeting.
func (s *EventService) HandleMeetingEnded(ctx context.Context, event models.ZoomWebhookEventMessage) error {
	payload, err := event.ToMeetingEndedPayload()
	if err != nil {
		return domain.NewValidationError("invalid meeting ended payload", err)
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_uuid", payload.Object.UUID))
	slog.InfoContext(ctx, "meeting ended, scheduling QoS collection")

	if s.collector != nil {
		s.collector.CollectAsync(payload.Object.UUID, payload.Object.ID)
	}
	return nil
}

func fallbackRoomName(roomUUID string) string {
	if roomUUID == "" {
		return "Unknown Room"
	}
	if len(roomUUID) > webhookUUIDPrefixLen {
		roomUUID = roomUUID[:webhookUUIDPrefixLen]
	}
	return "Room-" + roomUUID
}
