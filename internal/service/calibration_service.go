// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verveadvisory/breakout-tracker-service/internal/calibration"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// CalibrationService manages calibration sessions. A session either runs
// autonomously through the orchestrator (the scout bot is walked through every
// room) or is driven externally by the in-meeting companion app reporting
// mappings over the HTTP surface.
type CalibrationService struct {
	state        *MeetingState
	roomMappings domain.RoomMappingRepository
	publisher    domain.CalibrationPublisher
	controller   domain.RoomController

	scoutName      string
	scoutEmail     string
	interMoveDelay time.Duration
	maxMoveRetries int

	now func() time.Time

	mu      sync.Mutex
	running bool
	caches  map[string]*calibration.RoomCache
}

// NewCalibrationService creates the calibration service. The controller may be
// nil when no companion app bridge is configured; Run then fails with an
// unavailable error while the externally-driven session operations keep
// working.
func NewCalibrationService(
	state *MeetingState,
	roomMappings domain.RoomMappingRepository,
	publisher domain.CalibrationPublisher,
	controller domain.RoomController,
	scoutName string,
	scoutEmail string,
	interMoveDelay time.Duration,
	maxMoveRetries int,
) *CalibrationService {
	return &CalibrationService{
		state:          state,
		roomMappings:   roomMappings,
		publisher:      publisher,
		controller:     controller,
		scoutName:      scoutName,
		scoutEmail:     scoutEmail,
		interMoveDelay: interMoveDelay,
		maxMoveRetries: maxMoveRetries,
		now:            time.Now,
		caches:         make(map[string]*calibration.RoomCache),
	}
}

// ServiceReady checks if the service is ready to manage calibration sessions.
func (s *CalibrationService) ServiceReady() bool {
	return s.state != nil && s.roomMappings != nil
}

// StartCalibrationRequest begins an externally-driven calibration session.
type StartCalibrationRequest struct {
	MeetingID       string `json:"meeting_id"`
	MeetingUUID     string `json:"meeting_uuid,omitempty"`
	ParticipantName string `json:"participant_name,omitempty"`
}

// Start marks a calibration session as in progress so breakout joins by the
// calibration participant are matched instead of stored.
func (s *CalibrationService) Start(ctx context.Context, req StartCalibrationRequest) error {
	if req.MeetingID == "" {
		return domain.NewValidationError("meeting_id is required")
	}

	participantName := req.ParticipantName
	if participantName == "" {
		participantName = s.scoutName
	}

	s.state.SetMeeting(req.MeetingID, req.MeetingUUID, s.now())
	s.state.BeginCalibration(participantName)

	slog.InfoContext(ctx, "calibration session started",
		"meeting_id", req.MeetingID,
		"participant_name", participantName,
	)

	s.publishStarted(ctx, req.MeetingID)
	return nil
}

// RecordMappingsRequest reports room mappings discovered by the companion app.
// Each mapping queues a pending move so the webhook UUID for the room can be
// learned when the calibration participant's join event arrives.
type RecordMappingsRequest struct {
	MeetingID   string                    `json:"meeting_id"`
	MeetingUUID string                    `json:"meeting_uuid,omitempty"`
	Mappings    []models.RoomMappingEntry `json:"mappings"`
}

// RecordMappingsResponse summarizes a mapping batch.
type RecordMappingsResponse struct {
	Received              int `json:"received"`
	TotalStored           int `json:"total_stored"`
	PendingWebhookMatches int `json:"pending_webhook_matches"`
}

// RecordMappings stores a batch of SDK room mappings.
func (s *CalibrationService) RecordMappings(ctx context.Context, req RecordMappingsRequest) (*RecordMappingsResponse, error) {
	if req.MeetingID == "" {
		return nil, domain.NewValidationError("meeting_id is required")
	}
	if len(req.Mappings) == 0 {
		return nil, domain.NewValidationError("mappings must not be empty")
	}

	s.state.SetMeeting(req.MeetingID, req.MeetingUUID, s.now())

	now := s.now().UTC()
	for i, entry := range req.Mappings {
		if entry.RoomUUID == "" || entry.RoomName == "" {
			slog.WarnContext(ctx, "skipping mapping with missing room UUID or name",
				"room_uuid", entry.RoomUUID, "room_name", entry.RoomName)
			continue
		}

		s.state.AddRoomMapping(entry.RoomUUID, entry.RoomName)
		s.state.QueuePendingMove(entry.RoomName, entry.RoomUUID, now)

		// The companion app's explicit index wins; entries without one get
		// their list position.
		roomIndex := i
		if entry.RoomIndex != nil {
			roomIndex = *entry.RoomIndex
		}
		if err := s.persistMapping(ctx, req.MeetingID, req.MeetingUUID, entry.RoomUUID, entry.RoomName, roomIndex); err != nil {
			slog.WarnContext(ctx, "failed to persist SDK room mapping", logging.ErrKey, err)
		}
	}

	_, unmatched := s.state.PendingMoveCounts()

	return &RecordMappingsResponse{
		Received:              len(req.Mappings),
		TotalStored:           s.state.MappingCount(),
		PendingWebhookMatches: unmatched,
	}, nil
}

// CompleteCalibrationRequest finishes an externally-driven session.
type CompleteCalibrationRequest struct {
	MeetingID string `json:"meeting_id"`
	Success   bool   `json:"success"`
}

// CompleteCalibrationResponse summarizes the finished session.
type CompleteCalibrationResponse struct {
	SDKMappings        int `json:"sdk_mappings"`
	WebhookUUIDMatches int `json:"webhook_uuid_matches"`
	Unmatched          int `json:"unmatched"`
}

// Complete finishes a calibration session and reports how many webhook UUIDs
// were matched.
func (s *CalibrationService) Complete(ctx context.Context, req CompleteCalibrationRequest) (*CompleteCalibrationResponse, error) {
	if req.MeetingID == "" {
		return nil, domain.NewValidationError("meeting_id is required")
	}

	matched, unmatched := s.state.PendingMoveCounts()
	s.state.FinishCalibration(req.Success, s.now().UTC())

	slog.InfoContext(ctx, "calibration session completed",
		"meeting_id", req.MeetingID,
		"success", req.Success,
		"webhook_matches", matched,
		"unmatched", unmatched,
	)

	s.publishCompleted(ctx, req.MeetingID, len(s.state.RoomNames()), 0, unmatched)

	return &CompleteCalibrationResponse{
		SDKMappings:        len(s.state.RoomNames()),
		WebhookUUIDMatches: matched,
		Unmatched:          unmatched,
	}, nil
}

// CalibrationStatus is the current calibration state of the tracked meeting.
type CalibrationStatus struct {
	MeetingID           string     `json:"meeting_id"`
	CalibrationActive   bool       `json:"calibration_active"`
	CalibrationComplete bool       `json:"calibration_complete"`
	CalibratedAt        *time.Time `json:"calibrated_at,omitempty"`
	RoomsMapped         int        `json:"rooms_mapped"`
	RoomNames           []string   `json:"room_names"`
}

// Status returns the calibration state of the tracked meeting.
func (s *CalibrationService) Status() CalibrationStatus {
	complete, calibratedAt := s.state.CalibrationComplete()
	return CalibrationStatus{
		MeetingID:           s.state.MeetingID(),
		CalibrationActive:   s.state.CalibrationInProgress(),
		CalibrationComplete: complete,
		CalibratedAt:        calibratedAt,
		RoomsMapped:         len(s.state.RoomNames()),
		RoomNames:           s.state.RoomNames(),
	}
}

// Mappings returns the current in-memory room mappings.
func (s *CalibrationService) Mappings() []models.RoomMappingEntry {
	return s.state.Mappings()
}

// RunCalibrationRequest starts an autonomous calibration run through the
// companion app bridge.
type RunCalibrationRequest struct {
	MeetingID   string `json:"meeting_id"`
	MeetingUUID string `json:"meeting_uuid,omitempty"`
	UseCache    bool   `json:"use_cache,omitempty"`
}

// Run drives a full autonomous calibration pass: the scout bot is moved
// through every breakout room while the webhook side matches each move. Only
// one run may be in flight at a time.
func (s *CalibrationService) Run(ctx context.Context, req RunCalibrationRequest) (*models.CalibrationResult, error) {
	if req.MeetingID == "" {
		return nil, domain.NewValidationError("meeting_id is required")
	}
	if s.controller == nil {
		return nil, domain.NewUnavailableError("no room controller configured")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, domain.NewConflictError("a calibration run is already in progress")
	}
	s.running = true
	cache := s.cacheLocked(req.MeetingID)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.state.SetMeeting(req.MeetingID, req.MeetingUUID, s.now())

	orchestrator := calibration.NewOrchestrator(
		s.controller,
		cache,
		&serviceNotifier{service: s},
		nil,
		calibration.Options{
			MeetingID:      req.MeetingID,
			MeetingUUID:    req.MeetingUUID,
			ScoutName:      s.scoutName,
			ScoutEmail:     s.scoutEmail,
			MaxMoveRetries: s.maxMoveRetries,
			InterMoveDelay: s.interMoveDelay,
			UseCache:       req.UseCache,
		},
	)

	return orchestrator.Run(ctx)
}

// cacheLocked returns the per-meeting room cache, creating it on first use.
// Caller must hold s.mu.
func (s *CalibrationService) cacheLocked(meetingID string) *calibration.RoomCache {
	cache, ok := s.caches[meetingID]
	if !ok {
		cache = calibration.NewRoomCache()
		s.caches[meetingID] = cache
	}
	return cache
}

func (s *CalibrationService) persistMapping(ctx context.Context, meetingID, meetingUUID, roomUUID, roomName string, roomIndex int) error {
	now := s.now().UTC()
	return s.roomMappings.Create(ctx, &models.RoomMapping{
		MappingID:   uuid.New().String(),
		MeetingID:   meetingID,
		MeetingUUID: meetingUUID,
		RoomUUID:    roomUUID,
		RoomName:    roomName,
		RoomIndex:   roomIndex,
		MappingDate: now.Format(time.DateOnly),
		MappedAt:    now,
		Source:      models.MappingSourceSDKApp,
	})
}

func (s *CalibrationService) publishStarted(ctx context.Context, meetingID string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishCalibrationStarted(ctx, models.CalibrationLifecycleMessage{
		MeetingID: meetingID,
		State:     string(models.CalibrationStateMoving),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish calibration started", logging.ErrKey, err)
	}
}

func (s *CalibrationService) publishCompleted(ctx context.Context, meetingID string, roomsMapped, fromCache, failures int) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishCalibrationCompleted(ctx, models.CalibrationLifecycleMessage{
		MeetingID:      meetingID,
		State:          string(models.CalibrationStateComplete),
		RoomsMapped:    roomsMapped,
		RoomsFromCache: fromCache,
		Failures:       failures,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish calibration completed", logging.ErrKey, err)
	}
}

// serviceNotifier feeds orchestrator progress back into the meeting state and
// the NATS calibration subjects. All notifications are best-effort.
type serviceNotifier struct {
	service *CalibrationService
}

func (n *serviceNotifier) NotifyStart(ctx context.Context, meetingID string) {
	s := n.service
	s.state.BeginCalibration(s.scoutName)
	s.publishStarted(ctx, meetingID)
}

func (n *serviceNotifier) NotifyMapping(ctx context.Context, meetingID string, mapping *models.RoomMapping) {
	s := n.service

	// The pending move must be queued before the scout physically moves so
	// the resulting webhook join has something to match.
	s.state.AddRoomMapping(mapping.RoomUUID, mapping.RoomName)
	s.state.QueuePendingMove(mapping.RoomName, mapping.RoomUUID, s.now().UTC())

	if err := s.roomMappings.Create(ctx, mapping); err != nil {
		slog.WarnContext(ctx, "failed to persist calibration room mapping", logging.ErrKey, err)
	}

	if s.publisher != nil {
		err := s.publisher.PublishCalibrationMapping(ctx, models.CalibrationMappingMessage{
			MeetingID: meetingID,
			Mapping:   mapping,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to publish calibration mapping", logging.ErrKey, err)
		}
	}
}

func (n *serviceNotifier) NotifyComplete(ctx context.Context, meetingID string, result *models.CalibrationResult) {
	s := n.service
	s.state.FinishCalibration(result.Success(), s.now().UTC())
	s.publishCompleted(ctx, meetingID, result.NewlyMapped+result.FromCache, result.FromCache, len(result.Failures))
}
