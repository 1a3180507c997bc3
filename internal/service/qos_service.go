// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
	"github.com/verveadvisory/breakout-tracker-service/pkg/concurrent"
)

const (
	// DefaultFinalizeDelay is how long after meeting.ended the collection
	// waits for Zoom to finalize the past-meeting data.
	DefaultFinalizeDelay = 30 * time.Second

	// scheduledMeetingLimit caps how many meetings a scheduled pass collects.
	scheduledMeetingLimit = 5

	// scheduledSkipThreshold skips a scheduled pass when the date already has
	// this many QoS records, since the webhook path already collected them.
	scheduledSkipThreshold = 50

	// qosRetentionDays is how long QoS records are kept before the scheduled
	// pass cleans them up.
	qosRetentionDays = 2
)

// QoSService collects per-participant quality-of-service data for finished
// meetings from the Zoom REST APIs.
type QoSService struct {
	provider domain.PastMeetingProvider
	qos      domain.QoSRepository
	events   domain.ParticipantEventRepository

	finalizeDelay time.Duration
	pool          *concurrent.WorkerPool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewQoSService creates the QoS collection service. A zero finalizeDelay
// selects the default.
func NewQoSService(
	provider domain.PastMeetingProvider,
	qos domain.QoSRepository,
	events domain.ParticipantEventRepository,
	finalizeDelay time.Duration,
) *QoSService {
	if finalizeDelay == 0 {
		finalizeDelay = DefaultFinalizeDelay
	}
	return &QoSService{
		provider:      provider,
		qos:           qos,
		events:        events,
		finalizeDelay: finalizeDelay,
		pool:          concurrent.NewWorkerPool(scheduledMeetingLimit),
		now:           time.Now,
		sleep:         sleepContext,
	}
}

// ServiceReady checks if the service is ready to collect QoS data.
func (s *QoSService) ServiceReady() bool {
	return s.provider != nil && s.qos != nil && s.events != nil
}

// CollectAsync schedules QoS collection for an ended meeting after the
// finalize delay. It implements [QoSCollector] and returns immediately; the
// collection runs on a background context since the triggering webhook request
// has long since been answered.
func (s *QoSService) CollectAsync(meetingUUID, meetingID string) {
	go func() {
		ctx := context.Background()
		if err := s.sleep(ctx, s.finalizeDelay); err != nil {
			return
		}
		if _, err := s.Collect(ctx, meetingUUID, meetingID, ""); err != nil {
			slog.ErrorContext(ctx, "background QoS collection failed",
				logging.ErrKey, err,
				"meeting_uuid", meetingUUID,
			)
		}
	}()
}

// Collect fetches the final participant list and dashboard camera data for a
// meeting and stores one QoS record per participant. The UUID is tried first
// and the numeric meeting ID second, since Zoom accepts either but not always
// both. An empty eventDate defaults to today.
func (s *QoSService) Collect(ctx context.Context, meetingUUID, meetingID, eventDate string) (int, error) {
	ctx = logging.AppendCtx(ctx, slog.String("meeting_uuid", meetingUUID))

	if meetingUUID == "" && meetingID == "" {
		return 0, domain.NewValidationError("meeting UUID or ID is required")
	}
	if s.provider == nil {
		return 0, domain.NewUnavailableError("Zoom API client is not configured")
	}
	if eventDate == "" {
		eventDate = s.now().UTC().Format(time.DateOnly)
	}

	participants, lookupID, err := s.fetchParticipants(ctx, meetingUUID, meetingID)
	if err != nil {
		return 0, err
	}
	if len(participants) == 0 {
		slog.InfoContext(ctx, "no participants found for ended meeting")
		return 0, nil
	}

	cameras := s.fetchCameraData(ctx, lookupID)

	stored := 0
	now := s.now().UTC()
	for _, p := range participants {
		record := &models.QoSRecord{
			QoSID:              uuid.New().String(),
			MeetingUUID:        meetingUUID,
			ParticipantID:      participantID(p),
			ParticipantName:    p.Name,
			ParticipantEmail:   p.UserEmail,
			JoinTime:           p.JoinTime,
			LeaveTime:          p.LeaveTime,
			DurationMinutes:    p.Duration / 60,
			AttentivenessScore: p.AttentivenessScore,
			RecordedAt:         now,
			EventDate:          eventDate,
		}

		if camera, ok := cameras[cameraKey(p.Name, p.UserEmail)]; ok {
			record.CameraOn = camera.CameraOn
			record.CameraBitrate = camera.Bitrate
			record.CameraResolution = camera.Resolution
		}

		if err := s.qos.Create(ctx, record); err != nil {
			slog.WarnContext(ctx, "failed to store QoS record",
				logging.ErrKey, err,
				"participant_name", p.Name,
			)
			continue
		}
		stored++
	}

	slog.InfoContext(ctx, "QoS collection finished",
		"participants", len(participants),
		"stored", stored,
	)
	return stored, nil
}

// fetchParticipants tries the meeting UUID first and the numeric ID second.
// The identifier that worked is returned for the dashboard lookup.
func (s *QoSService) fetchParticipants(ctx context.Context, meetingUUID, meetingID string) ([]models.PastParticipant, string, error) {
	var lastErr error
	for _, id := range []string{meetingUUID, meetingID} {
		if id == "" {
			continue
		}
		participants, err := s.provider.GetPastMeetingParticipants(ctx, id)
		if err != nil {
			lastErr = err
			slog.DebugContext(ctx, "participant lookup failed, trying next identifier",
				"identifier", id, logging.ErrKey, err)
			continue
		}
		return participants, id, nil
	}
	return nil, "", domain.NewNotFoundError("no participant data found for meeting", lastErr)
}

// fetchCameraData returns dashboard camera data keyed by participant name and
// email. Dashboard access needs a Business+ plan, so failure only degrades the
// records.
func (s *QoSService) fetchCameraData(ctx context.Context, lookupID string) map[string]models.DashboardParticipant {
	dashboard, err := s.provider.GetDashboardParticipants(ctx, lookupID)
	if err != nil {
		slog.WarnContext(ctx, "dashboard camera data unavailable", logging.ErrKey, err)
		return nil
	}

	cameras := make(map[string]models.DashboardParticipant, len(dashboard))
	for _, d := range dashboard {
		cameras[cameraKey(d.UserName, d.Email)] = d
	}
	return cameras
}

// ScheduledResult summarizes one scheduled collection pass.
type ScheduledResult struct {
	EventDate       string   `json:"event_date"`
	Skipped         bool     `json:"skipped"`
	SkipReason      string   `json:"skip_reason,omitempty"`
	Meetings        []string `json:"meetings,omitempty"`
	RecordsStored   int      `json:"records_stored"`
	RecordsCleaned  int      `json:"records_cleaned"`
	CollectionError string   `json:"collection_error,omitempty"`
}

// CollectScheduled runs the nightly catch-up pass: it collects QoS data for
// every meeting seen in the participant events of the target date, unless the
// date already has enough records, then prunes records past retention. An
// empty date defaults to yesterday.
func (s *QoSService) CollectScheduled(ctx context.Context, eventDate string) (*ScheduledResult, error) {
	if eventDate == "" {
		eventDate = s.now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	}
	ctx = logging.AppendCtx(ctx, slog.String("event_date", eventDate))

	result := &ScheduledResult{EventDate: eventDate}

	existing, err := s.qos.ListByDate(ctx, eventDate)
	if err != nil {
		return nil, domain.NewInternalError("failed to count existing QoS records", err)
	}
	if len(existing) > scheduledSkipThreshold {
		result.Skipped = true
		result.SkipReason = "date already has QoS records"
		slog.InfoContext(ctx, "skipping scheduled QoS collection",
			"existing_records", len(existing))
		s.cleanup(ctx, result)
		return result, nil
	}

	meetings, err := s.meetingUUIDsForDate(ctx, eventDate)
	if err != nil {
		return nil, err
	}
	result.Meetings = meetings

	var mu sync.Mutex
	fns := make([]func() error, 0, len(meetings))
	for _, meetingUUID := range meetings {
		fns = append(fns, func() error {
			stored, err := s.Collect(ctx, meetingUUID, "", eventDate)
			if err != nil {
				return err
			}
			mu.Lock()
			result.RecordsStored += stored
			mu.Unlock()
			return nil
		})
	}

	for _, err := range s.pool.RunAll(ctx, fns...) {
		slog.WarnContext(ctx, "scheduled collection failed for a meeting", logging.ErrKey, err)
		result.CollectionError = err.Error()
	}

	s.cleanup(ctx, result)
	return result, nil
}

// meetingUUIDsForDate returns the distinct meeting UUIDs present in the
// participant events of a date, capped at the scheduled limit.
func (s *QoSService) meetingUUIDsForDate(ctx context.Context, eventDate string) ([]string, error) {
	events, err := s.events.ListByDate(ctx, eventDate)
	if err != nil {
		return nil, domain.NewInternalError("failed to list participant events", err)
	}

	seen := make(map[string]bool)
	var meetings []string
	for _, event := range events {
		if event.MeetingUUID == "" || seen[event.MeetingUUID] {
			continue
		}
		seen[event.MeetingUUID] = true
		meetings = append(meetings, event.MeetingUUID)
		if len(meetings) >= scheduledMeetingLimit {
			break
		}
	}
	return meetings, nil
}

func (s *QoSService) cleanup(ctx context.Context, result *ScheduledResult) {
	cutoff := s.now().UTC().AddDate(0, 0, -qosRetentionDays).Format(time.DateOnly)
	deleted, err := s.qos.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.WarnContext(ctx, "failed to prune old QoS records", logging.ErrKey, err)
		return
	}
	result.RecordsCleaned = deleted
}

// QoSDateStatus is the per-date record count reported by Status.
type QoSDateStatus struct {
	EventDate string `json:"event_date"`
	Records   int    `json:"records"`
}

// Status reports QoS record counts for the last week, newest first.
func (s *QoSService) Status(ctx context.Context) ([]QoSDateStatus, error) {
	today := s.now().UTC()

	statuses := make([]QoSDateStatus, 0, 7)
	for i := 0; i < 7; i++ {
		date := today.AddDate(0, 0, -i).Format(time.DateOnly)
		records, err := s.qos.ListByDate(ctx, date)
		if err != nil {
			return nil, domain.NewInternalError("failed to list QoS records", err)
		}
		statuses = append(statuses, QoSDateStatus{EventDate: date, Records: len(records)})
	}
	return statuses, nil
}

func participantID(p models.PastParticipant) string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.ID
}

// cameraKey joins dashboard rows to participant rows; Zoom is inconsistent
// about casing between the two APIs.
func cameraKey(name, email string) string {
	return strings.ToLower(name) + "|" + strings.ToLower(email)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
