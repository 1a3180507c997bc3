// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// DefaultReportTimezone is the timezone report times are rendered in.
const DefaultReportTimezone = "Asia/Kolkata"

// scoutNameMarker excludes scout bot rows that slipped into the event data.
const scoutNameMarker = "Scout"

// ReportRow is one participant's daily attendance summary.
type ReportRow struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	MainJoined        string `json:"main_joined"`
	MainLeft          string `json:"main_left"`
	TotalDurationMin  int    `json:"total_duration_min"`
	QoSDurationMin    int    `json:"qos_duration_min"`
	CameraOnIntervals int    `json:"camera_on_intervals"`
	FirstCameraOn     string `json:"first_camera_on"`
	LastCameraOff     string `json:"last_camera_off"`
	RoomHistory       string `json:"room_history"`
}

// DailyReport is the assembled report for one date.
type DailyReport struct {
	ReportDate  string      `json:"report_date"`
	Timezone    string      `json:"timezone"`
	Rows        []ReportRow `json:"rows"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// ReportService assembles the daily breakout room attendance report from the
// captured events.
type ReportService struct {
	events   domain.ParticipantEventRepository
	cameras  domain.CameraEventRepository
	mappings domain.RoomMappingRepository
	qos      domain.QoSRepository
	email    domain.EmailService

	recipients []string
	location   *time.Location

	now func() time.Time
}

// NewReportService creates the report service. An empty timezone selects the
// default; the email service may be nil when report delivery is not
// configured.
func NewReportService(
	events domain.ParticipantEventRepository,
	cameras domain.CameraEventRepository,
	mappings domain.RoomMappingRepository,
	qos domain.QoSRepository,
	email domain.EmailService,
	recipients []string,
	timezone string,
) (*ReportService, error) {
	if timezone == "" {
		timezone = DefaultReportTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid report timezone %q: %w", timezone, err)
	}

	return &ReportService{
		events:     events,
		cameras:    cameras,
		mappings:   mappings,
		qos:        qos,
		email:      email,
		recipients: recipients,
		location:   location,
		now:        time.Now,
	}, nil
}

// ServiceReady checks if the service is ready to build reports.
func (s *ReportService) ServiceReady() bool {
	return s.events != nil && s.cameras != nil && s.mappings != nil && s.qos != nil
}

// Generate builds the report for a date. An empty date defaults to today.
func (s *ReportService) Generate(ctx context.Context, reportDate string) (*DailyReport, error) {
	if reportDate == "" {
		reportDate = s.now().UTC().Format(time.DateOnly)
	}
	ctx = logging.AppendCtx(ctx, slog.String("report_date", reportDate))

	events, err := s.events.ListByDate(ctx, reportDate)
	if err != nil {
		return nil, domain.NewInternalError("failed to list participant events", err)
	}
	cameraEvents, err := s.cameras.ListByDate(ctx, reportDate)
	if err != nil {
		return nil, domain.NewInternalError("failed to list camera events", err)
	}
	qosRecords, err := s.qos.ListByDate(ctx, reportDate)
	if err != nil {
		return nil, domain.NewInternalError("failed to list QoS records", err)
	}
	mappings, err := s.mappings.ListByDate(ctx, reportDate)
	if err != nil {
		return nil, domain.NewInternalError("failed to list room mappings", err)
	}

	rows := s.buildRows(events, cameraEvents, qosRecords, mappings)
	slog.InfoContext(ctx, "daily report generated",
		"participants", len(rows),
		"events", len(events),
	)

	return &DailyReport{
		ReportDate:  reportDate,
		Timezone:    s.location.String(),
		Rows:        rows,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// GenerateCSV builds the report for a date and renders it as CSV.
func (s *ReportService) GenerateCSV(ctx context.Context, reportDate string) (*DailyReport, []byte, error) {
	report, err := s.Generate(ctx, reportDate)
	if err != nil {
		return nil, nil, err
	}
	csvData, err := renderCSV(report)
	if err != nil {
		return nil, nil, domain.NewInternalError("failed to render report CSV", err)
	}
	return report, csvData, nil
}

// SendDaily generates the report for a date and emails it to the configured
// recipients.
func (s *ReportService) SendDaily(ctx context.Context, reportDate string) error {
	if s.email == nil {
		return domain.NewUnavailableError("report email delivery is not configured")
	}
	if len(s.recipients) == 0 {
		return domain.NewValidationError("no report recipients configured")
	}

	report, csvData, err := s.GenerateCSV(ctx, reportDate)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Attached is the breakout room report for %s (%d participants, times in %s).",
		report.ReportDate, len(report.Rows), report.Timezone)

	return s.email.SendDailyReport(ctx, domain.ReportEmail{
		Recipients: s.recipients,
		ReportDate: report.ReportDate,
		Summary:    summary,
		CSV:        csvData,
	})
}

// roomVisit is one resolved stay in a breakout room.
type roomVisit struct {
	roomName string
	joined   time.Time
	left     *time.Time
}

// participantAggregate accumulates one report row before rendering.
type participantAggregate struct {
	name  string
	email string

	mainJoined *time.Time
	mainLeft   *time.Time

	breakoutJoins  []*models.ParticipantEvent
	breakoutLeaves []*models.ParticipantEvent

	cameraOnCount int
	firstCameraOn *time.Time
	lastCameraOff *time.Time

	qosMinutes int
}

func (s *ReportService) buildRows(
	events []*models.ParticipantEvent,
	cameraEvents []*models.CameraEvent,
	qosRecords []*models.QoSRecord,
	mappings []*models.RoomMapping,
) []ReportRow {
	resolver := newRoomNameResolver(mappings)

	aggregates := make(map[string]*participantAggregate)
	var order []string

	aggregate := func(name, email string) *participantAggregate {
		key := strings.ToLower(name) + "|" + strings.ToLower(email)
		agg, ok := aggregates[key]
		if !ok {
			agg = &participantAggregate{name: name, email: email}
			aggregates[key] = agg
			order = append(order, key)
		}
		return agg
	}

	for _, event := range events {
		if strings.Contains(event.ParticipantName, scoutNameMarker) {
			continue
		}
		agg := aggregate(event.ParticipantName, event.ParticipantEmail)
		ts := event.EventTimestamp

		switch event.EventType {
		case models.EventTypeParticipantJoined:
			if agg.mainJoined == nil || ts.Before(*agg.mainJoined) {
				agg.mainJoined = &ts
			}
		case models.EventTypeParticipantLeft:
			if agg.mainLeft == nil || ts.After(*agg.mainLeft) {
				agg.mainLeft = &ts
			}
		case models.EventTypeBreakoutRoomJoined:
			agg.breakoutJoins = append(agg.breakoutJoins, event)
		case models.EventTypeBreakoutRoomLeft:
			agg.breakoutLeaves = append(agg.breakoutLeaves, event)
		}
	}

	for _, event := range cameraEvents {
		if strings.Contains(event.ParticipantName, scoutNameMarker) {
			continue
		}
		agg := aggregate(event.ParticipantName, event.ParticipantEmail)
		ts := event.EventTimestamp

		if event.CameraOn {
			agg.cameraOnCount++
			if agg.firstCameraOn == nil || ts.Before(*agg.firstCameraOn) {
				agg.firstCameraOn = &ts
			}
		} else if agg.lastCameraOff == nil || ts.After(*agg.lastCameraOff) {
			agg.lastCameraOff = &ts
		}
	}

	// QoS rows are keyed by name only; the dashboard APIs do not reliably
	// carry the email.
	qosByName := make(map[string]int)
	for _, record := range qosRecords {
		name := strings.ToLower(record.ParticipantName)
		if record.DurationMinutes > qosByName[name] {
			qosByName[name] = record.DurationMinutes
		}
	}

	rows := make([]ReportRow, 0, len(aggregates))
	for _, key := range order {
		agg := aggregates[key]
		agg.qosMinutes = qosByName[strings.ToLower(agg.name)]
		rows = append(rows, s.renderRow(agg, resolver))
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

func (s *ReportService) renderRow(agg *participantAggregate, resolver *roomNameResolver) ReportRow {
	row := ReportRow{
		Name:              agg.name,
		Email:             agg.email,
		MainJoined:        s.clock(agg.mainJoined),
		MainLeft:          s.clock(agg.mainLeft),
		QoSDurationMin:    agg.qosMinutes,
		CameraOnIntervals: agg.cameraOnCount,
		FirstCameraOn:     s.clock(agg.firstCameraOn),
		LastCameraOff:     s.clock(agg.lastCameraOff),
	}

	if agg.mainJoined != nil && agg.mainLeft != nil {
		row.TotalDurationMin = int(agg.mainLeft.Sub(*agg.mainJoined).Minutes())
	}

	row.RoomHistory = s.roomHistory(agg, resolver)
	return row
}

// roomHistory pairs each breakout join with the earliest later leave for the
// same room and renders the visit sequence.
func (s *ReportService) roomHistory(agg *participantAggregate, resolver *roomNameResolver) string {
	joins := agg.breakoutJoins
	sort.Slice(joins, func(i, j int) bool {
		return joins[i].EventTimestamp.Before(joins[j].EventTimestamp)
	})

	usedLeaves := make(map[int]bool)
	var visits []roomVisit
	for _, join := range joins {
		visit := roomVisit{
			roomName: resolver.resolve(join.RoomUUID, join.RoomName),
			joined:   join.EventTimestamp,
		}

		for i, leave := range agg.breakoutLeaves {
			if usedLeaves[i] || leave.RoomUUID != join.RoomUUID {
				continue
			}
			if !leave.EventTimestamp.After(join.EventTimestamp) {
				continue
			}
			if visit.left == nil || leave.EventTimestamp.Before(*visit.left) {
				visit.left = &leave.EventTimestamp
			}
		}
		if visit.left != nil {
			for i, leave := range agg.breakoutLeaves {
				if !usedLeaves[i] && leave.EventTimestamp.Equal(*visit.left) && leave.RoomUUID == join.RoomUUID {
					usedLeaves[i] = true
					break
				}
			}
		}

		visits = append(visits, visit)
	}

	parts := make([]string, 0, len(visits))
	for _, visit := range visits {
		if visit.left == nil {
			parts = append(parts, fmt.Sprintf("%s [%s-?]", visit.roomName, s.clockValue(visit.joined)))
			continue
		}
		minutes := int(visit.left.Sub(visit.joined).Minutes())
		parts = append(parts, fmt.Sprintf("%s [%s-%s %dmin]",
			visit.roomName, s.clockValue(visit.joined), s.clockValue(*visit.left), minutes))
	}
	return strings.Join(parts, " | ")
}

func (s *ReportService) clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return s.clockValue(*t)
}

func (s *ReportService) clockValue(t time.Time) string {
	return t.In(s.location).Format("15:04")
}

// roomNameResolver maps event room UUIDs to calibrated room names. Webhook
// calibration mappings are matched on the leading UUID prefix since the event
// and mapping sides observe different UUID tails.
type roomNameResolver struct {
	byPrefix map[string]string
}

func newRoomNameResolver(mappings []*models.RoomMapping) *roomNameResolver {
	r := &roomNameResolver{byPrefix: make(map[string]string)}
	for _, m := range mappings {
		if m.Source != models.MappingSourceWebhookCalibration || m.RoomUUID == "" {
			continue
		}
		prefix := m.RoomUUID
		if len(prefix) > webhookUUIDPrefixLen {
			prefix = prefix[:webhookUUIDPrefixLen]
		}
		if _, exists := r.byPrefix[prefix]; !exists {
			r.byPrefix[prefix] = m.RoomName
		}
	}
	return r
}

// resolve returns the calibrated room name for a UUID, falling back to the
// name recorded on the event itself.
func (r *roomNameResolver) resolve(roomUUID, eventRoomName string) string {
	for prefix, name := range r.byPrefix {
		if strings.HasPrefix(roomUUID, prefix) {
			return name
		}
	}
	if eventRoomName != "" {
		return eventRoomName
	}
	return "Unknown Room"
}

var csvHeader = []string{
	"Name", "Email", "Main_Joined", "Main_Left", "Total_Duration_Min",
	"QoS_Duration_Min", "Camera_On_Intervals", "First_Camera_On",
	"Last_Camera_Off", "Room_History",
}

func renderCSV(report *DailyReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range report.Rows {
		record := []string{
			row.Name,
			row.Email,
			row.MainJoined,
			row.MainLeft,
			strconv.Itoa(row.TotalDurationMin),
			strconv.Itoa(row.QoSDurationMin),
			strconv.Itoa(row.CameraOnIntervals),
			row.FirstCameraOn,
			row.LastCameraOff,
			row.RoomHistory,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
