// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

const (
	// pastParticipantsPageSize is the page size for the past-meetings participants API.
	pastParticipantsPageSize = 300
	// qosPageSize is the page size for the dashboard QoS API, which caps at 10.
	qosPageSize = 10
	// maxPages bounds pagination loops against a misbehaving next_page_token.
	maxPages = 200
)

// pastParticipantsResponse is the wire shape of the past-meetings and report
// participants APIs. The attentiveness score arrives as string or number
// depending on account plan, so it is captured raw.
type pastParticipantsResponse struct {
	NextPageToken string            `json:"next_page_token"`
	Participants  []pastParticipant `json:"participants"`
}

type pastParticipant struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	Name               string          `json:"name"`
	UserEmail          string          `json:"user_email"`
	JoinTime           string          `json:"join_time"`
	LeaveTime          string          `json:"leave_time"`
	Duration           int             `json:"duration"`
	AttentivenessScore json.RawMessage `json:"attentiveness_score,omitempty"`
}

func (p pastParticipant) toModel() models.PastParticipant {
	return models.PastParticipant{
		ID:                 p.ID,
		UserID:             p.UserID,
		Name:               p.Name,
		UserEmail:          p.UserEmail,
		JoinTime:           p.JoinTime,
		LeaveTime:          p.LeaveTime,
		Duration:           p.Duration,
		AttentivenessScore: rawToString(p.AttentivenessScore),
	}
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

// uuidPathVariants returns the URL path encodings to try for a meeting UUID.
// UUIDs containing '/' or '+' must be double-encoded; simple IDs also work
// raw. Each variant appears once, most specific first.
func uuidPathVariants(meetingUUID string) []string {
	single := url.QueryEscape(meetingUUID)
	double := url.QueryEscape(single)

	variants := []string{double}
	if single != double {
		variants = append(variants, single)
	}
	if meetingUUID != double && !strings.ContainsAny(meetingUUID, "/+=") {
		variants = append(variants, meetingUUID)
	}
	return variants
}

// GetPastMeetingParticipants returns the final participant list of an ended
// meeting, following pagination. The past-meetings API is tried with each
// UUID encoding, then the report API as a fallback (it requires a Pro+ plan
// but can return richer data).
func (c *Client) GetPastMeetingParticipants(ctx context.Context, meetingUUID string) ([]models.PastParticipant, error) {
	ctx = logging.AppendCtx(ctx, slog.String("zoom_operation", "get_past_meeting_participants"))

	var paths []string
	for _, variant := range uuidPathVariants(meetingUUID) {
		paths = append(paths, fmt.Sprintf("/past_meetings/%s/participants", variant))
	}
	paths = append(paths, fmt.Sprintf("/report/meetings/%s/participants", url.QueryEscape(meetingUUID)))

	var lastErr error
	for _, path := range paths {
		participants, err := c.fetchAllParticipants(ctx, path)
		if err != nil {
			lastErr = err
			slog.DebugContext(ctx, "participant fetch variant failed, trying next",
				"path", path, logging.ErrKey, err)
			continue
		}
		if len(participants) > 0 {
			slog.InfoContext(ctx, "fetched past meeting participants",
				"path", path, "count", len(participants))
			return participants, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, domain.NewNotFoundError("no participants found for meeting")
}

func (c *Client) fetchAllParticipants(ctx context.Context, basePath string) ([]models.PastParticipant, error) {
	var all []models.PastParticipant
	nextPageToken := ""

	for page := 0; page < maxPages; page++ {
		path := fmt.Sprintf("%s?page_size=%d", basePath, pastParticipantsPageSize)
		if nextPageToken != "" {
			path += "&next_page_token=" + url.QueryEscape(nextPageToken)
		}

		resp, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return nil, err
		}

		body, err := readBody(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, parseErrorResponse(body)
		}

		var pageResp pastParticipantsResponse
		if err := json.Unmarshal(body, &pageResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participants response: %w", err)
		}

		for _, p := range pageResp.Participants {
			all = append(all, p.toModel())
		}

		nextPageToken = pageResp.NextPageToken
		if nextPageToken == "" {
			break
		}
	}

	return all, nil
}

// qosResponse is the wire shape of the dashboard participant QoS API.
type qosResponse struct {
	NextPageToken string           `json:"next_page_token"`
	Participants  []qosParticipant `json:"participants"`
}

type qosParticipant struct {
	ID       string `json:"id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	UserQoS  []struct {
		VideoOutput struct {
			Bitrate    string `json:"bitrate"`
			Resolution string `json:"resolution"`
			FrameRate  string `json:"frame_rate"`
		} `json:"video_output"`
	} `json:"user_qos"`
}

// GetDashboardParticipants returns per-participant dashboard data for an
// ended meeting. The camera is considered on when any QoS sample reported a
// video output bitrate. Requires a Business+ plan and the
// dashboard_meetings:read:admin scope.
func (c *Client) GetDashboardParticipants(ctx context.Context, meetingUUID string) ([]models.DashboardParticipant, error) {
	ctx = logging.AppendCtx(ctx, slog.String("zoom_operation", "get_dashboard_participants"))

	encoded := url.QueryEscape(url.QueryEscape(meetingUUID))
	basePath := fmt.Sprintf("/metrics/meetings/%s/participants/qos", encoded)

	var all []models.DashboardParticipant
	nextPageToken := ""

	for page := 0; page < maxPages; page++ {
		path := fmt.Sprintf("%s?type=past&page_size=%d", basePath, qosPageSize)
		if nextPageToken != "" {
			path += "&next_page_token=" + url.QueryEscape(nextPageToken)
		}

		resp, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return nil, err
		}

		body, err := readBody(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusForbidden:
			// Dashboard access is plan-gated; treat as no camera data.
			slog.WarnContext(ctx, "dashboard QoS API forbidden, camera data unavailable",
				"status", resp.StatusCode)
			return all, nil
		case http.StatusNotFound:
			return nil, domain.NewNotFoundError("meeting not found in dashboard metrics", parseErrorResponse(body))
		default:
			return nil, parseErrorResponse(body)
		}

		var pageResp qosResponse
		if err := json.Unmarshal(body, &pageResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal QoS response: %w", err)
		}

		for _, p := range pageResp.Participants {
			participant := models.DashboardParticipant{
				ID:       p.ID,
				UserName: p.UserName,
				Email:    p.Email,
			}
			for _, sample := range p.UserQoS {
				if sample.VideoOutput.Bitrate != "" {
					participant.CameraOn = true
					participant.Bitrate = sample.VideoOutput.Bitrate
					participant.Resolution = sample.VideoOutput.Resolution
					participant.FrameRate = sample.VideoOutput.FrameRate
					break
				}
			}
			all = append(all, participant)
		}

		nextPageToken = pageResp.NextPageToken
		if nextPageToken == "" {
			break
		}
	}

	return all, nil
}
