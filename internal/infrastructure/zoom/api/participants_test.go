// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
)

func TestUUIDPathVariants(t *testing.T) {
	// UUIDs with special characters get double then single encoding only.
	variants := uuidPathVariants("aB3+cD//eF==")
	require.Len(t, variants, 2)
	assert.Equal(t, url.QueryEscape(url.QueryEscape("aB3+cD//eF==")), variants[0])
	assert.Equal(t, url.QueryEscape("aB3+cD//eF=="), variants[1])

	// Plain IDs collapse to a single raw variant.
	variants = uuidPathVariants("8412345678")
	assert.Equal(t, []string{"8412345678"}, variants)
}

func TestGetPastMeetingParticipantsPagination(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "300", r.URL.Query().Get("page_size"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("next_page_token") == "" {
			fmt.Fprint(w, `{"next_page_token":"page2","participants":[
				{"id":"p1","name":"Alice","user_email":"alice@example.com","duration":1800,"attentiveness_score":"92%"}]}`)
			return
		}
		fmt.Fprint(w, `{"participants":[
			{"id":"p2","name":"Bob","duration":600,"attentiveness_score":87}]}`)
	}))

	participants, err := client.GetPastMeetingParticipants(context.Background(), "8412345678")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "Alice", participants[0].Name)
	assert.Equal(t, 1800, participants[0].Duration)
	assert.Equal(t, "92%", participants[0].AttentivenessScore)
	// Numeric scores are carried over as their literal text.
	assert.Equal(t, "87", participants[1].AttentivenessScore)
}

func TestGetPastMeetingParticipantsFallsBackToReportAPI(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/report/meetings/") {
			fmt.Fprint(w, `{"participants":[{"id":"p1","name":"Alice","duration":900}]}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":3001,"message":"Meeting does not exist"}`)
	}))

	participants, err := client.GetPastMeetingParticipants(context.Background(), "aB3+cD//eF==")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "Alice", participants[0].Name)
	// Both past-meetings encodings were tried before the report fallback.
	assert.Len(t, paths, 3)
}

func TestGetPastMeetingParticipantsNoneFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"participants":[]}`)
	}))

	participants, err := client.GetPastMeetingParticipants(context.Background(), "8412345678")
	assert.Nil(t, participants)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestGetDashboardParticipants(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "past", r.URL.Query().Get("type"))
		assert.Equal(t, "10", r.URL.Query().Get("page_size"))
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"participants": []map[string]any{
				{
					"id":        "p1",
					"user_name": "Alice",
					"email":     "alice@example.com",
					"user_qos": []map[string]any{
						{"video_output": map[string]any{}},
						{"video_output": map[string]any{"bitrate": "100 kbps", "resolution": "640*360", "frame_rate": "25 fps"}},
					},
				},
				{
					"id":        "p2",
					"user_name": "Bob",
					"user_qos": []map[string]any{
						{"video_output": map[string]any{}},
					},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))

	participants, err := client.GetDashboardParticipants(context.Background(), "aB3+cD//eF==")
	require.NoError(t, err)
	require.Len(t, participants, 2)

	assert.True(t, participants[0].CameraOn)
	assert.Equal(t, "100 kbps", participants[0].Bitrate)
	assert.Equal(t, "640*360", participants[0].Resolution)
	assert.False(t, participants[1].CameraOn)
	assert.Empty(t, participants[1].Bitrate)
}

func TestGetDashboardParticipantsPlanGated(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"code":200,"message":"Only available for paid accounts"}`)
	}))

	participants, err := client.GetDashboardParticipants(context.Background(), "8412345678")
	require.NoError(t, err)
	assert.Empty(t, participants)
}

func TestGetDashboardParticipantsNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":3001,"message":"Meeting does not exist"}`)
	}))

	_, err := client.GetDashboardParticipants(context.Background(), "8412345678")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestRawToString(t *testing.T) {
	assert.Equal(t, "", rawToString(nil))
	assert.Equal(t, "92%", rawToString(json.RawMessage(`"92%"`)))
	assert.Equal(t, "87", rawToString(json.RawMessage(`87`)))
}
