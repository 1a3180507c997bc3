// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
	"github.com/verveadvisory/breakout-tracker-service/internal/service"
)

// ReadinessChecker reports whether a component is ready to serve.
type ReadinessChecker interface {
	IsReady() bool
}

// HTTPHandler is the HTTP API surface of the service.
type HTTPHandler struct {
	webhook     *ZoomWebhookHTTPHandler
	calibration *service.CalibrationService
	qos         *service.QoSService
	report      *service.ReportService
	state       *service.MeetingState
	readiness   []ReadinessChecker
}

// NewHTTPHandler creates the HTTP handler over the given services.
func NewHTTPHandler(
	webhookHandler *ZoomWebhookHTTPHandler,
	calibration *service.CalibrationService,
	qos *service.QoSService,
	report *service.ReportService,
	state *service.MeetingState,
	readiness ...ReadinessChecker,
) *HTTPHandler {
	return &HTTPHandler{
		webhook:     webhookHandler,
		calibration: calibration,
		qos:         qos,
		report:      report,
		state:       state,
		readiness:   readiness,
	}
}

// RegisterRoutes attaches every endpoint to the router.
func (h *HTTPHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.handleLivez).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.handleReadyz).Methods(http.MethodGet)

	r.HandleFunc("/webhook/zoom", h.webhook.Handle).Methods(http.MethodPost)

	r.HandleFunc("/calibration/start", h.handleCalibrationStart).Methods(http.MethodPost)
	r.HandleFunc("/calibration/mappings", h.handleCalibrationRecordMappings).Methods(http.MethodPost)
	r.HandleFunc("/calibration/mappings", h.handleCalibrationMappings).Methods(http.MethodGet)
	r.HandleFunc("/calibration/complete", h.handleCalibrationComplete).Methods(http.MethodPost)
	r.HandleFunc("/calibration/status", h.handleCalibrationStatus).Methods(http.MethodGet)
	r.HandleFunc("/calibration/run", h.handleCalibrationRun).Methods(http.MethodPost)

	r.HandleFunc("/qos/collect", h.handleQoSCollect).Methods(http.MethodPost)
	r.HandleFunc("/qos/scheduled", h.handleQoSScheduled).Methods(http.MethodPost)
	r.HandleFunc("/qos/status", h.handleQoSStatus).Methods(http.MethodGet)

	r.HandleFunc("/report/daily", h.handleReportDaily).Methods(http.MethodGet)
	r.HandleFunc("/report/send", h.handleReportSend).Methods(http.MethodPost)

	r.HandleFunc("/debug/state", h.handleDebugState).Methods(http.MethodGet)
	r.HandleFunc("/debug/reset", h.handleDebugReset).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := h.state.Snapshot()
	writeJSON(r, w, http.StatusOK, map[string]interface{}{
		"status":               "healthy",
		"meeting_id":           snapshot.MeetingID,
		"meeting_date":         snapshot.MeetingDate,
		"calibration_complete": snapshot.CalibrationComplete,
		"rooms_mapped":         snapshot.RoomsMapped,
		"tracked_participants": snapshot.TrackedParticipants,
	})
}

func (h *HTTPHandler) handleLivez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *HTTPHandler) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	for _, checker := range h.readiness {
		if !checker.IsReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *HTTPHandler) handleCalibrationStart(w http.ResponseWriter, r *http.Request) {
	var req service.StartCalibrationRequest
	if !decodeJSON(r, w, &req) {
		return
	}
	if err := h.calibration.Start(r.Context(), req); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, map[string]string{"status": "calibration_started"})
}

func (h *HTTPHandler) handleCalibrationRecordMappings(w http.ResponseWriter, r *http.Request) {
	var req service.RecordMappingsRequest
	if !decodeJSON(r, w, &req) {
		return
	}
	resp, err := h.calibration.RecordMappings(r.Context(), req)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleCalibrationMappings(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, map[string]interface{}{
		"mappings": h.calibration.Mappings(),
	})
}

func (h *HTTPHandler) handleCalibrationComplete(w http.ResponseWriter, r *http.Request) {
	var req service.CompleteCalibrationRequest
	if !decodeJSON(r, w, &req) {
		return
	}
	resp, err := h.calibration.Complete(r.Context(), req)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleCalibrationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, h.calibration.Status())
}

func (h *HTTPHandler) handleCalibrationRun(w http.ResponseWriter, r *http.Request) {
	var req service.RunCalibrationRequest
	if !decodeJSON(r, w, &req) {
		return
	}
	result, err := h.calibration.Run(r.Context(), req)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, result)
}

type qosCollectRequest struct {
	MeetingUUID string `json:"meeting_uuid"`
	MeetingID   string `json:"meeting_id,omitempty"`
	EventDate   string `json:"event_date,omitempty"`
}

func (h *HTTPHandler) handleQoSCollect(w http.ResponseWriter, r *http.Request) {
	var req qosCollectRequest
	if !decodeJSON(r, w, &req) {
		return
	}
	stored, err := h.qos.Collect(r.Context(), req.MeetingUUID, req.MeetingID, req.EventDate)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, map[string]int{"records_stored": stored})
}

type qosScheduledRequest struct {
	EventDate string `json:"event_date,omitempty"`
}

func (h *HTTPHandler) handleQoSScheduled(w http.ResponseWriter, r *http.Request) {
	var req qosScheduledRequest
	if !decodeJSON(r, w, &req) {
		return
	}
	result, err := h.qos.CollectScheduled(r.Context(), req.EventDate)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, result)
}

func (h *HTTPHandler) handleQoSStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.qos.Status(r.Context())
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, map[string]interface{}{"dates": statuses})
}

func (h *HTTPHandler) handleReportDaily(w http.ResponseWriter, r *http.Request) {
	reportDate := r.URL.Query().Get("date")

	if r.URL.Query().Get("format") == "json" {
		report, err := h.report.Generate(r.Context(), reportDate)
		if err != nil {
			writeError(r, w, err)
			return
		}
		writeJSON(r, w, http.StatusOK, report)
		return
	}

	report, csvData, err := h.report.GenerateCSV(r.Context(), reportDate)
	if err != nil {
		writeError(r, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		`attachment; filename="breakout-report-`+report.ReportDate+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(csvData)
}

type reportSendRequest struct {
	ReportDate string `json:"report_date,omitempty"`
}

func (h *HTTPHandler) handleReportSend(w http.ResponseWriter, r *http.Request) {
	var req reportSendRequest
	if !decodeJSON(r, w, &req) {
		return
	}
	if err := h.report.SendDaily(r.Context(), req.ReportDate); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(r, w, http.StatusOK, map[string]string{"status": "report_sent"})
}

func (h *HTTPHandler) handleDebugState(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, h.state.Snapshot())
}

func (h *HTTPHandler) handleDebugReset(w http.ResponseWriter, r *http.Request) {
	h.state.Reset()
	slog.WarnContext(r.Context(), "in-memory meeting state was reset via debug endpoint")
	writeJSON(r, w, http.StatusOK, map[string]string{"status": "state_reset"})
}

// decodeJSON parses the request body into target, answering 400 on failure.
// An empty body decodes to the zero value so optional-field requests work.
func decodeJSON(r *http.Request, w http.ResponseWriter, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeJSON(r, w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(r *http.Request, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response body", logging.ErrKey, err)
	}
}

// writeError maps a domain error to its HTTP status.
func writeError(r *http.Request, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		status = http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		status = http.StatusNotFound
	case domain.ErrorTypeConflict:
		status = http.StatusConflict
	case domain.ErrorTypeUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", logging.ErrKey, err)
	} else {
		slog.WarnContext(r.Context(), "request rejected", logging.ErrKey, err)
	}

	writeJSON(r, w, status, map[string]string{"error": err.Error()})
}
