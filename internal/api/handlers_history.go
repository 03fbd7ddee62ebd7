package api

import (
	"net/http"
	"time"
)

type statusSampleResponse struct {
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Queued     int    `json:"queued"`
	Sending    int    `json:"sending"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	RecordedAt string `json:"recorded_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	samples, err := s.store.RecentStatusSamples(r.Context(), limit)
	if err != nil {
		s.logger.Error("list status history", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}
	res := make([]statusSampleResponse, 0, len(samples))
	for _, sample := range samples {
		res = append(res, statusSampleResponse{
			Total:      sample.Counts.Total,
			Pending:    sample.Counts.Pending,
			Queued:     sample.Counts.Queued,
			Sending:    sample.Counts.Sending,
			Sent:       sample.Counts.Sent,
			Failed:     sample.Counts.Failed,
			Skipped:    sample.Counts.Skipped,
			RecordedAt: sample.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

type actionRecordResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	recs, err := s.store.RecentActions(r.Context(), limit)
	if err != nil {
		s.logger.Error("list action log", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load action log")
		return
	}
	res := make([]actionRecordResponse, 0, len(recs))
	for _, rec := range recs {
		res = append(res, actionRecordResponse{
			ID:        rec.ID,
			Action:    rec.Action,
			Detail:    rec.Detail,
			OK:        rec.OK,
			Message:   rec.Message,
			CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, res)
}
