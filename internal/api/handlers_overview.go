package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
)

type taskResponse struct {
	ID          int64   `json:"id"`
	FilePath    string  `json:"file_path"`
	StudentName string  `json:"student_name"`
	ParentName  string  `json:"parent_name"`
	UserID      *string `json:"user_id"`
	Status      string  `json:"status"`
	Error       *string `json:"error,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	Selected    bool    `json:"selected"`
}

// configResponse never carries the secret itself, only whether one is set.
type configResponse struct {
	CorpID          string  `json:"corp_id"`
	AgentID         string  `json:"agent_id"`
	SecretSet       bool    `json:"secret_set"`
	RootPath        string  `json:"root_path"`
	RateLimitPerSec float64 `json:"rate_limit_per_sec"`
	MaxConcurrency  int     `json:"max_concurrency"`
}

type overviewResponse struct {
	Tasks         []taskResponse    `json:"tasks"`
	Counts        core.StatusCounts `json:"counts"`
	Config        configResponse    `json:"config"`
	RootPath      string            `json:"root_path"`
	AutoWatch     bool              `json:"auto_watch"`
	Selected      []int64           `json:"selected"`
	SelectedCount int               `json:"selected_count"`
	Message       string            `json:"message"`
	EgressIP      string            `json:"egress_ip"`
	FetchedAt     *string           `json:"fetched_at,omitempty"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.state.Snapshot()

	tasks := make([]taskResponse, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tasks = append(tasks, taskResponse{
			ID:          t.ID,
			FilePath:    t.FilePath,
			StudentName: t.StudentName,
			ParentName:  t.ParentName,
			UserID:      t.UserID,
			Status:      string(t.Status),
			Error:       t.Error,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
			Selected:    s.selection.Has(t.ID),
		})
	}

	res := overviewResponse{
		Tasks:  tasks,
		Counts: snap.Counts,
		Config: configResponse{
			CorpID:          snap.Config.CorpID,
			AgentID:         snap.Config.AgentID,
			SecretSet:       snap.Config.Secret != "",
			RootPath:        snap.Config.RootPath,
			RateLimitPerSec: snap.Config.RateLimitPerSec,
			MaxConcurrency:  snap.Config.MaxConcurrency,
		},
		RootPath:      s.state.RootPath(),
		AutoWatch:     s.state.AutoWatch(),
		Selected:      s.selection.IDs(),
		SelectedCount: s.selection.Count(),
		Message:       s.state.Message(),
		EgressIP:      s.state.EgressIP(),
	}
	if ok {
		fetched := snap.FetchedAt.UTC().Format(time.RFC3339)
		res.FetchedAt = &fetched
	}
	writeJSON(w, http.StatusOK, res)
}

type toggleSelectionRequest struct {
	TaskID int64 `json:"task_id"`
}

func (s *Server) handleToggleSelection(w http.ResponseWriter, r *http.Request) {
	var req toggleSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.TaskID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "task_id is required")
		return
	}
	s.selection.Toggle(req.TaskID)
	writeJSON(w, http.StatusOK, map[string]any{
		"selected": s.selection.Has(req.TaskID),
		"count":    s.selection.Count(),
	})
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error":   code,
		"message": message,
	}
	writeJSON(w, status, payload)
}
