package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
)

type scanRequest struct {
	RootPath string `json:"root_path"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	rootPath := req.RootPath
	if strings.TrimSpace(rootPath) == "" {
		rootPath = s.state.RootPath()
	}
	// The path goes to the backend verbatim; no syntax validation here.
	if err := s.dispatcher.Scan(r.Context(), rootPath); err != nil {
		writeError(w, http.StatusBadGateway, "request_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": s.state.Message()})
}

func (s *Server) handleSendBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.SendBatch(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "request_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": s.state.Message()})
}

func (s *Server) handleSendSelected(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.SendSelected(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "request_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": s.state.Message(),
		"count":   s.selection.Count(),
	})
}

func (s *Server) handleAutoWatch(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.ToggleAutoWatch(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "request_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": s.state.AutoWatch(),
		"message": s.state.Message(),
	})
}

func (s *Server) handleUploadContacts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "expected multipart form with one file")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "file field is required")
		return
	}
	defer file.Close()

	if err := s.dispatcher.UploadContacts(r.Context(), header.Filename, file); err != nil {
		writeError(w, http.StatusBadGateway, "request_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": s.state.Message()})
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var update core.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if update.Empty() {
		writeError(w, http.StatusBadRequest, "invalid_input", "no edited fields")
		return
	}
	if err := s.dispatcher.SaveConfig(r.Context(), update); err != nil {
		writeError(w, http.StatusBadGateway, "request_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": s.state.Message()})
}

func (s *Server) handleCheckIP(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.CheckEgressIP(r.Context()); err != nil {
		// The sentinel is already published; the console reads it from state.
		writeError(w, http.StatusBadGateway, "request_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ip": s.state.EgressIP()})
}
