package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tawan/askai/internal/user"
)

type updatePreferencesRequest struct {
	UserCode           string   `json:"userCode"`
	Language           *string  `json:"language,omitempty"`
	ResponseTone       *string  `json:"responseTone,omitempty"`
	AutoApproveTools   []string `json:"autoApproveTools,omitempty"`
	CustomInstructions *string  `json:"customInstructions,omitempty"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userCode := strings.TrimSpace(r.URL.Query().Get("userCode"))
	if userCode == "" {
		writeError(w, http.StatusBadRequest, "userCode is required")
		return
	}

	usr, err := s.users.GetOrCreate(r.Context(), userCode)
	if err != nil {
		s.logger.Error("resolving user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	prefs, err := s.users.Preferences(r.Context(), usr.ID)
	if err != nil {
		s.logger.Error("fetching preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req updatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserCode) == "" {
		writeError(w, http.StatusBadRequest, "userCode is required")
		return
	}

	usr, err := s.users.GetOrCreate(r.Context(), req.UserCode)
	if err != nil {
		s.logger.Error("resolving user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	prefs, err := s.users.UpdatePreferences(r.Context(), usr.ID, user.UpdatePreferencesInput{
		Language:           req.Language,
		ResponseTone:       req.ResponseTone,
		AutoApproveTools:   req.AutoApproveTools,
		CustomInstructions: req.CustomInstructions,
	})
	if err != nil {
		s.logger.Error("updating preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}
