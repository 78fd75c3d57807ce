package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type askRequest struct {
	UserCode       string `json:"userCode"`
	ConversationID string `json:"conversationId,omitempty"`
	Query          string `json:"query"`
}

// handleAsk starts one agent turn and streams its events over SSE. The
// stream ends with a complete or error event, or with tool_pending when the
// turn suspends on the approval gate.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.UserCode) == "" {
		writeError(w, http.StatusBadRequest, "userCode is required")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len([]rune(query)) > maxQueryRunes {
		writeError(w, http.StatusBadRequest, "query too long")
		return
	}

	var convID *uuid.UUID
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid conversationId")
			return
		}
		convID = &id
	}

	stream, err := newSSEStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.TurnTimeout)
	defer cancel()

	if err := s.runner.Run(ctx, req.UserCode, convID, query, stream.send); err != nil {
		// The error event already went down the stream; the connection may
		// also just be gone.
		s.logger.Warn("agent turn ended with error", "error", err, "request_id", RequestID(r.Context()))
	}
}
