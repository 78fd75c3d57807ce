package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tawan/askai/internal/memory"
)

// handleConversations lists a user's conversations, newest activity first.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
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

	convs, err := s.convs.Conversations(r.Context(), usr.ID, conversationsLimit)
	if err != nil {
		s.logger.Error("listing conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if convs == nil {
		convs = []memory.Conversation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// handleMessages returns a conversation's messages in chronological order.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	msgs, err := s.convs.Messages(r.Context(), id, messagesLimit)
	if err != nil {
		s.logger.Error("listing messages", "error", err, "conversation_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if msgs == nil {
		msgs = []memory.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}
