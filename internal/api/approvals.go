package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/tawan/askai/internal/approval"
)

// approvalHandler resolves a pending tool call and streams the resumed
// turn. The gate transition happens before any streaming: it is an atomic
// compare-and-set, so when two operators race, exactly one request resumes
// the turn and the other gets 409.
func (s *Server) approvalHandler(approve bool) http.HandlerFunc {
	target := approval.StatusRejected
	if approve {
		target = approval.StatusApproved
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid approval id")
			return
		}

		err = s.gate.Resolve(r.Context(), id, approval.StatusPending, target)
		switch {
		case errors.Is(err, approval.ErrNotFound):
			writeError(w, http.StatusNotFound, "pending call not found")
			return
		case errors.Is(err, approval.ErrNotPending):
			writeError(w, http.StatusConflict, "call already resolved")
			return
		case err != nil:
			s.logger.Error("resolving pending call", "error", err, "approval_id", id)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		stream, err := newSSEStream(w)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.TurnTimeout)
		defer cancel()

		if err := s.runner.Resume(ctx, id, approve, stream.send); err != nil {
			s.logger.Warn("resumed turn ended with error", "error", err, "approval_id", id)
		}
	}
}
