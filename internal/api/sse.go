package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tawan/askai/internal/agent"
)

// sseStream writes agent events as server-sent events, flushing after every
// event so clients see progress while the turn runs.
type sseStream struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()

	return &sseStream{w: w, f: f}, nil
}

func (s *sseStream) send(event agent.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, raw); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	s.f.Flush()
	return nil
}
