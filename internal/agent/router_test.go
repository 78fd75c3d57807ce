package agent

import (
	"context"
	"log/slog"
	"testing"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name     string
		gen      Generator
		wantID   string
		fallback bool
	}{
		{
			name:   "valid selection",
			gen:    staticGen{response: `{"expertId":"sql","rationale":"database question"}`},
			wantID: "sql",
		},
		{
			name:     "model failure falls back to docs",
			gen:      errGen{},
			wantID:   DefaultExpertID,
			fallback: true,
		},
		{
			name:     "unparseable response falls back to docs",
			gen:      staticGen{response: "sql, because it is about data"},
			wantID:   DefaultExpertID,
			fallback: true,
		},
		{
			name:     "unknown expert falls back to docs",
			gen:      staticGen{response: `{"expertId":"astrology","rationale":"stars"}`},
			wantID:   DefaultExpertID,
			fallback: true,
		},
		{
			name:     "router persona is not routable",
			gen:      staticGen{response: `{"expertId":"router","rationale":"meta"}`},
			wantID:   DefaultExpertID,
			fallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRouter(tt.gen, slog.New(slog.DiscardHandler))
			if err != nil {
				t.Fatalf("NewRouter: %v", err)
			}

			got := r.Route(context.Background(), "q", "", "")
			if got.ExpertID != tt.wantID {
				t.Errorf("ExpertID = %s, want %s", got.ExpertID, tt.wantID)
			}
			if tt.fallback && got.Rationale != "Fallback to docs expert." {
				t.Errorf("Rationale = %q, want fallback rationale", got.Rationale)
			}
		})
	}
}

func TestHasContext(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"(ไม่มี)", false},
		{"DOC1: something", true},
	}
	for _, tt := range tests {
		if got := hasContext(tt.in); got != tt.want {
			t.Errorf("hasContext(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
