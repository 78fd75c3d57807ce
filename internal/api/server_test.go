package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tawan/askai/internal/agent"
	"github.com/tawan/askai/internal/approval"
	"github.com/tawan/askai/internal/memory"
	"github.com/tawan/askai/internal/user"
)

type fakeRunner struct {
	events []agent.Event

	gotUserCode string
	gotQuery    string
	gotConvID   *uuid.UUID

	resumedID       uuid.UUID
	resumedApproved bool
	resumeCalled    bool
}

func (f *fakeRunner) Run(_ context.Context, userCode string, conversationID *uuid.UUID, query string, emit agent.EmitFunc) error {
	f.gotUserCode = userCode
	f.gotQuery = query
	f.gotConvID = conversationID
	for _, e := range f.events {
		if err := emit(e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRunner) Resume(_ context.Context, approvalID uuid.UUID, approved bool, emit agent.EmitFunc) error {
	f.resumeCalled = true
	f.resumedID = approvalID
	f.resumedApproved = approved
	for _, e := range f.events {
		if err := emit(e); err != nil {
			return err
		}
	}
	return nil
}

type fakeConvStore struct {
	convs []memory.Conversation
	msgs  []memory.Message
}

func (f *fakeConvStore) Conversations(context.Context, uuid.UUID, int) ([]memory.Conversation, error) {
	return f.convs, nil
}

func (f *fakeConvStore) Messages(context.Context, uuid.UUID, int) ([]memory.Message, error) {
	return f.msgs, nil
}

type fakeUserStore struct {
	id    uuid.UUID
	prefs user.Preferences
}

func (f *fakeUserStore) GetOrCreate(_ context.Context, code string) (user.User, error) {
	return user.User{ID: f.id, UserCode: code}, nil
}

func (f *fakeUserStore) Preferences(context.Context, uuid.UUID) (user.Preferences, error) {
	return f.prefs, nil
}

func (f *fakeUserStore) UpdatePreferences(_ context.Context, _ uuid.UUID, input user.UpdatePreferencesInput) (user.Preferences, error) {
	if input.Language != nil {
		f.prefs.Language = *input.Language
	}
	if input.AutoApproveTools != nil {
		f.prefs.AutoApproveTools = input.AutoApproveTools
	}
	return f.prefs, nil
}

func newTestServer(t *testing.T, cfg Config, runner Runner, gate approval.Gate) (*Server, *fakeUserStore) {
	t.Helper()
	if gate == nil {
		gate = approval.NewMemStore()
	}
	users := &fakeUserStore{id: uuid.New(), prefs: user.Preferences{Language: "th", ResponseTone: "friendly"}}
	srv, err := NewServer(cfg, runner, gate, &fakeConvStore{}, users, nil, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, users
}

func TestAskStreamsEvents(t *testing.T) {
	runner := &fakeRunner{events: []agent.Event{
		{Type: agent.EventPlanCreated, Content: "[]"},
		{Type: agent.EventAnswer, Content: "สวัสดีครับ"},
		{Type: agent.EventComplete, Content: uuid.NewString()},
	}}
	srv, _ := newTestServer(t, Config{}, runner, nil)

	body := `{"userCode":"u_1","query":"สวัสดี"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %s", ct)
	}

	out := rec.Body.String()
	for _, want := range []string{"event: plan_created", "event: answer", "event: complete", "สวัสดีครับ"} {
		if !strings.Contains(out, want) {
			t.Errorf("stream missing %q:\n%s", want, out)
		}
	}

	if runner.gotUserCode != "u_1" || runner.gotQuery != "สวัสดี" {
		t.Errorf("runner got userCode=%q query=%q", runner.gotUserCode, runner.gotQuery)
	}
	if runner.gotConvID != nil {
		t.Errorf("conversation id = %v, want nil for a new conversation", runner.gotConvID)
	}
}

func TestAskValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing user code", `{"query":"q"}`},
		{"missing query", `{"userCode":"u"}`},
		{"blank query", `{"userCode":"u","query":"   "}`},
		{"bad conversation id", `{"userCode":"u","query":"q","conversationId":"not-a-uuid"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, Config{}, &fakeRunner{}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestApproveResumesTurn(t *testing.T) {
	gate := approval.NewMemStore()
	id := uuid.New()
	if err := gate.Create(context.Background(), approval.PendingToolCall{ID: id, ToolName: "getOrders"}); err != nil {
		t.Fatalf("gate.Create: %v", err)
	}

	runner := &fakeRunner{events: []agent.Event{
		{Type: agent.EventToolApproved, ToolName: "getOrders", ApprovalID: id.String()},
		{Type: agent.EventComplete},
	}}
	srv, _ := newTestServer(t, Config{}, runner, gate)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/"+id.String()+"/approve", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !runner.resumeCalled || runner.resumedID != id || !runner.resumedApproved {
		t.Errorf("resume = called:%v id:%s approved:%v", runner.resumeCalled, runner.resumedID, runner.resumedApproved)
	}

	call, err := gate.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("gate.Get: %v", err)
	}
	if call.Status != approval.StatusApproved {
		t.Errorf("gate status = %s, want approved", call.Status)
	}
}

func TestRejectResumesTurn(t *testing.T) {
	gate := approval.NewMemStore()
	id := uuid.New()
	if err := gate.Create(context.Background(), approval.PendingToolCall{ID: id, ToolName: "getOrders"}); err != nil {
		t.Fatalf("gate.Create: %v", err)
	}

	runner := &fakeRunner{events: []agent.Event{{Type: agent.EventToolRejected}}}
	srv, _ := newTestServer(t, Config{}, runner, gate)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/"+id.String()+"/reject", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !runner.resumeCalled || runner.resumedApproved {
		t.Errorf("resume = called:%v approved:%v, want called with approved=false", runner.resumeCalled, runner.resumedApproved)
	}
}

func TestApprovalErrors(t *testing.T) {
	gate := approval.NewMemStore()
	resolved := uuid.New()
	if err := gate.Create(context.Background(), approval.PendingToolCall{ID: resolved, ToolName: "t"}); err != nil {
		t.Fatalf("gate.Create: %v", err)
	}
	if err := gate.Resolve(context.Background(), resolved, approval.StatusPending, approval.StatusRejected); err != nil {
		t.Fatalf("gate.Resolve: %v", err)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"malformed id", "/api/v1/approvals/nope/approve", http.StatusBadRequest},
		{"unknown id", "/api/v1/approvals/" + uuid.NewString() + "/approve", http.StatusNotFound},
		{"already resolved", "/api/v1/approvals/" + resolved.String() + "/approve", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			srv, _ := newTestServer(t, Config{}, runner, gate)

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if runner.resumeCalled {
				t.Error("runner must not resume on a failed gate transition")
			}
		})
	}
}

func TestConversationsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, &fakeRunner{}, nil)

	t.Run("requires user code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("empty list is a json array", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations?userCode=u_1", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var out struct {
			Conversations []memory.Conversation `json:"conversations"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if out.Conversations == nil {
			t.Error("conversations missing from response")
		}
	})
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv, users := newTestServer(t, Config{}, &fakeRunner{}, nil)

	body := `{"userCode":"u_1","language":"en","autoApproveTools":["getOrders"]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if users.prefs.Language != "en" {
		t.Errorf("language = %s, want en", users.prefs.Language)
	}
	if len(users.prefs.AutoApproveTools) != 1 || users.prefs.AutoApproveTools[0] != "getOrders" {
		t.Errorf("autoApproveTools = %v", users.prefs.AutoApproveTools)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, &fakeRunner{}, nil)

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRateLimiting(t *testing.T) {
	srv, _ := newTestServer(t, Config{RateRPS: 0.001, RateBurst: 1, TurnTimeout: time.Second}, &fakeRunner{}, nil)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.1.2.3:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Config{CORSOrigins: []string{"https://app.example.com"}}, &fakeRunner{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ask", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q", got)
	}

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/ask", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want empty", got)
	}
}
