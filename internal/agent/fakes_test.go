package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/tawan/askai/internal/memory"
	"github.com/tawan/askai/internal/retrieval"
	"github.com/tawan/askai/internal/tools"
	"github.com/tawan/askai/internal/user"
)

// scriptedGen dispatches on the system prompt so one fake serves the
// planner, router, and reflector at once. Planner responses pop off a
// queue; planner prompts are recorded for assertions.
type scriptedGen struct {
	t *testing.T

	mu             sync.Mutex
	plans          []string
	plannerPrompts []string

	routeResponse   string
	reflectResponse string
	factsResponse   string
	titleResponse   string
}

func newScriptedGen(t *testing.T, plans ...string) *scriptedGen {
	t.Helper()
	return &scriptedGen{
		t:               t,
		plans:           plans,
		reflectResponse: `{"shouldContinue":false,"shouldReplan":false,"summary":"done"}`,
		factsResponse:   `[]`,
		titleResponse:   "Test conversation",
	}
}

func (g *scriptedGen) Generate(_ context.Context, system, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case strings.Contains(system, "AI Planner"):
		g.plannerPrompts = append(g.plannerPrompts, prompt)
		if len(g.plans) == 0 {
			return "", fmt.Errorf("no scripted plan left")
		}
		plan := g.plans[0]
		g.plans = g.plans[1:]
		return plan, nil
	case strings.Contains(system, "LLM router"):
		return g.routeResponse, nil
	case strings.Contains(system, "AI Reflector"):
		return g.reflectResponse, nil
	case strings.Contains(system, "Extract important facts"):
		return g.factsResponse, nil
	case strings.Contains(system, "short title"):
		return g.titleResponse, nil
	}
	return "", fmt.Errorf("unexpected system prompt: %.40s", system)
}

// errGen fails every generation.
type errGen struct{}

func (errGen) Generate(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("model unavailable")
}

// staticGen returns one canned response for every call.
type staticGen struct {
	response string
}

func (g staticGen) Generate(context.Context, string, string) (string, error) {
	return g.response, nil
}

type fakeMemory struct {
	mu       sync.Mutex
	convID   uuid.UUID
	history  []memory.Message
	added    []memory.Message
	facts    []memory.Fact
	title    string
	titleSet bool
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{convID: uuid.New()}
}

func (m *fakeMemory) CreateConversation(_ context.Context, userID uuid.UUID) (memory.Conversation, error) {
	return memory.Conversation{ID: m.convID, UserID: userID}, nil
}

func (m *fakeMemory) Messages(context.Context, uuid.UUID, int) ([]memory.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]memory.Message(nil), m.history...), nil
}

func (m *fakeMemory) AddMessage(_ context.Context, _ uuid.UUID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, memory.Message{Role: role, Content: content})
	return nil
}

func (m *fakeMemory) UpdateConversationTitle(_ context.Context, _ uuid.UUID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.title = title
	m.titleSet = true
	return nil
}

func (m *fakeMemory) CreateFact(_ context.Context, fact memory.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, fact)
	return nil
}

func (m *fakeMemory) UserFacts(context.Context, uuid.UUID, int) ([]memory.Fact, error) {
	return nil, nil
}

type fakeUsers struct {
	id   uuid.UUID
	auto bool
}

func newFakeUsers(auto bool) *fakeUsers {
	return &fakeUsers{id: uuid.New(), auto: auto}
}

func (u *fakeUsers) GetOrCreate(_ context.Context, userCode string) (user.User, error) {
	return user.User{ID: u.id, UserCode: userCode}, nil
}

func (u *fakeUsers) Preferences(context.Context, uuid.UUID) (user.Preferences, error) {
	return user.Preferences{
		UserID:       u.id,
		Language:     user.DefaultLanguage,
		ResponseTone: user.DefaultTone,
	}, nil
}

func (u *fakeUsers) AutoApprove(context.Context, uuid.UUID, string) (bool, error) {
	return u.auto, nil
}

type fakeRetriever struct {
	docs []retrieval.DocChunk
	dict []retrieval.DictEntry
}

func (r *fakeRetriever) Docs(context.Context, string, int) ([]retrieval.DocChunk, error) {
	return r.docs, nil
}

func (r *fakeRetriever) Dictionary(context.Context, string, int) ([]retrieval.DictEntry, error) {
	return r.dict, nil
}

type zeroReranker struct{}

func (zeroReranker) Scores(_ context.Context, _ string, texts []string) []float64 {
	return make([]float64, len(texts))
}

// stubTool returns a fixed output or error.
type stubTool struct {
	name string
	out  any
	err  error
}

func (t stubTool) Name() string                    { return t.name }
func (t stubTool) Description() string             { return t.name + "() - test tool" }
func (t stubTool) InputSchema() *jsonschema.Schema { return &jsonschema.Schema{Type: "object"} }
func (t stubTool) Execute(context.Context, map[string]any) (any, error) {
	return t.out, t.err
}

func mustRegistry(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(ts...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

// eventSink collects emitted events in order.
type eventSink struct {
	events []Event
}

func (s *eventSink) emit(e Event) error {
	s.events = append(s.events, e)
	return nil
}

func (s *eventSink) types() []EventType {
	out := make([]EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func (s *eventSink) last() Event {
	if len(s.events) == 0 {
		return Event{}
	}
	return s.events[len(s.events)-1]
}
