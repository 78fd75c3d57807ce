package agent

// EventType identifies an agent stream event.
type EventType string

const (
	EventPlanCreated    EventType = "plan_created"
	EventStepStarted    EventType = "step_started"
	EventThinking       EventType = "thinking"
	EventToolPending    EventType = "tool_pending"
	EventToolApproved   EventType = "tool_approved"
	EventToolRejected   EventType = "tool_rejected"
	EventToolResult     EventType = "tool_result"
	EventExpertSelected EventType = "expert_selected"
	EventAnswer         EventType = "answer"
	EventReflection     EventType = "reflection"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// Event is one entry in the agent's output stream. Events are emitted in
// state-transition order; consumers may render them incrementally.
type Event struct {
	Type       EventType      `json:"type"`
	StepIndex  int            `json:"stepIndex,omitempty"`
	Step       *Step          `json:"step,omitempty"`
	Content    string         `json:"content,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	ToolInput  map[string]any `json:"toolInput,omitempty"`
	ToolOutput any            `json:"toolOutput,omitempty"`
	ApprovalID string         `json:"approvalId,omitempty"`
	ExpertID   string         `json:"expertId,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// EmitFunc receives stream events as they happen. A non-nil return aborts
// the turn (e.g. the SSE client disconnected).
type EmitFunc func(Event) error
