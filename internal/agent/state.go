package agent

import (
	"github.com/google/uuid"

	"github.com/tawan/askai/internal/memory"
)

// ExecutionRecord is one executed step with its result, kept so the planner
// can learn from earlier attempts when replanning.
type ExecutionRecord struct {
	Step   Step   `json:"step"`
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// State is the full turn state. It is JSON-serializable so a suspended turn
// can be snapshotted at the approval gate and resumed later, possibly by a
// different process.
type State struct {
	ConversationID uuid.UUID        `json:"conversationId"`
	UserID         uuid.UUID        `json:"userId"`
	Query          string           `json:"query"`
	Messages       []memory.Message `json:"messages"`

	Plan   []Step `json:"plan"`
	Cursor int    `json:"cursor"`

	// ToolResults maps "toolName_stepIndex" to the raw tool output.
	ToolResults      map[string]any    `json:"toolResults"`
	ExecutionHistory []ExecutionRecord `json:"executionHistory"`
	Reflections      []string          `json:"reflections"`

	IsComplete   bool   `json:"isComplete"`
	Expert       string `json:"expert,omitempty"`
	AttemptCount int    `json:"attemptCount"`
}

// NewState initializes turn state for a query.
func NewState(userID, conversationID uuid.UUID, query string, messages []memory.Message) *State {
	return &State{
		ConversationID: conversationID,
		UserID:         userID,
		Query:          query,
		Messages:       messages,
		ToolResults:    make(map[string]any),
	}
}

// CurrentStep returns the plan step at the cursor, or nil when the cursor
// has run past the end of the plan.
func (s *State) CurrentStep() *Step {
	if s.Cursor < 0 || s.Cursor >= len(s.Plan) {
		return nil
	}
	return &s.Plan[s.Cursor]
}

// ReplacePlan installs a new plan and rewinds the cursor. Tool results and
// execution history survive so replanning can build on earlier work.
func (s *State) ReplacePlan(plan []Step) {
	s.Plan = plan
	s.Cursor = 0
}

// RecordToolResult stores a tool output under its step key and appends the
// execution history entry.
func (s *State) RecordToolResult(step Step, result any, errMsg string) {
	if s.ToolResults == nil {
		s.ToolResults = make(map[string]any)
	}
	s.ToolResults[toolResultKey(step.ToolName, s.Cursor)] = result
	s.ExecutionHistory = append(s.ExecutionHistory, ExecutionRecord{
		Step:   step,
		Result: result,
		Error:  errMsg,
	})
}

// FirstAnswerIndex returns the index of the first answer step in the plan,
// or -1 when the plan has none.
func (s *State) FirstAnswerIndex() int {
	for i, step := range s.Plan {
		if step.Type == StepAnswer {
			return i
		}
	}
	return -1
}
