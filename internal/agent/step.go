// Package agent implements the planner/executor orchestration loop: a
// turn is planned as a sequence of typed steps, executed with replanning,
// expert handoff and a human approval gate, and closed with reflection.
package agent

// StepType discriminates the plan step union.
type StepType string

const (
	// StepThink records intermediate reasoning; no side effects.
	StepThink StepType = "think"

	// StepTool invokes a registered tool, possibly gated on approval.
	StepTool StepType = "tool"

	// StepHandoff transfers the turn to another expert and replans.
	StepHandoff StepType = "handoff"

	// StepAnswer produces the final response and completes the turn.
	StepAnswer StepType = "answer"
)

// Step is one entry of an execution plan. It is a closed sum: Type selects
// which of the per-variant fields are meaningful, everything else stays
// empty. The executor dispatches exhaustively on Type.
type Step struct {
	Type StepType `json:"type"`

	// think
	Thought string `json:"thought,omitempty"`

	// tool
	ToolName string         `json:"toolName,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Reason   string         `json:"reason,omitempty"`

	// handoff
	ExpertID string `json:"expertId,omitempty"`

	// answer
	Content string `json:"content,omitempty"`
}
