package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tawan/askai/internal/approval"
	"github.com/tawan/askai/internal/memory"
	"github.com/tawan/askai/internal/tools"
)

const (
	// DefaultMaxIterations caps loop passes per turn to bound replanning.
	DefaultMaxIterations = 10

	historyMessagesLoaded = 20
)

// Config tunes executor behavior.
type Config struct {
	// MaxIterations caps loop passes per turn. Zero means DefaultMaxIterations.
	MaxIterations int

	// MultiAgent routes each new turn to an expert persona before planning.
	MultiAgent bool
}

// Deps wires the executor's collaborators.
type Deps struct {
	Planner   *Planner
	Router    *Router
	Reflector *Reflector
	Registry  *tools.Registry
	Gate      approval.Gate
	Memory    Memory
	Users     Users
	States    StateStore
	Contexts  *ContextBuilder
	Logger    *slog.Logger
}

// Executor runs agent turns: it plans, walks the plan step by step,
// replans on bad tool results, suspends at the approval gate, and resumes
// suspended turns after a human decision.
type Executor struct {
	cfg       Config
	planner   *Planner
	router    *Router
	reflector *Reflector
	registry  *tools.Registry
	gate      approval.Gate
	memory    Memory
	users     Users
	states    StateStore
	contexts  *ContextBuilder
	logger    *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config, deps Deps) (*Executor, error) {
	switch {
	case deps.Planner == nil:
		return nil, fmt.Errorf("planner is required")
	case deps.Router == nil:
		return nil, fmt.Errorf("router is required")
	case deps.Reflector == nil:
		return nil, fmt.Errorf("reflector is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("tool registry is required")
	case deps.Gate == nil:
		return nil, fmt.Errorf("approval gate is required")
	case deps.Memory == nil:
		return nil, fmt.Errorf("memory is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("users is required")
	case deps.States == nil:
		return nil, fmt.Errorf("state store is required")
	case deps.Contexts == nil:
		return nil, fmt.Errorf("context builder is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:       cfg,
		planner:   deps.Planner,
		router:    deps.Router,
		reflector: deps.Reflector,
		registry:  deps.Registry,
		gate:      deps.Gate,
		memory:    deps.Memory,
		users:     deps.Users,
		states:    deps.States,
		contexts:  deps.Contexts,
		logger:    logger,
	}, nil
}

// Run executes one agent turn. conversationID may be nil to start a new
// conversation. Events stream through emit; the stream always ends with a
// complete or error event unless the turn suspends at the approval gate
// (tool_pending), in which case Resume picks it up later.
func (e *Executor) Run(ctx context.Context, userCode string, conversationID *uuid.UUID, query string, emit EmitFunc) error {
	usr, err := e.users.GetOrCreate(ctx, userCode)
	if err != nil {
		return e.fail(emit, "resolving user", err)
	}

	var convID uuid.UUID
	if conversationID != nil {
		convID = *conversationID
	} else {
		conv, err := e.memory.CreateConversation(ctx, usr.ID)
		if err != nil {
			return e.fail(emit, "creating conversation", err)
		}
		convID = conv.ID
	}

	messages, err := e.memory.Messages(ctx, convID, historyMessagesLoaded)
	if err != nil {
		return e.fail(emit, "loading messages", err)
	}

	st := NewState(usr.ID, convID, query, messages)

	if err := e.memory.AddMessage(ctx, convID, "user", query); err != nil {
		return e.fail(emit, "saving user message", err)
	}

	pctx, err := e.contexts.Build(ctx, st)
	if err != nil {
		return e.fail(emit, "building planner context", err)
	}

	if e.cfg.MultiAgent {
		route := e.router.Route(ctx, st.Query, pctx.DocsContext, pctx.DictContext)
		st.Expert = route.ExpertID
		if expert, ok := ExpertByID(route.ExpertID); ok {
			pctx.Expert = &expert
		}
		if err := emit(Event{Type: EventExpertSelected, ExpertID: route.ExpertID, Content: route.Rationale}); err != nil {
			return err
		}
	}

	plan, err := e.planner.Plan(ctx, pctx)
	if err != nil {
		return e.fail(emit, "generating plan", err)
	}
	st.ReplacePlan(plan)

	if err := emit(Event{Type: EventPlanCreated, Content: planJSON(st.Plan)}); err != nil {
		return err
	}

	return e.runLoop(ctx, st, emit)
}

// Resume continues a turn suspended at the approval gate. The caller has
// already resolved the gate pending→approved or pending→rejected; Resume
// applies the decision to the snapshotted state and re-enters the loop.
func (e *Executor) Resume(ctx context.Context, approvalID uuid.UUID, approved bool, emit EmitFunc) error {
	st, err := e.states.Load(ctx, approvalID)
	if err != nil {
		return e.fail(emit, "loading suspended turn", err)
	}

	pending, err := e.gate.Get(ctx, approvalID)
	if err != nil {
		return e.fail(emit, "loading pending call", err)
	}

	if approved {
		if err := e.executeApproved(ctx, st, pending, emit); err != nil {
			return err
		}
	} else {
		if err := emit(Event{
			Type:       EventToolRejected,
			ToolName:   pending.ToolName,
			ApprovalID: approvalID.String(),
		}); err != nil {
			return err
		}
		// The tool never runs. Fast-forward to the answer so the turn
		// still closes with a response.
		if idx := st.FirstAnswerIndex(); idx >= 0 {
			st.Cursor = idx
		}
	}

	if err := e.states.Delete(ctx, approvalID); err != nil {
		e.logger.Warn("deleting state snapshot", "error", err, "approval_id", approvalID)
	}

	return e.runLoop(ctx, st, emit)
}

// executeApproved runs the gated tool, records its output, and advances or
// replans exactly like the auto-approved path.
func (e *Executor) executeApproved(ctx context.Context, st *State, pending approval.PendingToolCall, emit EmitFunc) error {
	step := st.CurrentStep()
	if step == nil || step.Type != StepTool {
		// Snapshot and plan disagree; synthesize the step from the gate.
		step = &Step{Type: StepTool, ToolName: pending.ToolName, Input: pending.Input}
	}

	tool, ok := e.registry.Lookup(pending.ToolName)
	if !ok {
		return e.fail(emit, "resolving approved tool", fmt.Errorf("tool not found: %s", pending.ToolName))
	}

	out, execErr := tool.Execute(ctx, pending.Input)
	var errMsg string
	if execErr != nil {
		errMsg = execErr.Error()
		out = map[string]any{"error": errMsg}
	}
	st.RecordToolResult(*step, out, errMsg)

	if err := e.gate.Resolve(ctx, pending.ID, approval.StatusApproved, approval.StatusExecuted); err != nil {
		e.logger.Warn("marking call executed", "error", err, "approval_id", pending.ID)
	}

	if err := emit(Event{
		Type:       EventToolApproved,
		ToolName:   pending.ToolName,
		ToolOutput: out,
		ApprovalID: pending.ID.String(),
	}); err != nil {
		return err
	}

	return e.afterToolResult(ctx, st, emit)
}

// runLoop walks the plan until the turn completes, suspends, or hits a
// budget. AttemptCount is part of persisted state, so the iteration cap
// holds across suspension and resume.
func (e *Executor) runLoop(ctx context.Context, st *State, emit EmitFunc) error {
	for !st.IsComplete {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err := emit(Event{Type: EventError, Error: "turn budget exceeded: " + ctxErr.Error()}); err != nil {
				return err
			}
			return ctxErr
		}

		if st.AttemptCount >= e.cfg.MaxIterations {
			e.logger.Warn("iteration limit reached",
				"conversation_id", st.ConversationID, "iterations", st.AttemptCount)
			return emit(Event{Type: EventError, Error: "iteration limit reached"})
		}
		st.AttemptCount++

		step := st.CurrentStep()
		if step == nil {
			st.IsComplete = true
			break
		}

		if err := emit(Event{Type: EventStepStarted, StepIndex: st.Cursor, Step: step}); err != nil {
			return err
		}

		switch step.Type {
		case StepThink:
			if err := emit(Event{Type: EventThinking, Content: step.Thought}); err != nil {
				return err
			}
			st.Cursor++

		case StepHandoff:
			if err := e.handleHandoff(ctx, st, *step, emit); err != nil {
				return err
			}

		case StepTool:
			suspended, err := e.handleTool(ctx, st, *step, emit)
			if err != nil {
				return err
			}
			if suspended {
				return nil
			}

		case StepAnswer:
			if err := e.handleAnswer(ctx, st, *step, emit); err != nil {
				return err
			}

		default:
			e.logger.Warn("skipping step with unknown type", "type", step.Type)
			st.Cursor++
		}
	}

	return emit(Event{Type: EventComplete, Content: st.ConversationID.String()})
}

// handleTool executes a tool step or suspends the turn on the approval
// gate. Returns suspended=true when the turn parked at the gate.
func (e *Executor) handleTool(ctx context.Context, st *State, step Step, emit EmitFunc) (bool, error) {
	if _, ok := e.registry.Lookup(step.ToolName); !ok {
		if err := emit(Event{Type: EventError, Error: "Tool not found: " + step.ToolName}); err != nil {
			return false, err
		}
		st.Cursor++
		return false, nil
	}

	auto, err := e.users.AutoApprove(ctx, st.UserID, step.ToolName)
	if err != nil {
		return false, e.fail(emit, "checking auto-approve policy", err)
	}

	if !auto {
		return true, e.suspend(ctx, st, step, emit)
	}

	tool, _ := e.registry.Lookup(step.ToolName)
	out, execErr := tool.Execute(ctx, step.Input)
	var errMsg string
	if execErr != nil {
		errMsg = execErr.Error()
		out = map[string]any{"error": errMsg}
		e.logger.Warn("tool execution failed", "tool", step.ToolName, "error", execErr)
	}
	st.RecordToolResult(step, out, errMsg)

	if err := emit(Event{
		Type:       EventToolResult,
		ToolName:   step.ToolName,
		ToolInput:  step.Input,
		ToolOutput: out,
	}); err != nil {
		return false, err
	}

	return false, e.afterToolResult(ctx, st, emit)
}

// suspend parks the turn on the approval gate: create the pending call,
// snapshot state with the cursor still on the tool step, emit exactly one
// tool_pending, and return without blocking.
func (e *Executor) suspend(ctx context.Context, st *State, step Step, emit EmitFunc) error {
	id := uuid.New()
	call := approval.PendingToolCall{
		ID:       id,
		ToolName: step.ToolName,
		Input:    step.Input,
	}
	if err := e.gate.Create(ctx, call); err != nil {
		return e.fail(emit, "creating pending call", err)
	}
	if err := e.states.Save(ctx, id, st); err != nil {
		return e.fail(emit, "saving state snapshot", err)
	}

	return emit(Event{
		Type:       EventToolPending,
		ToolName:   step.ToolName,
		ToolInput:  step.Input,
		ApprovalID: id.String(),
	})
}

// afterToolResult decides between replanning and advancing the cursor
// based on the latest tool result only.
func (e *Executor) afterToolResult(ctx context.Context, st *State, emit EmitFunc) error {
	dec := shouldReplan(st)
	if !dec.Replan {
		st.Cursor++
		return nil
	}

	pctx, err := e.contexts.Build(ctx, st)
	if err != nil {
		return e.fail(emit, "building replan context", err)
	}
	pctx.LastError = dec.LastError
	pctx.History = st.ExecutionHistory

	plan, err := e.planner.Plan(ctx, pctx)
	if err != nil {
		return e.fail(emit, "replanning", err)
	}
	st.ReplacePlan(plan)

	e.logger.Info("replanned", "reason", dec.Reason, "conversation_id", st.ConversationID)
	return emit(Event{Type: EventPlanCreated, Content: "Replanned: " + dec.Reason})
}

// handleHandoff switches the persona and replans from scratch. Tool
// results and execution history carry over; the remaining plan does not.
func (e *Executor) handleHandoff(ctx context.Context, st *State, step Step, emit EmitFunc) error {
	target := step.ExpertID
	if !IsRoutable(target) {
		e.logger.Warn("handoff to unknown expert, using default", "expert_id", target)
		target = DefaultExpertID
	}
	st.Expert = target

	if err := emit(Event{Type: EventExpertSelected, ExpertID: target, Content: step.Reason}); err != nil {
		return err
	}

	pctx, err := e.contexts.Build(ctx, st)
	if err != nil {
		return e.fail(emit, "building handoff context", err)
	}
	pctx.History = st.ExecutionHistory

	plan, err := e.planner.Plan(ctx, pctx)
	if err != nil {
		return e.fail(emit, "planning after handoff", err)
	}
	st.ReplacePlan(plan)

	return emit(Event{Type: EventPlanCreated, Content: planJSON(st.Plan)})
}

// handleAnswer emits the final answer, reflects, extracts facts, titles
// first-time conversations, and completes the turn.
func (e *Executor) handleAnswer(ctx context.Context, st *State, step Step, emit EmitFunc) error {
	if err := e.memory.AddMessage(ctx, st.ConversationID, "assistant", step.Content); err != nil {
		return e.fail(emit, "saving assistant message", err)
	}

	if err := emit(Event{Type: EventAnswer, Content: step.Content}); err != nil {
		return err
	}

	refl := e.reflector.Reflect(ctx, st)
	st.Reflections = append(st.Reflections, refl.Summary)

	if err := emit(Event{Type: EventReflection, Content: refl.Summary}); err != nil {
		return err
	}

	for _, group := range e.reflector.ExtractFacts(ctx, st.Query, step.Content, st.ToolResults) {
		for _, content := range group.Facts {
			fact := memory.Fact{
				ConversationID: st.ConversationID,
				UserID:         st.UserID,
				FactType:       group.Type,
				Content:        content,
			}
			if err := e.memory.CreateFact(ctx, fact); err != nil {
				e.logger.Warn("saving extracted fact", "error", err)
			}
		}
	}

	// First exchange in the conversation: give it a title.
	if len(st.Messages) <= 1 {
		if title := e.reflector.Title(ctx, st.Query, step.Content); title != "" {
			if err := e.memory.UpdateConversationTitle(ctx, st.ConversationID, title); err != nil {
				e.logger.Warn("updating conversation title", "error", err)
			}
		}
	}

	st.IsComplete = true
	return nil
}

// fail emits an error event and returns the wrapped cause.
func (e *Executor) fail(emit EmitFunc, msg string, cause error) error {
	e.logger.Error(msg, "error", cause)
	if err := emit(Event{Type: EventError, Error: msg + ": " + cause.Error()}); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", msg, cause)
}

// toolResultKey disambiguates repeated calls to the same tool within a plan.
func toolResultKey(toolName string, stepIndex int) string {
	return fmt.Sprintf("%s_%d", toolName, stepIndex)
}

func planJSON(plan []Step) string {
	raw, err := json.Marshal(plan)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
