package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

const reflectorSystemPrompt = `คุณคือ AI Reflector ที่ประเมินผลการทำงาน

วิเคราะห์ state และ tool results แล้วตอบเป็น JSON:

{
  "shouldContinue": true/false,
  "shouldReplan": true/false,
  "summary": "...",
  "insight": "..."
}

กฎ:
- shouldContinue = true ถ้ายังมี step ที่ต้องทำ
- shouldReplan = true ถ้าพบข้อมูลใหม่ที่ควรเปลี่ยนแผน
- summary ควรกระชับ 1-2 ประโยค
- insight คือสิ่งที่ควรจำไว้สำหรับครั้งหน้า

ตอบเป็น JSON เท่านั้น`

const factsSystemPrompt = `Extract important facts to remember from this conversation.
Return JSON array: [{ "facts": ["fact1", "fact2"], "type": "preference|context|entity|summary" }]
Only extract facts that would be useful for future conversations.
Return [] if nothing important to remember.`

const titleSystemPrompt = "Generate a short title (max 50 chars) for this conversation. Return only the title, no quotes."

const (
	reflectionsInPrompt = 3
	resultTruncateRunes = 200
	titleMaxRunes       = 50
	answerTruncateRunes = 200
	factInputTruncRunes = 1000
)

// Reflection is the reflector's assessment of a completed turn.
type Reflection struct {
	ShouldContinue bool   `json:"shouldContinue"`
	ShouldReplan   bool   `json:"shouldReplan"`
	Summary        string `json:"summary"`
	Insight        string `json:"insight,omitempty"`
}

// FactGroup is a batch of extracted facts sharing a type.
type FactGroup struct {
	Facts []string `json:"facts"`
	Type  string   `json:"type"`
}

// Reflector summarizes finished turns and extracts durable memory.
type Reflector struct {
	gen    Generator
	logger *slog.Logger
}

// NewReflector creates a Reflector.
func NewReflector(gen Generator, logger *slog.Logger) (*Reflector, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reflector{gen: gen, logger: logger}, nil
}

// Reflect assesses the turn. Parse failures degrade to a deterministic
// default (continue if steps remain, never replan).
func (r *Reflector) Reflect(ctx context.Context, st *State) Reflection {
	text, err := r.gen.Generate(ctx, reflectorSystemPrompt, r.buildPrompt(st))
	if err != nil {
		r.logger.Debug("reflection call failed", "error", err)
		return defaultReflection(st)
	}

	var out Reflection
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		r.logger.Debug("reflection not parseable", "error", err)
		return defaultReflection(st)
	}
	return out
}

func defaultReflection(st *State) Reflection {
	return Reflection{
		ShouldContinue: st.Cursor < len(st.Plan)-1,
		Summary:        "Continuing execution",
	}
}

func (r *Reflector) buildPrompt(st *State) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Query: %s\n\n", st.Query)

	fmt.Fprintf(&b, "Plan (%d steps):\n", len(st.Plan))
	for i, s := range st.Plan {
		var detail string
		switch s.Type {
		case StepTool:
			detail = s.ToolName
		case StepAnswer:
			detail = truncateRunes(s.Content, 50)
		case StepThink:
			detail = truncateRunes(s.Thought, 50)
		case StepHandoff:
			detail = s.ExpertID
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, s.Type, detail)
	}

	fmt.Fprintf(&b, "\nCurrent Step: %d/%d\n\n", st.Cursor+1, len(st.Plan))

	keys := make([]string, 0, len(st.ToolResults))
	for k := range st.ToolResults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	resultLines := make([]string, 0, len(keys))
	for _, k := range keys {
		raw, _ := json.Marshal(st.ToolResults[k])
		resultLines = append(resultLines, fmt.Sprintf("- %s: %s", k, truncateRunes(string(raw), resultTruncateRunes)))
	}
	fmt.Fprintf(&b, "Tool Results:\n%s\n\n", orNone(strings.Join(resultLines, "\n")))

	reflections := st.Reflections
	if len(reflections) > reflectionsInPrompt {
		reflections = reflections[len(reflections)-reflectionsInPrompt:]
	}
	fmt.Fprintf(&b, "Previous Reflections:\n%s", orNone(strings.Join(reflections, "\n")))

	return b.String()
}

// ExtractFacts pulls durable facts out of a finished exchange.
// Failures return no facts; fact extraction is never worth failing a turn.
func (r *Reflector) ExtractFacts(ctx context.Context, query, answer string, toolResults map[string]any) []FactGroup {
	resultsJSON, _ := json.Marshal(toolResults)
	prompt := fmt.Sprintf("Query: %s\nAnswer: %s\nTool Results: %s",
		query, answer, truncateRunes(string(resultsJSON), factInputTruncRunes))

	text, err := r.gen.Generate(ctx, factsSystemPrompt, prompt)
	if err != nil {
		r.logger.Debug("fact extraction failed", "error", err)
		return nil
	}

	var groups []FactGroup
	if err := json.Unmarshal([]byte(text), &groups); err != nil {
		r.logger.Debug("facts not parseable", "error", err)
		return nil
	}
	return groups
}

// Title generates a conversation title from the first exchange.
func (r *Reflector) Title(ctx context.Context, query, answer string) string {
	prompt := fmt.Sprintf("Q: %s\nA: %s", query, truncateRunes(answer, answerTruncateRunes))

	text, err := r.gen.Generate(ctx, titleSystemPrompt, prompt)
	if err != nil {
		r.logger.Debug("title generation failed", "error", err)
		return ""
	}
	return truncateRunes(strings.TrimSpace(text), titleMaxRunes)
}
