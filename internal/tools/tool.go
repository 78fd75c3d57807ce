// Package tools defines the typed tool contract consumed by the agent
// executor and the registry that resolves tool names at startup.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is a capability the planner may schedule. Implementations must be
// safe for concurrent use; Execute receives the raw input object from the
// plan step.
type Tool interface {
	// Name is the identifier the planner uses in tool steps.
	Name() string

	// Description is a one-line summary injected into the planner prompt,
	// including the expected arguments.
	Description() string

	// InputSchema describes the input object.
	InputSchema() *jsonschema.Schema

	// Execute runs the tool. The returned value must be JSON-serializable
	// because it is persisted in execution history and state snapshots.
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// decodeInput converts the loosely-typed plan input into a tool's input
// struct via a JSON round trip, honoring the struct's json tags.
func decodeInput[T any](input map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(input)
	if err != nil {
		return out, fmt.Errorf("encoding tool input: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding tool input: %w", err)
	}
	return out, nil
}

// schemaFor builds the JSON schema for a tool input struct. Panics on
// malformed struct definitions, which is a programming error caught at
// startup when tools are constructed.
func schemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: building input schema: %v", err))
	}
	return schema
}
