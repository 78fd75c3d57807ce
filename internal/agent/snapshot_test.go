package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestMemStateStoreRoundTrip(t *testing.T) {
	store := NewMemStateStore()
	id := uuid.New()

	st := NewState(uuid.New(), uuid.New(), "q", nil)
	st.Plan = []Step{
		{Type: StepTool, ToolName: "getOrders", Input: map[string]any{"limit": float64(5)}},
		{Type: StepAnswer, Content: "done"},
	}
	st.AttemptCount = 2
	st.RecordToolResult(st.Plan[0], map[string]any{"rows": 1.0}, "")

	if err := store.Save(context.Background(), id, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the original must not leak into the stored snapshot.
	st.Cursor = 99
	st.Plan[1].Content = "mutated"

	got, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Cursor != 0 {
		t.Errorf("Cursor = %d, want 0", got.Cursor)
	}
	if got.Plan[1].Content != "done" {
		t.Errorf("Plan[1].Content = %q, want done", got.Plan[1].Content)
	}
	if got.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", got.AttemptCount)
	}
	if _, ok := got.ToolResults["getOrders_0"]; !ok {
		t.Errorf("ToolResults missing getOrders_0: %v", got.ToolResults)
	}
}

func TestMemStateStoreLoadMissing(t *testing.T) {
	store := NewMemStateStore()
	if _, err := store.Load(context.Background(), uuid.New()); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestMemStateStoreDelete(t *testing.T) {
	store := NewMemStateStore()
	id := uuid.New()

	if err := store.Save(context.Background(), id, NewState(uuid.New(), uuid.New(), "q", nil)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(context.Background(), id); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("err after delete = %v, want ErrSnapshotNotFound", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}
