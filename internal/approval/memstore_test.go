package approval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newCall() PendingToolCall {
	return PendingToolCall{
		ID:       uuid.New(),
		ToolName: "getOrders",
		Input:    map[string]any{"dateFrom": "2026-01-01", "dateTo": "2026-01-31"},
	}
}

func TestMemStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	call := newCall()

	if err := s.Create(ctx, call); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Get(ctx, call.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.ToolName != "getOrders" {
		t.Errorf("ToolName = %s", got.ToolName)
	}
	if got.Input["dateFrom"] != "2026-01-01" {
		t.Errorf("Input not preserved: %v", got.Input)
	}
}

func TestMemStoreCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	call := newCall()

	if err := s.Create(ctx, call); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, call); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second Create() = %v, want ErrDuplicateID", err)
	}
}

func TestMemStoreGetMissing(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() = %v, want ErrNotFound", err)
	}
}

func TestMemStoreResolve(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		prep    []Status // transitions applied before the test transition
		wantErr error
	}{
		{
			name: "pending to approved",
			from: StatusPending, to: StatusApproved,
		},
		{
			name: "pending to rejected",
			from: StatusPending, to: StatusRejected,
		},
		{
			name: "approved to executed",
			from: StatusApproved, to: StatusExecuted,
			prep: []Status{StatusApproved},
		},
		{
			name: "double approve loses the race",
			from: StatusPending, to: StatusApproved,
			prep:    []Status{StatusApproved},
			wantErr: ErrNotPending,
		},
		{
			name: "reject after approve conflicts",
			from: StatusPending, to: StatusRejected,
			prep:    []Status{StatusApproved},
			wantErr: ErrNotPending,
		},
		{
			name: "pending to executed is not a valid edge",
			from: StatusPending, to: StatusExecuted,
			wantErr: ErrInvalidTransition,
		},
		{
			name: "rejected is terminal",
			from: StatusRejected, to: StatusApproved,
			prep:    []Status{StatusRejected},
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewMemStore()
			call := newCall()
			if err := s.Create(ctx, call); err != nil {
				t.Fatal(err)
			}

			prev := StatusPending
			for _, st := range tt.prep {
				if err := s.Resolve(ctx, call.ID, prev, st); err != nil {
					t.Fatalf("prep transition %s->%s: %v", prev, st, err)
				}
				prev = st
			}

			err := s.Resolve(ctx, call.ID, tt.from, tt.to)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			got, err := s.Get(ctx, call.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != tt.to {
				t.Errorf("Status = %s, want %s", got.Status, tt.to)
			}
		})
	}
}

func TestMemStoreResolveMissing(t *testing.T) {
	s := NewMemStore()
	err := s.Resolve(context.Background(), uuid.New(), StatusPending, StatusApproved)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() = %v, want ErrNotFound", err)
	}
}

func TestMemStoreConcurrentResolve(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	call := newCall()
	if err := s.Create(ctx, call); err != nil {
		t.Fatal(err)
	}

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Resolve(ctx, call.ID, StatusPending, StatusApproved)
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNotPending):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if conflicts != racers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, racers-1)
	}
}
