package main

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
)

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunTasks_FinalStopsOthers(t *testing.T) {
	stopped := make(chan struct{})
	err := runTasks(context.Background(), zap.NewNop(),
		task{name: "loop", run: func(ctx context.Context) error {
			defer close(stopped)
			return blockUntilDone(ctx)
		}},
		task{name: "ui", final: true, run: func(ctx context.Context) error { return nil }},
	)
	if err != nil {
		t.Fatalf("runTasks: %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Fatal("loop still running after final task returned")
	}
}

func TestRunTasks_FirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	err := runTasks(context.Background(), zap.NewNop(),
		task{name: "loop", run: blockUntilDone},
		task{name: "radio", run: func(ctx context.Context) error { return boom }},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if got := err.Error(); got != "radio: boom" {
		t.Errorf("err = %q", got)
	}
}

func TestRunTasks_CancelIsClean(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := runTasks(ctx, zap.NewNop(),
		task{name: "a", run: blockUntilDone},
		task{name: "b", run: blockUntilDone},
	)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestMissingIDs(t *testing.T) {
	tests := []struct {
		want, have, missing []int
	}{
		{[]int{1, 2, 3}, []int{1, 2, 3}, nil},
		{[]int{1, 2, 3}, []int{2}, []int{1, 3}},
		{[]int{1, 2}, nil, []int{1, 2}},
	}
	for _, tt := range tests {
		if got := missingIDs(tt.want, tt.have); !slices.Equal(got, tt.missing) {
			t.Errorf("missingIDs(%v, %v) = %v, want %v", tt.want, tt.have, got, tt.missing)
		}
	}
}

func TestFormatIDs(t *testing.T) {
	if got := formatIDs(nil); got != "-" {
		t.Errorf("formatIDs(nil) = %q", got)
	}
	if got := formatIDs([]int{3, 16}); got != "3,16" {
		t.Errorf("formatIDs = %q", got)
	}
}
