package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		failures  int
		transient bool
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{"FirstTry", 0, true, 3, 1, false},
		{"RecoversAfterTransient", 2, true, 3, 3, false},
		{"GivesUp", 5, true, 3, 3, true},
		{"PermanentStopsAtOnce", 5, false, 3, 1, true},
		{"ZeroAttemptsRunsOnce", 5, true, 0, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), tt.attempts, time.Millisecond, func() error {
				calls++
				if calls <= tt.failures {
					if tt.transient {
						return Transient(boom)
					}
					return boom
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, boom) {
				t.Errorf("err = %v, want wrapping boom", err)
			}
		})
	}
}

func TestDoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return Transient(errors.New("not yet"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestTransientNil(t *testing.T) {
	if Transient(nil) != nil {
		t.Error("Transient(nil) != nil")
	}
	if IsTransient(errors.New("x")) {
		t.Error("plain error reported transient")
	}
}
