package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		attempts  int
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{name: "succeeds first try", failures: 0, attempts: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, attempts: 3, wantCalls: 3},
		{name: "gives up", failures: 5, attempts: 3, wantCalls: 3, wantErr: true},
		{name: "permanent error stops", failures: 5, attempts: 3, permanent: true, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithBackoff(func() error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errors.New("rejected"))
					}
					return errors.New("temporary")
				}
				return nil
			}, fastRetry(tt.attempts))

			if (err != nil) != tt.wantErr {
				t.Fatalf("RetryWithBackoff() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithBackoffContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetry(3)
	cfg.InitialDelay = time.Second
	err := RetryWithBackoffContext(ctx, func() error { return errors.New("down") }, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		value  float64
		places int32
		want   float64
	}{
		{1.234565, 5, 1.23457},
		{0.125, 2, 0.13},
		{151.2, 2, 151.2},
		{-0.005, 2, -0.01},
	}
	for _, tt := range tests {
		if got := RoundTo(tt.value, tt.places); got != tt.want {
			t.Errorf("RoundTo(%v, %d) = %v, want %v", tt.value, tt.places, got, tt.want)
		}
	}
}

func TestAverage(t *testing.T) {
	if got := Average(nil); got != 0 {
		t.Errorf("Average(nil) = %v, want 0", got)
	}
	if got := Average([]float64{4, -1, 4, -1}); got != 1.5 {
		t.Errorf("Average() = %v, want 1.5", got)
	}
}
