package resilience

import (
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// testBreaker returns a breaker on a manual clock. Advance the clock through
// the returned pointer.
func testBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(cfg)
	now := time.Now()
	cb.now = func() time.Time { return now }
	return cb, &now
}

func failN(cb *CircuitBreaker, n int) {
	for range n {
		_ = cb.Execute(func() error { return errTest })
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test"})
	if cb.trip != 5 {
		t.Errorf("trip = %d, want 5", cb.trip)
	}
	if cb.cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cb.cooldown)
	}
	if cb.probeMax != 3 {
		t.Errorf("probeMax = %d, want 3", cb.probeMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb, _ := testBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 3})

	failN(cb, 3)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", cb.State())
	}

	err := cb.Execute(func() error {
		t.Fatal("open breaker must not invoke fn")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := testBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 3})

	failN(cb, 2)
	_ = cb.Execute(func() error { return nil })
	failN(cb, 2)

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed (failure streak was broken)", cb.State())
	}
}

func TestCircuitBreaker_CooldownAdmitsProbesAndCloses(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		HalfOpenMax:  2,
	})

	failN(cb, 2)
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	*now = now.Add(2 * time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after cooldown", cb.State())
	}

	for i := range 2 {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: unexpected error: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful probes", cb.State())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, now := testBreaker(CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		HalfOpenMax:  3,
	})

	failN(cb, 2)
	*now = now.Add(2 * time.Minute)

	if err := cb.Execute(func() error { return errTest }); err == nil {
		t.Fatal("expected error from failing probe")
	}

	// Re-opened just now, so the cooldown starts over.
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen right after re-open", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := testBreaker(CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	failN(cb, 2)
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after Reset", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
