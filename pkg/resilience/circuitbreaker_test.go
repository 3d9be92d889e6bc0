package resilience

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

var errBoom = errors.New("boom")

func failingCalls(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return errBoom })
	}
}

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{})
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("expected closed, got %v", got)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 5})
	failingCalls(cb, 4)
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("expected closed after 4 failures, got %v", got)
	}
	failingCalls(cb, 1)
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("expected open after 5 failures, got %v", got)
	}
}

func TestCircuitBreakerRejectsWithoutCallingWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})
	failingCalls(cb, 2)

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if called {
		t.Error("open breaker should not invoke the function")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Millisecond,
	})
	failingCalls(cb, 1)
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("expected open, got %v", got)
	}

	time.Sleep(5 * time.Millisecond)

	// First call after cooldown is the probe; its success closes the circuit.
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if got := cb.GetState(); got != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", got)
	}
}

func TestCircuitBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Millisecond,
	})
	failingCalls(cb, 1)
	time.Sleep(5 * time.Millisecond)

	failingCalls(cb, 1)
	if got := cb.GetState(); got != StateOpen {
		t.Errorf("expected reopened after failed probe, got %v", got)
	}
}

func TestCircuitBreakerAllowsExactlyOneProbe(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Millisecond,
	})
	failingCalls(cb, 1)
	time.Sleep(5 * time.Millisecond)

	block := make(chan struct{})
	probeStarted := make(chan struct{})
	go cb.Execute(func() error {
		close(probeStarted)
		<-block
		return nil
	})
	<-probeStarted

	// While the probe is in flight, a second call must be rejected.
	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected second half-open call rejected, got %v", err)
	}
	close(block)
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	permanent := apperrors.ErrHTTPPermanent
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		IsFailure:        apperrors.IsTransient,
	})
	for i := 0; i < 10; i++ {
		cb.Execute(func() error { return permanent })
	}
	if got := cb.GetState(); got != StateClosed {
		t.Errorf("permanent errors must not trip the breaker, got %v", got)
	}
}

func TestCircuitBreakerStateChangeHook(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Millisecond,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, to)
		},
	})
	failingCalls(cb, 1)
	time.Sleep(5 * time.Millisecond)
	cb.Execute(func() error { return nil })

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), transitions)
	}
	for i, s := range want {
		if transitions[i] != s {
			t.Errorf("transition %d: expected %v, got %v", i, s, transitions[i])
		}
	}
}
