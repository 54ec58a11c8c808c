package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(cfg)
	cb.now = c.now
	return cb, c
}

func call(cb *CircuitBreaker, err error) error {
	_, got := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "", err
	})
	return got
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	var transitions []string
	cb, clk := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	_ = call(cb, errFlaky)
	if cb.State() != CircuitClosed {
		t.Fatalf("state after 1 failure = %v, want closed", cb.State())
	}
	_ = call(cb, errFlaky)
	if cb.State() != CircuitOpen {
		t.Fatalf("state after 2 failures = %v, want open", cb.State())
	}

	if err := call(cb, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open circuit err = %v, want ErrCircuitOpen", err)
	}

	clk.advance(time.Minute)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", cb.State())
	}

	// Failed probe reopens.
	_ = call(cb, errFlaky)
	if err := call(cb, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("after failed probe err = %v, want ErrCircuitOpen", err)
	}

	// Successful probe closes.
	clk.advance(time.Minute)
	if err := call(cb, nil); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state after probe = %v, want closed", cb.State())
	}

	want := []string{"closed>open", "open>half-open", "half-open>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	_ = call(cb, errFlaky)
	_ = call(cb, nil)
	_ = call(cb, errFlaky)

	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed: failures were not consecutive", cb.State())
	}
}

func TestCircuitBreaker_ShouldTrip(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, ShouldTrip: IsTransient})

	badKey := errors.New("401 invalid api key")
	for range 3 {
		if err := call(cb, badKey); !errors.Is(err, badKey) {
			t.Fatalf("err = %v, want the call's own error", err)
		}
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed for non-tripping errors", cb.State())
	}

	_ = call(cb, errFlaky)
	if cb.State() != CircuitOpen {
		t.Errorf("state = %v, want open after a transient error", cb.State())
	}
}

func TestExecuteVal_ReturnsValue(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Errorf("ExecuteVal = (%d, %v), want (42, nil)", got, err)
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = call(cb, errFlaky)
			} else {
				_ = call(cb, nil)
			}
			_ = cb.State()
		}(i)
	}
	wg.Wait()

	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed below threshold", cb.State())
	}
}

func TestFromCircuitConfig(t *testing.T) {
	cb := NewCircuitBreaker(FromCircuitConfig(0, 0))
	if cb.cfg.FailureThreshold != 5 || cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("defaults = (%d, %v), want (5, 30s)", cb.cfg.FailureThreshold, cb.cfg.ResetTimeout)
	}

	cb = NewCircuitBreaker(FromCircuitConfig(2, time.Minute))
	if cb.cfg.FailureThreshold != 2 || cb.cfg.ResetTimeout != time.Minute {
		t.Errorf("config = (%d, %v), want (2, 1m)", cb.cfg.FailureThreshold, cb.cfg.ResetTimeout)
	}
}

func TestCircuitState_String(t *testing.T) {
	for state, want := range map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestStateLogger(t *testing.T) {
	StateLogger("openai")(CircuitClosed, CircuitOpen)
}
