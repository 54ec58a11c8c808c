package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "dial timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("401 invalid api key"), false},
		{"explicit", NewTransientError(errors.New("throttled"), 429), true},
		{"eris wrapped", eris.Wrap(NewTransientError(errors.New("overloaded"), 529), "anthropic: create message"), true},
		{"fmt wrapped", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 0)), true},
		{"per-call deadline", eris.Wrap(context.DeadlineExceeded, "openai: chat completion"), true},
		{"cancelled", eris.Wrap(context.Canceled, "openai: chat completion"), false},
		{"net timeout", timeoutErr{}, true},
		{"econnreset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"econnrefused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"message pattern", errors.New("Post https://api.openai.com: unexpected EOF"), true},
		{"no such host", errors.New("dial tcp: lookup api.openai.com: no such host"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("IsTransientHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("IsTransientHTTPStatus(%d) = true, want false", code)
		}
	}
}

func TestTransientError(t *testing.T) {
	inner := errors.New("rate limited")
	te := NewTransientError(inner, 429)

	if te.Error() != "rate limited" {
		t.Errorf("Error() = %q", te.Error())
	}
	if !errors.Is(te, inner) {
		t.Error("TransientError should unwrap to the inner error")
	}
	if te.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", te.StatusCode)
	}
}
