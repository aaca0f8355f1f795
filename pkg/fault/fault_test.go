package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"bad_input", BadInput("missing message"), KindBadInput},
		{"unknown_tool", UnknownTool("no such tool %q", "frobnicate"), KindUnknownTool},
		{"tool_failed", ToolFailed("exit status 1"), KindToolFailed},
		{"backend_unavailable", BackendUnavailable("model %s timed out", "gpt-4"), KindBackendUnavailable},
		{"safety_rejected", SafetyRejected("path escapes workspace"), KindSafetyRejected},
		{"budget_exceeded", BudgetExceeded("error ceiling reached"), KindBudgetExceeded},
		{"fatal", Fatal("config missing api key"), KindFatal},
		{"unknown", errors.New("something else"), KindUnknown},
		{"wrapped", fmt.Errorf("outer: %w", ToolFailed("inner")), KindToolFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	err := BackendUnavailable("model %s unreachable", "local-llama")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected errors.Is to match ErrBackendUnavailable")
	}
	if errors.Is(err, ErrToolFailed) {
		t.Fatalf("backend error must not match ErrToolFailed")
	}
}
