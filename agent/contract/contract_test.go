package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type frameError struct {
	inner error
}

func (e *frameError) Error() string {
	return "[NodeRunError]\n" + e.inner.Error() + "\n------------------------\nnode path: [generate_plan, parse_plan]"
}

func (e *frameError) Unwrap() error { return e.inner }

func TestGraphCauseStripsNodeFraming(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("%w: plan has no steps", ErrPlanParse)
	got := GraphCause(&frameError{inner: cause})
	if got != cause {
		t.Fatalf("GraphCause() = %q, want %q", got, cause)
	}
	if !errors.Is(got, ErrPlanParse) {
		t.Fatal("sentinel lost")
	}
}

func TestGraphCauseKeepsPlainErrors(t *testing.T) {
	t.Parallel()

	if GraphCause(nil) != nil {
		t.Fatal("GraphCause(nil) should be nil")
	}
	plain := fmt.Errorf("wrap: %w", ErrCompletion)
	if got := GraphCause(plain); got != plain {
		t.Fatalf("GraphCause() = %v, want unchanged", got)
	}
}

func TestStepOutcomeEncodesNullError(t *testing.T) {
	t.Parallel()

	msg := "unknown tool: bookFlight"
	outcomes := Trace{
		{Step: Step{ToolName: "getWatchlist"}, Success: true, Result: map[string]any{"count": 0}, Timestamp: time.Unix(0, 0).UTC()},
		{Step: Step{ToolName: "bookFlight"}, Error: &msg, Timestamp: time.Unix(0, 0).UTC()},
	}
	raw, err := json.Marshal(outcomes)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v, ok := decoded[0]["error"]; !ok || v != nil {
		t.Fatalf("successful step error = %#v, want null", decoded[0]["error"])
	}
	if v, ok := decoded[1]["result"]; !ok || v != nil {
		t.Fatalf("failed step result = %#v, want null", decoded[1]["result"])
	}
	if decoded[1]["error"] != msg || outcomes[1].ErrorMessage() != msg || outcomes[0].ErrorMessage() != "" {
		t.Fatalf("unexpected error fields: %s", raw)
	}
	if !strings.Contains(string(raw), `"function":"bookFlight"`) {
		t.Fatalf("step not flattened: %s", raw)
	}
}
