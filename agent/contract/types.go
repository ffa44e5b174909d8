package contract

import (
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "executing"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionAborted   ExecutionStatus = "aborted"
)

type CompletionOptions struct {
	JSONMode bool
	// Temperature < 0 means the completer's configured default.
	Temperature float32
}

type ToolDefinition struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description"`
	Params      map[string]*schema.ParameterInfo `json:"-"`
}

type Plan struct {
	Steps []Step `json:"steps"`
}

type Step struct {
	ToolName  string         `json:"function"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Purpose   string         `json:"purpose,omitempty"`
	Optional  bool           `json:"optional"`
}

// StepOutcome flattens the step it records so the wire shape matches what
// the planner produced plus the execution fields. Result and Error are
// encoded as null when unset.
type StepOutcome struct {
	Step
	Success   bool      `json:"success"`
	Result    any       `json:"result"`
	Error     *string   `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMessage is the step error text, or "" for a successful step.
func (o StepOutcome) ErrorMessage() string {
	if o.Error == nil {
		return ""
	}
	return *o.Error
}

type Trace []StepOutcome

// Successful returns the outcomes that succeeded, in execution order.
func (t Trace) Successful() Trace {
	out := make(Trace, 0, len(t))
	for _, o := range t {
		if o.Success {
			out = append(out, o)
		}
	}
	return out
}

type Execution struct {
	Trace  Trace
	Status ExecutionStatus
}

type Request struct {
	Query     string
	SessionID string
}

type Result struct {
	ExecutionID  string          `json:"execution_id"`
	SessionID    string          `json:"session_id"`
	Query        string          `json:"user_query"`
	Plan         Plan            `json:"plan"`
	Trace        Trace           `json:"execution_steps"`
	Status       ExecutionStatus `json:"status"`
	FinalMessage string          `json:"final_result"`
	Timestamp    time.Time       `json:"timestamp"`
	// Error is set when the execution failed after planning.
	Error string `json:"error,omitempty"`
}

// Signature renders the definition the way the planner prompt lists it,
// e.g. addToWatchlist({movie_id: string}). Required parameters
// come first, then the rest by name.
func (d ToolDefinition) Signature() string {
	names := make([]string, 0, len(d.Params))
	for name := range d.Params {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := d.Params[names[i]].Required, d.Params[names[j]].Required
		if ri != rj {
			return ri
		}
		return names[i] < names[j]
	})

	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString("(")
	if len(names) > 0 {
		b.WriteString("{")
		for i, name := range names {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(string(d.Params[name].Type))
		}
		b.WriteString("}")
	}
	b.WriteString(")")
	return b.String()
}
