package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	statex "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/state"
)

var ErrInvalidQuery = errors.New("user query is required")

// GraphState is shared by every node of one orchestrator run. The caller
// keeps the pointer, so whatever was recorded before a failing node is
// still available after the graph returns an error.
type GraphState struct {
	ExecutionID string
	SessionID   string
	Query       string
	Now         time.Time

	Plan         contractx.Plan
	Execution    contractx.Execution
	FinalMessage string

	// Failure is the error that stopped the run, if any.
	Failure  error
	Notified bool
}

func ValidateRequest(in *GraphState, nowFn func() time.Time) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidQuery)
	}

	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		in.SessionID = statex.DefaultSessionID
	}
	in.Now = nowFn().UTC()
	in.Execution.Status = contractx.ExecutionPending
	return in, nil
}
