package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

func Finalize(in *GraphState) (contractx.Result, error) {
	if in == nil {
		return contractx.Result{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.FinalMessage) == "" {
		return contractx.Result{}, fmt.Errorf("%w: final message is empty", contractx.ErrValidation)
	}
	return in.Result(), nil
}

// Result snapshots the state as the caller-facing result. It is safe to call
// on a partially filled state.
func (s *GraphState) Result() contractx.Result {
	var failure string
	if s.Failure != nil {
		failure = s.Failure.Error()
	}
	return contractx.Result{
		ExecutionID:  s.ExecutionID,
		SessionID:    s.SessionID,
		Query:        s.Query,
		Plan:         s.Plan,
		Trace:        s.Execution.Trace,
		Status:       s.Execution.Status,
		FinalMessage: s.FinalMessage,
		Timestamp:    s.Now,
		Error:        failure,
	}
}
