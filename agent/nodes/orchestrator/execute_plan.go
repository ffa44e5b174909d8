package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

// ExecutePlan never fails on step errors; they live in the trace.
func ExecutePlan(ctx context.Context, in *GraphState, executor contractx.StepExecutor) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Execution = executor.Execute(ctx, in.SessionID, in.Plan)

	zerolog.Ctx(ctx).Info().
		Str("status", string(in.Execution.Status)).
		Int("executed", len(in.Execution.Trace)).
		Int("planned", len(in.Plan.Steps)).
		Msg("plan executed")
	return in, nil
}
