package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

func GeneratePlan(ctx context.Context, in *GraphState, planner contractx.PlanGenerator) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	plan, err := planner.Generate(ctx, in.Query)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("plan generation failed")
		return nil, err
	}
	in.Plan = plan

	zerolog.Ctx(ctx).Info().
		Int("steps", len(plan.Steps)).
		Msg("plan generated")
	return in, nil
}
