package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

func SynthesizeResponse(ctx context.Context, in *GraphState, synth contractx.Synthesizer) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	msg, err := synth.Synthesize(ctx, in.Query, in.Execution.Trace)
	if err != nil {
		return nil, err
	}
	in.FinalMessage = msg
	return in, nil
}
