package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

// Notify publishes the finished result, failed runs included. Delivery is
// best effort: a failed notification is logged and never returned. A state
// is published at most once.
func Notify(ctx context.Context, in *GraphState, notifier contractx.ExecutionNotifier) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if notifier == nil || in.Notified {
		return in, nil
	}
	in.Notified = true

	if err := notifier.Notify(ctx, in.Result()); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("execution_id", in.ExecutionID).Msg("execution notification failed")
	}
	return in, nil
}
