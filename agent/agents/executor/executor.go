package executor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	tracerx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/tracer"
)

// Executor runs plan steps in order against the tool registry. Step
// failures are recorded in the trace; a failed required step stops the
// run. Earlier side effects are kept, there is no compensation.
type Executor struct {
	tools contractx.ToolInvoker
	now   func() time.Time
}

var _ contractx.StepExecutor = (*Executor)(nil)

type Option func(*Executor)

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

func New(tools contractx.ToolInvoker, opts ...Option) (*Executor, error) {
	if tools == nil {
		return nil, errors.New("tool invoker is required")
	}
	e := &Executor{
		tools: tools,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Execute never returns an error. Callers tell a completed run from an
// aborted one by Status, or by comparing the trace length with the plan.
func (e *Executor) Execute(ctx context.Context, sessionID string, plan contractx.Plan) contractx.Execution {
	run := contractx.Execution{
		Trace:  make(contractx.Trace, 0, len(plan.Steps)),
		Status: contractx.ExecutionPending,
	}
	if len(plan.Steps) == 0 {
		run.Status = contractx.ExecutionCompleted
		return run
	}

	logger := zerolog.Ctx(ctx)
	run.Status = contractx.ExecutionRunning
	for i, step := range plan.Steps {
		outcome := e.runStep(ctx, sessionID, i, step)
		run.Trace = append(run.Trace, outcome)

		if !outcome.Success && !step.Optional {
			run.Status = contractx.ExecutionAborted
			logger.Warn().
				Int("step", i).
				Str("tool", step.ToolName).
				Int("skipped", len(plan.Steps)-i-1).
				Msg("required step failed, aborting plan")
			return run
		}
	}
	run.Status = contractx.ExecutionCompleted
	return run
}

func (e *Executor) runStep(ctx context.Context, sessionID string, index int, step contractx.Step) contractx.StepOutcome {
	ctx, span := tracerx.StartSpan(ctx, "executor.step")
	defer span.End()
	span.SetAttributes(
		tracerx.IntAttr("step.index", index),
		tracerx.StringAttr("step.tool", step.ToolName),
		tracerx.BoolAttr("step.optional", step.Optional),
	)

	result, err := e.tools.Invoke(ctx, sessionID, step.ToolName, step.Arguments)
	outcome := contractx.StepOutcome{
		Step:      step,
		Timestamp: e.now(),
	}

	logger := zerolog.Ctx(ctx)
	if err != nil {
		msg := err.Error()
		outcome.Error = &msg
		tracerx.RecordError(span, err)
		logger.Info().Err(err).Int("step", index).Str("tool", step.ToolName).Bool("optional", step.Optional).Msg("step failed")
		return outcome
	}

	outcome.Success = true
	outcome.Result = result
	tracerx.SetOK(span)
	logger.Debug().Int("step", index).Str("tool", step.ToolName).Msg("step completed")
	return outcome
}
