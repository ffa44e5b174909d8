package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	nodex "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/nodes/orchestrator"
	tracerx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/tracer"
)

var ErrInvalidQuery = nodex.ErrInvalidQuery

// Orchestrator runs plan generation, step execution and synthesis for one
// request at a time; the three stages never overlap.
type Orchestrator struct {
	planner  contractx.PlanGenerator
	executor contractx.StepExecutor
	synth    contractx.Synthesizer
	notifier contractx.ExecutionNotifier

	graphRunner compose.Runnable[*nodex.GraphState, contractx.Result]

	now   func() time.Time
	newID func() string
}

type Option func(*Orchestrator)

func WithNotifier(n contractx.ExecutionNotifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func New(
	planner contractx.PlanGenerator,
	executor contractx.StepExecutor,
	synth contractx.Synthesizer,
	opts ...Option,
) (*Orchestrator, error) {
	if planner == nil {
		return nil, errors.New("plan generator is required")
	}
	if executor == nil {
		return nil, errors.New("step executor is required")
	}
	if synth == nil {
		return nil, errors.New("synthesizer is required")
	}

	o := &Orchestrator{
		planner:  planner,
		executor: executor,
		synth:    synth,
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	graphRunner, err := o.compileExecuteGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Execute returns the result together with any error. After a failure the
// result still carries the plan and every step that ran, so callers can
// report partial progress. A planner failure leaves the trace empty.
// Every run that got a plan is handed to the notifier, failed or not.
func (o *Orchestrator) Execute(ctx context.Context, req contractx.Request) (contractx.Result, error) {
	st := &nodex.GraphState{
		ExecutionID: o.newID(),
		SessionID:   req.SessionID,
		Query:       req.Query,
	}

	ctx, span := tracerx.StartSpan(ctx, "orchestrator.execute")
	defer span.End()
	span.SetAttributes(tracerx.StringAttr("execution.id", st.ExecutionID))

	logger := zerolog.Ctx(ctx).With().Str("execution_id", st.ExecutionID).Logger()
	ctx = logger.WithContext(ctx)

	out, err := o.graphRunner.Invoke(ctx, st)
	if err != nil {
		err = contractx.GraphCause(err)
		st.Failure = err
		tracerx.RecordError(span, err)
		logger.Error().Err(err).Int("executed", len(st.Execution.Trace)).Msg("execution failed")

		// Nothing ran without a plan, so there is nothing to publish.
		if len(st.Plan.Steps) > 0 {
			_, _ = nodex.Notify(ctx, st, o.notifier)
		}
		return st.Result(), err
	}

	span.SetAttributes(
		tracerx.StringAttr("execution.status", string(out.Status)),
		tracerx.IntAttr("execution.steps", len(out.Trace)),
	)
	tracerx.SetOK(span)
	return out, nil
}
