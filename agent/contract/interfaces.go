package contract

import "context"

type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

type PlanGenerator interface {
	Generate(ctx context.Context, query string) (Plan, error)
}

type StepExecutor interface {
	Execute(ctx context.Context, sessionID string, plan Plan) Execution
}

type Synthesizer interface {
	Synthesize(ctx context.Context, query string, trace Trace) (string, error)
}

type ToolInvoker interface {
	Invoke(ctx context.Context, sessionID string, tool string, args map[string]any) (any, error)
	Definitions() []ToolDefinition
}

type ExecutionNotifier interface {
	Notify(ctx context.Context, result Result) error
}
