package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	nodex "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileExecuteGraph(
	ctx context.Context,
) (compose.Runnable[*nodex.GraphState, contractx.Result], error) {
	graph := compose.NewGraph[*nodex.GraphState, contractx.Result]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("generate_plan",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.GeneratePlan(ctx, in, o.planner)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node generate_plan: %w", err)
	}

	if err := graph.AddLambdaNode("execute_plan",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecutePlan(ctx, in, o.executor)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_plan: %w", err)
	}

	if err := graph.AddLambdaNode("synthesize_response",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SynthesizeResponse(ctx, in, o.synth)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node synthesize_response: %w", err)
	}

	if err := graph.AddLambdaNode("notify",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Notify(ctx, in, o.notifier)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node notify: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (contractx.Result, error) {
			return nodex.Finalize(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "generate_plan"},
		{"generate_plan", "execute_plan"},
		{"execute_plan", "synthesize_response"},
		{"synthesize_response", "notify"},
		{"notify", "finalize"},
		{"finalize", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.execute"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
