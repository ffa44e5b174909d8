package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonschema"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	llmx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/llm"
	promptx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/prompt"
	tracerx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/tracer"
)

const DefaultTemperature float32 = 0.3

type Config struct {
	// Prompt is the planner template; the embedded one is used when empty.
	Prompt string
	// Temperature zero means DefaultTemperature.
	Temperature float32
}

// Planner turns a free-text query into a Plan with one completion call.
// Malformed output is rejected, never repaired, and never retried.
type Planner struct {
	runner compose.Runnable[string, contractx.Plan]
}

var _ contractx.PlanGenerator = (*Planner)(nil)

func New(
	ctx context.Context,
	completer contractx.Completer,
	tools []contractx.ToolDefinition,
	cfg Config,
) (*Planner, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if len(tools) == 0 {
		return nil, errors.New("at least one tool definition is required")
	}
	text := strings.TrimSpace(cfg.Prompt)
	if text == "" {
		text = promptx.LoadPromptSet().Planner
	}
	if text == "" {
		return nil, fmt.Errorf("%w: planner", contractx.ErrPromptMissing)
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	validator, err := compilePlanSchema()
	if err != nil {
		return nil, err
	}

	runner, err := compilePlannerGraph(ctx, planGraphDeps{
		completer:   completer,
		tools:       tools,
		prompt:      text,
		temperature: temperature,
		validator:   validator,
	})
	if err != nil {
		return nil, err
	}
	return &Planner{runner: runner}, nil
}

func (p *Planner) Generate(ctx context.Context, query string) (contractx.Plan, error) {
	ctx, span := tracerx.StartSpan(ctx, "planner.generate")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		err := fmt.Errorf("%w: query is required", contractx.ErrValidation)
		tracerx.RecordError(span, err)
		return contractx.Plan{}, err
	}

	plan, err := p.runner.Invoke(ctx, query)
	if err != nil {
		err = contractx.GraphCause(err)
		tracerx.RecordError(span, err)
		return contractx.Plan{}, err
	}

	span.SetAttributes(tracerx.IntAttr("plan.steps", len(plan.Steps)))
	tracerx.SetOK(span)
	zerolog.Ctx(ctx).Debug().Int("steps", len(plan.Steps)).Msg("plan generated")
	return plan, nil
}

type planGraphDeps struct {
	completer   contractx.Completer
	tools       []contractx.ToolDefinition
	prompt      string
	temperature float32
	validator   *jsonschema.Schema
}

func compilePlannerGraph(ctx context.Context, deps planGraphDeps) (compose.Runnable[string, contractx.Plan], error) {
	graph := compose.NewGraph[string, contractx.Plan]()

	if err := graph.AddLambdaNode("prepare",
		compose.InvokableLambda(func(ctx context.Context, query string) (map[string]any, error) {
			return map[string]any{
				promptx.VarQuery: strings.TrimSpace(query),
				promptx.VarTools: deps.tools,
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add planner prepare node: %w", err)
	}

	if err := graph.AddChatTemplateNode("prompt", promptx.ChatTemplate(deps.prompt)); err != nil {
		return nil, fmt.Errorf("add planner prompt node: %w", err)
	}

	if err := graph.AddLambdaNode("complete",
		compose.InvokableLambda(func(ctx context.Context, msgs []*schema.Message) (string, error) {
			return deps.completer.Complete(ctx, joinContent(msgs), contractx.CompletionOptions{
				JSONMode:    true,
				Temperature: deps.temperature,
			})
		}),
	); err != nil {
		return nil, fmt.Errorf("add planner complete node: %w", err)
	}

	if err := graph.AddLambdaNode("parse_plan",
		compose.InvokableLambda(func(ctx context.Context, raw string) (contractx.Plan, error) {
			return parsePlan(raw, deps.validator)
		}),
	); err != nil {
		return nil, fmt.Errorf("add planner parse node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prepare"},
		{"prepare", "prompt"},
		{"prompt", "complete"},
		{"complete", "parse_plan"},
		{"parse_plan", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add planner edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("planner.generate_plan"))
	if err != nil {
		return nil, fmt.Errorf("compile planner graph: %w", err)
	}
	return runner, nil
}

// parsePlan accepts the first JSON object of a completion when it matches
// the plan schema.
func parsePlan(raw string, validator *jsonschema.Schema) (contractx.Plan, error) {
	body, err := llmx.ExtractJSONObject(raw)
	if err != nil {
		return contractx.Plan{}, fmt.Errorf("%w: %v", contractx.ErrPlanParse, err)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return contractx.Plan{}, fmt.Errorf("%w: invalid JSON: %v", contractx.ErrPlanParse, err)
	}
	if result := validator.Validate(doc); !result.IsValid() {
		return contractx.Plan{}, fmt.Errorf("%w: plan does not match schema: %s", contractx.ErrPlanParse, result.Error())
	}

	var plan contractx.Plan
	if err := json.Unmarshal([]byte(body), &plan); err != nil {
		return contractx.Plan{}, fmt.Errorf("%w: decode plan: %v", contractx.ErrPlanParse, err)
	}
	if len(plan.Steps) == 0 {
		return contractx.Plan{}, fmt.Errorf("%w: plan has no steps", contractx.ErrPlanParse)
	}
	for i := range plan.Steps {
		plan.Steps[i].ToolName = strings.TrimSpace(plan.Steps[i].ToolName)
	}
	return plan, nil
}

func joinContent(msgs []*schema.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m != nil && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
