package synthesizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	promptx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/prompt"
	tracerx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/tracer"
)

const (
	DefaultTemperature float32 = 0.7

	// Apology is returned without a completion call when no step succeeded.
	Apology = "I couldn't complete your request. Please try again with a different query."
)

type Config struct {
	Prompt string
	// Temperature zero means DefaultTemperature.
	Temperature float32
}

type Synthesizer struct {
	runner compose.Runnable[synthesisInput, string]
}

var _ contractx.Synthesizer = (*Synthesizer)(nil)

type synthesisInput struct {
	Query   string
	Results []any
}

func New(ctx context.Context, completer contractx.Completer, cfg Config) (*Synthesizer, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	text := strings.TrimSpace(cfg.Prompt)
	if text == "" {
		text = promptx.LoadPromptSet().Synthesizer
	}
	if text == "" {
		return nil, fmt.Errorf("%w: synthesizer", contractx.ErrPromptMissing)
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	runner, err := compileSynthesisGraph(ctx, completer, text, temperature)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{runner: runner}, nil
}

// Synthesize summarizes the successful outcomes of a trace. Failed steps
// never reach the prompt.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, trace contractx.Trace) (string, error) {
	successful := trace.Successful()
	if len(successful) == 0 {
		return Apology, nil
	}

	ctx, span := tracerx.StartSpan(ctx, "synthesizer.synthesize")
	defer span.End()
	span.SetAttributes(tracerx.IntAttr("synthesis.results", len(successful)))

	results := make([]any, 0, len(successful))
	for _, o := range successful {
		results = append(results, o.Result)
	}

	out, err := s.runner.Invoke(ctx, synthesisInput{Query: query, Results: results})
	if err != nil {
		err = contractx.GraphCause(err)
		tracerx.RecordError(span, err)
		return "", err
	}
	tracerx.SetOK(span)
	return out, nil
}

func compileSynthesisGraph(
	ctx context.Context,
	completer contractx.Completer,
	text string,
	temperature float32,
) (compose.Runnable[synthesisInput, string], error) {
	graph := compose.NewGraph[synthesisInput, string]()

	if err := graph.AddLambdaNode("prepare",
		compose.InvokableLambda(func(ctx context.Context, in synthesisInput) (map[string]any, error) {
			raw, err := json.MarshalIndent(in.Results, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("%w: marshal execution results: %v", contractx.ErrValidation, err)
			}
			return map[string]any{
				promptx.VarQuery:   strings.TrimSpace(in.Query),
				promptx.VarResults: string(raw),
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add synthesis prepare node: %w", err)
	}

	if err := graph.AddChatTemplateNode("prompt", promptx.ChatTemplate(text)); err != nil {
		return nil, fmt.Errorf("add synthesis prompt node: %w", err)
	}

	if err := graph.AddLambdaNode("complete",
		compose.InvokableLambda(func(ctx context.Context, msgs []*schema.Message) (string, error) {
			var b strings.Builder
			for _, m := range msgs {
				if m != nil {
					b.WriteString(m.Content)
				}
			}
			return completer.Complete(ctx, b.String(), contractx.CompletionOptions{Temperature: temperature})
		}),
	); err != nil {
		return nil, fmt.Errorf("add synthesis complete node: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(func(ctx context.Context, text string) (string, error) {
			text = strings.TrimSpace(text)
			if text == "" {
				return "", fmt.Errorf("%w: empty synthesis", contractx.ErrCompletion)
			}
			return text, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add synthesis finalize node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prepare"},
		{"prepare", "prompt"},
		{"prompt", "complete"},
		{"complete", "finalize"},
		{"finalize", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add synthesis edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("synthesizer.final_response"))
	if err != nil {
		return nil, fmt.Errorf("compile synthesis graph: %w", err)
	}
	return runner, nil
}
