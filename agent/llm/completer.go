package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

const jsonModeSuffix = "\n\nIMPORTANT: Respond with valid JSON only. No markdown, no explanation, just the JSON object."

// ChatModelCompleter adapts an eino chat model to a single-prompt completer.
type ChatModelCompleter struct {
	model model.BaseChatModel
}

var _ contractx.Completer = (*ChatModelCompleter)(nil)

func NewChatModelCompleter(m model.BaseChatModel) (*ChatModelCompleter, error) {
	if m == nil {
		return nil, errors.New("chat model is required")
	}
	return &ChatModelCompleter{model: m}, nil
}

func (c *ChatModelCompleter) Complete(
	ctx context.Context,
	prompt string,
	opts contractx.CompletionOptions,
) (string, error) {
	if opts.JSONMode {
		prompt += jsonModeSuffix
	}

	var modelOpts []model.Option
	if opts.Temperature >= 0 {
		modelOpts = append(modelOpts, model.WithTemperature(opts.Temperature))
	}

	msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, modelOpts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrCompletion, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty response", contractx.ErrCompletion)
	}
	return strings.TrimSpace(msg.Content), nil
}

// OpenAICompleter talks to an OpenAI-compatible endpoint directly so JSON
// mode can be requested through response_format.
type OpenAICompleter struct {
	client      *openaisdk.Client
	model       string
	maxTokens   int
	temperature float32
}

var _ contractx.Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(client *openaisdk.Client, modelName string, maxTokens int, temperature float32) (*OpenAICompleter, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, errors.New("model name is required")
	}
	return &OpenAICompleter{
		client:      client,
		model:       strings.TrimSpace(modelName),
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

func (c *OpenAICompleter) Complete(
	ctx context.Context,
	prompt string,
	opts contractx.CompletionOptions,
) (string, error) {
	temp := c.temperature
	if opts.Temperature >= 0 {
		temp = opts.Temperature
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
		Temperature: openaisdk.Float(float64(temp)),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(c.maxTokens))
	}
	if opts.JSONMode {
		params.Messages[0] = openaisdk.UserMessage(prompt + jsonModeSuffix)
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrCompletion, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", contractx.ErrCompletion)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
