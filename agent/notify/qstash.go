package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	qstashx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/qstash"
)

type Publisher interface {
	Publish(ctx context.Context, destination string, body any, opts qstashx.PublishOptions) (qstashx.PublishResponse, error)
}

// ExecutionEvent is the message published once per finished execution.
type ExecutionEvent struct {
	ExecutionID  string                    `json:"execution_id"`
	SessionID    string                    `json:"session_id"`
	UserQuery    string                    `json:"user_query"`
	Status       contractx.ExecutionStatus `json:"status"`
	PlannedSteps int                       `json:"planned_steps"`
	Steps        []StepSummary             `json:"steps"`
	FinalResult  string                    `json:"final_result"`
	Error        string                    `json:"error,omitempty"`
	Timestamp    time.Time                 `json:"timestamp"`
}

type StepSummary struct {
	Function string `json:"function"`
	Success  bool   `json:"success"`
	Optional bool   `json:"optional"`
	Error    string `json:"error,omitempty"`
}

type QStashNotifier struct {
	publisher   Publisher
	destination string
}

var _ contractx.ExecutionNotifier = (*QStashNotifier)(nil)

func NewQStashNotifier(publisher Publisher, destination string) (*QStashNotifier, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, errors.New("destination is required")
	}
	return &QStashNotifier{publisher: publisher, destination: destination}, nil
}

// Notify publishes a summary of the result. Tool results are left out so
// session data does not leave the service.
func (n *QStashNotifier) Notify(ctx context.Context, result contractx.Result) error {
	event := ExecutionEvent{
		ExecutionID:  result.ExecutionID,
		SessionID:    result.SessionID,
		UserQuery:    result.Query,
		Status:       result.Status,
		PlannedSteps: len(result.Plan.Steps),
		Steps:        make([]StepSummary, 0, len(result.Trace)),
		FinalResult:  result.FinalMessage,
		Error:        result.Error,
		Timestamp:    result.Timestamp,
	}
	for _, o := range result.Trace {
		event.Steps = append(event.Steps, StepSummary{
			Function: o.ToolName,
			Success:  o.Success,
			Optional: o.Optional,
			Error:    o.ErrorMessage(),
		})
	}

	if _, err := n.publisher.Publish(ctx, n.destination, event, qstashx.PublishOptions{
		DeduplicationID: result.ExecutionID,
	}); err != nil {
		return fmt.Errorf("publish execution %s: %w", result.ExecutionID, err)
	}
	return nil
}
