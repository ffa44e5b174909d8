package notify

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	qstashx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/qstash"
)

type fakePublisher struct {
	err         error
	destination string
	body        any
	opts        qstashx.PublishOptions
}

func (f *fakePublisher) Publish(ctx context.Context, destination string, body any, opts qstashx.PublishOptions) (qstashx.PublishResponse, error) {
	f.destination = destination
	f.body = body
	f.opts = opts
	if f.err != nil {
		return qstashx.PublishResponse{}, f.err
	}
	return qstashx.PublishResponse{MessageID: "msg"}, nil
}

func TestNotifyPublishesSummary(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	n, err := NewQStashNotifier(pub, " https://hooks.example.com ")
	if err != nil {
		t.Fatalf("NewQStashNotifier() error = %v", err)
	}

	err = n.Notify(context.Background(), contractx.Result{
		ExecutionID: "e1",
		Query:       "show my watchlist",
		Plan:        contractx.Plan{Steps: []contractx.Step{{ToolName: "getWatchlist"}, {ToolName: "getLeaveBalance"}}},
		Trace: contractx.Trace{
			{Step: contractx.Step{ToolName: "getWatchlist"}, Success: true, Result: map[string]any{"count": 0}},
		},
		Status:       contractx.ExecutionAborted,
		FinalMessage: "done",
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if pub.destination != "https://hooks.example.com" || pub.opts.DeduplicationID != "e1" {
		t.Fatalf("unexpected publish: %q %#v", pub.destination, pub.opts)
	}
	event, ok := pub.body.(ExecutionEvent)
	if !ok {
		t.Fatalf("body type = %T", pub.body)
	}
	if event.PlannedSteps != 2 || len(event.Steps) != 1 || event.Steps[0].Function != "getWatchlist" {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestNotifyCarriesFailure(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	n, err := NewQStashNotifier(pub, "https://hooks.example.com")
	if err != nil {
		t.Fatalf("NewQStashNotifier() error = %v", err)
	}

	stepErr := "unknown tool: bookFlight"
	err = n.Notify(context.Background(), contractx.Result{
		ExecutionID: "e2",
		Trace: contractx.Trace{
			{Step: contractx.Step{ToolName: "bookFlight"}, Error: &stepErr},
		},
		Status: contractx.ExecutionAborted,
		Error:  "completion service failed: 503",
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	event := pub.body.(ExecutionEvent)
	if event.Error != "completion service failed: 503" || event.Steps[0].Error != stepErr {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestNotifyWrapsPublishError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	n, err := NewQStashNotifier(&fakePublisher{err: boom}, "https://hooks.example.com")
	if err != nil {
		t.Fatalf("NewQStashNotifier() error = %v", err)
	}
	if err := n.Notify(context.Background(), contractx.Result{ExecutionID: "e1"}); !errors.Is(err, boom) {
		t.Fatalf("Notify() error = %v, want boom", err)
	}
}
