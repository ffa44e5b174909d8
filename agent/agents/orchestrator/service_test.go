package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	executorx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/agents/executor"
	catalogx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	statex "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/state"
	toolx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/tool"
)

type fakePlanner struct {
	plan  contractx.Plan
	err   error
	calls int
}

func (f *fakePlanner) Generate(ctx context.Context, query string) (contractx.Plan, error) {
	f.calls++
	if f.err != nil {
		return contractx.Plan{}, f.err
	}
	return f.plan, nil
}

// fakeSynthesizer names every movie it finds in successful results.
type fakeSynthesizer struct {
	err      error
	calls    int
	gotTrace contractx.Trace
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, query string, trace contractx.Trace) (string, error) {
	f.calls++
	f.gotTrace = trace
	if f.err != nil {
		return "", f.err
	}
	var titles []string
	for _, o := range trace.Successful() {
		if wl, ok := o.Result.(toolx.WatchlistResult); ok {
			for _, m := range wl.Watchlist {
				titles = append(titles, m.Title)
			}
		}
	}
	return "Your watchlist: " + strings.Join(titles, ", "), nil
}

type fakeNotifier struct {
	err     error
	results []contractx.Result
}

func (f *fakeNotifier) Notify(ctx context.Context, result contractx.Result) error {
	f.results = append(f.results, result)
	return f.err
}

type harness struct {
	orch     *Orchestrator
	planner  *fakePlanner
	synth    *fakeSynthesizer
	notifier *fakeNotifier
	state    *statex.Manager
}

func newHarness(t *testing.T, plan contractx.Plan) *harness {
	t.Helper()

	manager, err := statex.NewManager(statex.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	registry, err := toolx.NewRegistry(catalogx.MustLoad(), manager)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	exec, err := executorx.New(registry)
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}

	h := &harness{
		planner:  &fakePlanner{plan: plan},
		synth:    &fakeSynthesizer{},
		notifier: &fakeNotifier{},
		state:    manager,
	}
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.orch, err = New(h.planner, exec, h.synth,
		WithNotifier(h.notifier),
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { return "exec-1" }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func inceptionPlan() contractx.Plan {
	return contractx.Plan{Steps: []contractx.Step{
		{ToolName: toolx.ToolAddToWatchlist, Arguments: map[string]any{"movie_id": "m1"}, Purpose: "add Inception"},
		{ToolName: toolx.ToolGetWatchlist, Arguments: map[string]any{}, Purpose: "show watchlist"},
	}}
}

func TestExecuteAddInceptionThenShowWatchlist(t *testing.T) {
	t.Parallel()

	h := newHarness(t, inceptionPlan())
	res, err := h.orch.Execute(context.Background(), contractx.Request{
		Query: "add Inception to my watchlist then show my watchlist",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(res.Trace) != 2 {
		t.Fatalf("execution steps = %d, want 2", len(res.Trace))
	}
	for i, o := range res.Trace {
		if !o.Success {
			t.Fatalf("step %d failed: %s", i, o.ErrorMessage())
		}
	}
	if res.Status != contractx.ExecutionCompleted {
		t.Fatalf("status = %s, want completed", res.Status)
	}
	if !strings.Contains(res.FinalMessage, "Inception") {
		t.Fatalf("final message = %q", res.FinalMessage)
	}
	if res.ExecutionID != "exec-1" || res.SessionID != statex.DefaultSessionID {
		t.Fatalf("unexpected ids: %q / %q", res.ExecutionID, res.SessionID)
	}
	if len(h.notifier.results) != 1 || h.notifier.results[0].FinalMessage != res.FinalMessage {
		t.Fatalf("notifier results = %#v", h.notifier.results)
	}

	st, err := h.state.Read(context.Background(), statex.DefaultSessionID)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(st.Watchlist) != 1 || st.Watchlist[0] != "m1" {
		t.Fatalf("watchlist = %#v", st.Watchlist)
	}
}

func TestExecutePlannerFailureHasNoTrace(t *testing.T) {
	t.Parallel()

	h := newHarness(t, contractx.Plan{})
	h.planner.err = fmt.Errorf("%w: invalid JSON", contractx.ErrPlanParse)

	res, err := h.orch.Execute(context.Background(), contractx.Request{Query: "show my watchlist"})
	if !errors.Is(err, contractx.ErrPlanParse) {
		t.Fatalf("Execute() error = %v, want ErrPlanParse", err)
	}
	if err.Error() != "execution plan could not be parsed: invalid JSON" {
		t.Fatalf("error text = %q, want the planner error without graph framing", err)
	}
	if len(res.Trace) != 0 {
		t.Fatalf("trace = %#v, want empty", res.Trace)
	}
	if h.synth.calls != 0 || len(h.notifier.results) != 0 {
		t.Fatal("later stages must not run after a planner failure")
	}
}

func TestExecuteSynthesisFailureKeepsTrace(t *testing.T) {
	t.Parallel()

	h := newHarness(t, inceptionPlan())
	h.synth.err = fmt.Errorf("%w: 503", contractx.ErrCompletion)

	res, err := h.orch.Execute(context.Background(), contractx.Request{Query: "add Inception", SessionID: "s1"})
	if !errors.Is(err, contractx.ErrCompletion) {
		t.Fatalf("Execute() error = %v, want ErrCompletion", err)
	}
	if len(res.Trace) != 2 || res.Status != contractx.ExecutionCompleted {
		t.Fatalf("partial result lost: %#v", res)
	}
	if res.Error != err.Error() {
		t.Fatalf("result error = %q, want %q", res.Error, err.Error())
	}
	if len(h.notifier.results) != 1 {
		t.Fatalf("notifications = %d, want 1", len(h.notifier.results))
	}
	published := h.notifier.results[0]
	if len(published.Trace) != 2 || published.Error == "" || published.FinalMessage != "" {
		t.Fatalf("unexpected notification: %#v", published)
	}
}

func TestExecuteRequiredFailureAbortsAndNoRollback(t *testing.T) {
	t.Parallel()

	h := newHarness(t, contractx.Plan{Steps: []contractx.Step{
		{ToolName: toolx.ToolAddToWatchlist, Arguments: map[string]any{"movie_id": "m2"}},
		{ToolName: "bookFlight"},
		{ToolName: toolx.ToolGetWatchlist},
	}})

	res, err := h.orch.Execute(context.Background(), contractx.Request{Query: "add Interstellar and book a flight", SessionID: "s2"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Trace) != 2 || res.Status != contractx.ExecutionAborted {
		t.Fatalf("unexpected trace: status=%s len=%d", res.Status, len(res.Trace))
	}
	if !strings.Contains(res.Trace[1].ErrorMessage(), contractx.ErrUnknownTool.Error()) {
		t.Fatalf("step error = %q", res.Trace[1].ErrorMessage())
	}

	st, err := h.state.Read(context.Background(), "s2")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(st.Watchlist) != 1 {
		t.Fatalf("earlier mutation should be kept, watchlist = %#v", st.Watchlist)
	}
}

func TestExecuteNotifierFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, inceptionPlan())
	h.notifier.err = errors.New("qstash unavailable")

	res, err := h.orch.Execute(context.Background(), contractx.Request{Query: "add Inception"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.FinalMessage == "" {
		t.Fatal("final message missing")
	}
}

func TestExecuteRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	h := newHarness(t, inceptionPlan())
	_, err := h.orch.Execute(context.Background(), contractx.Request{Query: "   "})
	if !errors.Is(err, ErrInvalidQuery) || !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Execute() error = %v, want ErrInvalidQuery", err)
	}
	if h.planner.calls != 0 {
		t.Fatal("planner must not be called for an empty query")
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
