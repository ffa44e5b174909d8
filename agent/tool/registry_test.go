package tool

import (
	"context"
	"errors"
	"testing"

	catalogx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	statex "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/state"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	manager, err := statex.NewManager(statex.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	reg, err := NewRegistry(catalogx.MustLoad(), manager)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func TestRegistryDispatchesEveryDefinition(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	args := map[string]map[string]any{
		ToolAddToWatchlist:      {"movie_id": "m1"},
		ToolRemoveFromWatchlist: {"movie_id": "m1"},
	}
	for _, def := range reg.Definitions() {
		if _, err := reg.Invoke(context.Background(), "s", def.Name, args[def.Name]); err != nil {
			t.Fatalf("Invoke(%s) error = %v", def.Name, err)
		}
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	_, err := reg.Invoke(context.Background(), "s", "bookFlight", nil)
	if !errors.Is(err, contractx.ErrUnknownTool) {
		t.Fatalf("Invoke() error = %v, want ErrUnknownTool", err)
	}
}

func TestAddToWatchlistIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		out, err := reg.Invoke(ctx, "s", ToolAddToWatchlist, map[string]any{"movie_id": "m1"})
		if err != nil {
			t.Fatalf("Invoke() #%d error = %v", i, err)
		}
		res := out.(AddToWatchlistResult)
		if !res.Success || res.WatchlistCount != 1 || res.Movie != "Inception" {
			t.Fatalf("unexpected result #%d: %#v", i, res)
		}
	}

	out, err := reg.Invoke(ctx, "s", ToolGetWatchlist, nil)
	if err != nil {
		t.Fatalf("getWatchlist error = %v", err)
	}
	if wl := out.(WatchlistResult); wl.Count != 1 || wl.Watchlist[0].ID != "m1" {
		t.Fatalf("unexpected watchlist: %#v", wl)
	}
}

func TestAddToWatchlistUnknownMovieFails(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	for _, args := range []map[string]any{{"movie_id": "m99"}, nil} {
		_, err := reg.Invoke(context.Background(), "s", ToolAddToWatchlist, args)
		if !errors.Is(err, contractx.ErrToolExecution) {
			t.Fatalf("Invoke(%v) error = %v, want ErrToolExecution", args, err)
		}
	}
}

func TestRemoveFromWatchlistReportsRemoved(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.Invoke(ctx, "s", ToolAddToWatchlist, map[string]any{"movie_id": "m2"}); err != nil {
		t.Fatalf("add error = %v", err)
	}

	out, err := reg.Invoke(ctx, "s", ToolRemoveFromWatchlist, map[string]any{"movie_id": "m2"})
	if err != nil {
		t.Fatalf("remove error = %v", err)
	}
	if res := out.(RemoveFromWatchlistResult); !res.Success || !res.Removed || res.WatchlistCount != 0 {
		t.Fatalf("unexpected first remove: %#v", res)
	}

	out, err = reg.Invoke(ctx, "s", ToolRemoveFromWatchlist, map[string]any{"movie_id": "m2"})
	if err != nil {
		t.Fatalf("remove error = %v", err)
	}
	if res := out.(RemoveFromWatchlistResult); !res.Success || res.Removed {
		t.Fatalf("unexpected second remove: %#v", res)
	}
}

func TestCalculateLeaveClampsRemaining(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	out, err := reg.Invoke(context.Background(), "s", ToolCalculateLeave, map[string]any{"days": 20})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	res := out.(LeaveResult)
	if res.Remaining != 0 || res.Taken != 12 || res.Applied != 12 || res.Requested != 20 {
		t.Fatalf("unexpected leave result: %#v", res)
	}

	out, err = reg.Invoke(context.Background(), "s", ToolGetLeaveBalance, nil)
	if err != nil {
		t.Fatalf("getLeaveBalance error = %v", err)
	}
	if bal := out.(LeaveBalanceResult); bal.Total != 12 || bal.Remaining != 0 {
		t.Fatalf("unexpected balance: %#v", bal)
	}
}

func TestCalculateLeaveAcceptsLooseArguments(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	out, err := reg.Invoke(context.Background(), "s", ToolCalculateLeave, map[string]any{"days": "3"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res := out.(LeaveResult); res.Taken != 3 || res.Remaining != 9 {
		t.Fatalf("unexpected leave result: %#v", res)
	}

	out, err = reg.Invoke(context.Background(), "other", ToolCalculateLeave, map[string]any{"days": -4})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res := out.(LeaveResult); res.Taken != 0 || res.Remaining != 12 || res.Message != "You have 12 days remaining out of 12 total" {
		t.Fatalf("unexpected leave result: %#v", res)
	}
}

func TestInvalidArgumentTypeIsToolExecutionError(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	_, err := reg.Invoke(context.Background(), "s", ToolSearchMovies, map[string]any{"limit": map[string]any{"n": 1}})
	if !errors.Is(err, contractx.ErrToolExecution) {
		t.Fatalf("Invoke() error = %v, want ErrToolExecution", err)
	}
}

func TestSearchAndRecommendationsAreReadOnly(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	out, err := reg.Invoke(ctx, "s", ToolSearchMovies, map[string]any{"query": "nolan", "limit": 2})
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if res := out.(SearchMoviesResult); res.Total != 3 || len(res.Results) != 2 {
		t.Fatalf("unexpected search: %#v", res)
	}

	if _, err := reg.Invoke(ctx, "s", ToolAddToWatchlist, map[string]any{"movie_id": "m3"}); err != nil {
		t.Fatalf("add error = %v", err)
	}
	out, err = reg.Invoke(ctx, "s", ToolGetRecommendations, nil)
	if err != nil {
		t.Fatalf("recommend error = %v", err)
	}
	rec := out.(RecommendationsResult)
	if rec.BasedOn != "popular movies" || len(rec.Recommendations) != 4 || rec.Recommendations[0].ID != "m1" {
		t.Fatalf("unexpected recommendations: %#v", rec)
	}

	out, err = reg.Invoke(ctx, "s", ToolGetWatchlist, nil)
	if err != nil {
		t.Fatalf("getWatchlist error = %v", err)
	}
	if wl := out.(WatchlistResult); wl.Count != 1 {
		t.Fatalf("watchlist changed by read-only tools: %#v", wl)
	}
}

func TestDefinitionsReturnsCopy(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	defs := reg.Definitions()
	defs[0].Name = "mutated"
	if reg.Definitions()[0].Name != ToolSearchMovies {
		t.Fatal("Definitions() exposed internal slice")
	}
	if got := defs[1].Signature(); got != "addToWatchlist({movie_id: string})" {
		t.Fatalf("Signature() = %q", got)
	}
}
