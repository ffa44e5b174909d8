package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	catalogx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	statex "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/state"
)

var ErrMovieNotFound = errors.New("movie not found")

// Registry is the closed set of tools the planner may reference. It is
// immutable after construction; all mutable data lives in the state manager.
type Registry struct {
	movies *catalogx.Catalog
	state  *statex.Manager
	defs   []contractx.ToolDefinition
}

var _ contractx.ToolInvoker = (*Registry)(nil)

func NewRegistry(movies *catalogx.Catalog, state *statex.Manager) (*Registry, error) {
	if movies == nil {
		return nil, errors.New("movie catalog is required")
	}
	if state == nil {
		return nil, errors.New("state manager is required")
	}
	return &Registry{
		movies: movies,
		state:  state,
		defs:   definitions(),
	}, nil
}

func definitions() []contractx.ToolDefinition {
	return []contractx.ToolDefinition{
		{
			Name:        ToolSearchMovies,
			Description: "Search movies by title, genre, director, or actor",
			Params: map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "free text matched against title, genre, director and cast"},
				"limit": {Type: schema.Integer, Desc: "maximum number of results, default 10"},
			},
		},
		{
			Name:        ToolAddToWatchlist,
			Description: "Add a movie to your personal watchlist",
			Params: map[string]*schema.ParameterInfo{
				"movie_id": {Type: schema.String, Desc: "catalog movie id, for example m1", Required: true},
			},
		},
		{
			Name:        ToolRemoveFromWatchlist,
			Description: "Remove a movie from your watchlist",
			Params: map[string]*schema.ParameterInfo{
				"movie_id": {Type: schema.String, Desc: "catalog movie id", Required: true},
			},
		},
		{
			Name:        ToolGetWatchlist,
			Description: "Get your current watchlist",
		},
		{
			Name:        ToolGetRecommendations,
			Description: "Get movie recommendations based on genre",
			Params: map[string]*schema.ParameterInfo{
				"genre": {Type: schema.String, Desc: "genre filter, empty for popular movies"},
				"limit": {Type: schema.Integer, Desc: "maximum number of recommendations, default 5"},
			},
		},
		{
			Name:        ToolCalculateLeave,
			Description: "Calculate remaining leave days after taking time off",
			Params: map[string]*schema.ParameterInfo{
				"days": {Type: schema.Integer, Desc: "number of leave days to take"},
			},
		},
		{
			Name:        ToolGetLeaveBalance,
			Description: "Check your current leave balance",
		},
	}
}

func (r *Registry) Definitions() []contractx.ToolDefinition {
	out := make([]contractx.ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Invoke decodes and runs one tool call for the session. Unknown names fail
// with ErrUnknownTool; every other failure, including a panic inside a
// handler, is reported as ErrToolExecution.
func (r *Registry) Invoke(
	ctx context.Context,
	sessionID string,
	tool string,
	args map[string]any,
) (result any, err error) {
	call, err := Decode(tool, args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: tool=%s: panic: %v", contractx.ErrToolExecution, tool, rec)
		}
	}()

	result, err = r.dispatch(ctx, sessionID, call)
	if err != nil {
		return nil, fmt.Errorf("%w: tool=%s: %v", contractx.ErrToolExecution, tool, err)
	}
	return result, nil
}

func (r *Registry) dispatch(ctx context.Context, sessionID string, call Call) (any, error) {
	switch c := call.(type) {
	case *SearchMoviesCall:
		return r.searchMovies(c), nil
	case *AddToWatchlistCall:
		return r.addToWatchlist(ctx, sessionID, c)
	case *RemoveFromWatchlistCall:
		return r.removeFromWatchlist(ctx, sessionID, c)
	case *GetWatchlistCall:
		return r.getWatchlist(ctx, sessionID)
	case *GetRecommendationsCall:
		return r.getRecommendations(ctx, sessionID, c)
	case *CalculateLeaveCall:
		return r.calculateLeave(ctx, sessionID, c)
	case *GetLeaveBalanceCall:
		return r.getLeaveBalance(ctx, sessionID)
	default:
		return nil, fmt.Errorf("unsupported call %T", call)
	}
}

type SearchMoviesResult struct {
	Success bool             `json:"success"`
	Results []catalogx.Movie `json:"results"`
	Total   int              `json:"total"`
}

type AddToWatchlistResult struct {
	Success        bool   `json:"success"`
	Movie          string `json:"movie"`
	Action         string `json:"action"`
	WatchlistCount int    `json:"watchlist_count"`
}

type RemoveFromWatchlistResult struct {
	Success        bool   `json:"success"`
	Action         string `json:"action"`
	Removed        bool   `json:"removed"`
	WatchlistCount int    `json:"watchlist_count"`
}

type WatchlistResult struct {
	Success   bool             `json:"success"`
	Watchlist []catalogx.Movie `json:"watchlist"`
	Count     int              `json:"count"`
}

type RecommendationsResult struct {
	Success         bool             `json:"success"`
	Recommendations []catalogx.Movie `json:"recommendations"`
	BasedOn         string           `json:"based_on"`
}

type LeaveResult struct {
	Success   bool   `json:"success"`
	Taken     int    `json:"taken"`
	Remaining int    `json:"remaining"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
	Message   string `json:"message"`
}

type LeaveBalanceResult struct {
	Success   bool `json:"success"`
	Taken     int  `json:"taken"`
	Remaining int  `json:"remaining"`
	Total     int  `json:"total"`
}

func (r *Registry) searchMovies(c *SearchMoviesCall) SearchMoviesResult {
	matches := r.movies.Search(c.Query)
	total := len(matches)
	if len(matches) > c.Limit {
		matches = matches[:c.Limit]
	}
	return SearchMoviesResult{Success: true, Results: matches, Total: total}
}

func (r *Registry) addToWatchlist(ctx context.Context, sessionID string, c *AddToWatchlistCall) (AddToWatchlistResult, error) {
	if c.MovieID == "" {
		return AddToWatchlistResult{}, errors.New("movie_id is required")
	}
	movie, ok := r.movies.Find(c.MovieID)
	if !ok {
		return AddToWatchlistResult{}, fmt.Errorf("%w: %s", ErrMovieNotFound, c.MovieID)
	}

	st, err := r.state.Mutate(ctx, sessionID, func(st *statex.SessionState) error {
		st.AddToWatchlist(movie.ID)
		return nil
	})
	if err != nil {
		return AddToWatchlistResult{}, err
	}
	return AddToWatchlistResult{
		Success:        true,
		Movie:          movie.Title,
		Action:         "added_to_watchlist",
		WatchlistCount: len(st.Watchlist),
	}, nil
}

func (r *Registry) removeFromWatchlist(ctx context.Context, sessionID string, c *RemoveFromWatchlistCall) (RemoveFromWatchlistResult, error) {
	var removed bool
	st, err := r.state.Mutate(ctx, sessionID, func(st *statex.SessionState) error {
		removed = st.RemoveFromWatchlist(c.MovieID)
		return nil
	})
	if err != nil {
		return RemoveFromWatchlistResult{}, err
	}
	return RemoveFromWatchlistResult{
		Success:        true,
		Action:         "removed_from_watchlist",
		Removed:        removed,
		WatchlistCount: len(st.Watchlist),
	}, nil
}

func (r *Registry) getWatchlist(ctx context.Context, sessionID string) (WatchlistResult, error) {
	st, err := r.state.Read(ctx, sessionID)
	if err != nil {
		return WatchlistResult{}, err
	}
	movies := make([]catalogx.Movie, 0, len(st.Watchlist))
	for _, id := range st.Watchlist {
		if m, ok := r.movies.Find(id); ok {
			movies = append(movies, m)
		}
	}
	return WatchlistResult{Success: true, Watchlist: movies, Count: len(movies)}, nil
}

func (r *Registry) getRecommendations(ctx context.Context, sessionID string, c *GetRecommendationsCall) (RecommendationsResult, error) {
	st, err := r.state.Read(ctx, sessionID)
	if err != nil {
		return RecommendationsResult{}, err
	}
	basedOn := "popular movies"
	if c.Genre != "" {
		basedOn = "genre: " + strings.ToLower(c.Genre)
	}
	return RecommendationsResult{
		Success:         true,
		Recommendations: r.movies.Recommend(c.Genre, st.WatchlistSet(), c.Limit),
		BasedOn:         basedOn,
	}, nil
}

func (r *Registry) calculateLeave(ctx context.Context, sessionID string, c *CalculateLeaveCall) (LeaveResult, error) {
	var applied int
	st, err := r.state.Mutate(ctx, sessionID, func(st *statex.SessionState) error {
		applied = st.TakeLeave(c.Days)
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}

	out := LeaveResult{
		Success:   true,
		Taken:     st.Leave.Taken,
		Remaining: st.Leave.Remaining,
		Requested: c.Days,
		Applied:   applied,
	}
	if c.Days > 0 {
		out.Message = fmt.Sprintf("After taking %d days, you have %d days remaining", applied, st.Leave.Remaining)
	} else {
		out.Message = fmt.Sprintf("You have %d days remaining out of %d total", st.Leave.Remaining, st.Leave.Total())
	}
	return out, nil
}

func (r *Registry) getLeaveBalance(ctx context.Context, sessionID string) (LeaveBalanceResult, error) {
	st, err := r.state.Read(ctx, sessionID)
	if err != nil {
		return LeaveBalanceResult{}, err
	}
	return LeaveBalanceResult{
		Success:   true,
		Taken:     st.Leave.Taken,
		Remaining: st.Leave.Remaining,
		Total:     st.Leave.Total(),
	}, nil
}
