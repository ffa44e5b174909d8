package tool

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
)

const (
	ToolSearchMovies        = "searchMovies"
	ToolAddToWatchlist      = "addToWatchlist"
	ToolRemoveFromWatchlist = "removeFromWatchlist"
	ToolGetWatchlist        = "getWatchlist"
	ToolGetRecommendations  = "getRecommendations"
	ToolCalculateLeave      = "calculateLeave"
	ToolGetLeaveBalance     = "getLeaveBalance"
)

const (
	defaultSearchLimit    = 10
	defaultRecommendLimit = 5
)

// Call is a decoded, normalized tool invocation. The set of implementations
// is closed: only this package can add one.
type Call interface {
	ToolName() string
	normalize()
}

type SearchMoviesCall struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type AddToWatchlistCall struct {
	MovieID string `json:"movie_id"`
}

type RemoveFromWatchlistCall struct {
	MovieID string `json:"movie_id"`
}

type GetWatchlistCall struct{}

type GetRecommendationsCall struct {
	Genre string `json:"genre"`
	Limit int    `json:"limit"`
}

type CalculateLeaveCall struct {
	Days int `json:"days"`
}

type GetLeaveBalanceCall struct{}

func (SearchMoviesCall) ToolName() string        { return ToolSearchMovies }
func (AddToWatchlistCall) ToolName() string      { return ToolAddToWatchlist }
func (RemoveFromWatchlistCall) ToolName() string { return ToolRemoveFromWatchlist }
func (GetWatchlistCall) ToolName() string        { return ToolGetWatchlist }
func (GetRecommendationsCall) ToolName() string  { return ToolGetRecommendations }
func (CalculateLeaveCall) ToolName() string      { return ToolCalculateLeave }
func (GetLeaveBalanceCall) ToolName() string     { return ToolGetLeaveBalance }

func (c *SearchMoviesCall) normalize() {
	c.Query = strings.TrimSpace(c.Query)
	if c.Limit <= 0 {
		c.Limit = defaultSearchLimit
	}
}

func (c *AddToWatchlistCall) normalize()      { c.MovieID = strings.TrimSpace(c.MovieID) }
func (c *RemoveFromWatchlistCall) normalize() { c.MovieID = strings.TrimSpace(c.MovieID) }
func (*GetWatchlistCall) normalize()          {}
func (*GetLeaveBalanceCall) normalize()       {}

func (c *GetRecommendationsCall) normalize() {
	c.Genre = strings.TrimSpace(c.Genre)
	if c.Limit <= 0 {
		c.Limit = defaultRecommendLimit
	}
}

func (c *CalculateLeaveCall) normalize() {
	if c.Days < 0 {
		c.Days = 0
	}
}

// Decode resolves a wire tool name and loosely typed arguments into a Call.
// Missing arguments take the declared defaults; arguments that cannot be
// coerced to the declared type fail with ErrToolExecution.
func Decode(name string, args map[string]any) (Call, error) {
	var call Call
	switch strings.TrimSpace(name) {
	case ToolSearchMovies:
		call = &SearchMoviesCall{}
	case ToolAddToWatchlist:
		call = &AddToWatchlistCall{}
	case ToolRemoveFromWatchlist:
		call = &RemoveFromWatchlistCall{}
	case ToolGetWatchlist:
		call = &GetWatchlistCall{}
	case ToolGetRecommendations:
		call = &GetRecommendationsCall{}
	case ToolCalculateLeave:
		call = &CalculateLeaveCall{}
	case ToolGetLeaveBalance:
		call = &GetLeaveBalanceCall{}
	default:
		return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)
	}

	if err := decodeArgs(args, call); err != nil {
		return nil, fmt.Errorf("%w: tool=%s: invalid arguments: %v", contractx.ErrToolExecution, name, err)
	}
	call.normalize()
	return call, nil
}

func decodeArgs(args map[string]any, out any) error {
	if len(args) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}
