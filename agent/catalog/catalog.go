package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed movies.json
var moviesRaw []byte

type Movie struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Genre      string   `json:"genre"`
	Year       int      `json:"year"`
	Rating     float64  `json:"rating"`
	Director   string   `json:"director"`
	Cast       []string `json:"cast"`
	RuntimeMin int      `json:"runtime_min"`
}

// Catalog is a read-only movie dataset. It is never mutated after Load.
type Catalog struct {
	movies []Movie
	byID   map[string]int
}

// Load parses the embedded dataset.
func Load() (*Catalog, error) {
	var movies []Movie
	if err := json.Unmarshal(moviesRaw, &movies); err != nil {
		return nil, fmt.Errorf("decode movie catalog: %w", err)
	}
	return New(movies)
}

func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func New(movies []Movie) (*Catalog, error) {
	c := &Catalog{
		movies: make([]Movie, 0, len(movies)),
		byID:   make(map[string]int, len(movies)),
	}
	for _, m := range movies {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("movie %q has empty id", m.Title)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate movie id %q", id)
		}
		c.byID[id] = len(c.movies)
		c.movies = append(c.movies, m)
	}
	return c, nil
}

func (c *Catalog) Find(id string) (Movie, bool) {
	idx, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Movie{}, false
	}
	return c.movies[idx], true
}

// Search matches the query case-insensitively against title, genre,
// director and cast. An empty query matches every movie.
func (c *Catalog) Search(query string) []Movie {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Movie, 0, len(c.movies))
	for _, m := range c.movies {
		if q == "" || m.matches(q) {
			out = append(out, m)
		}
	}
	return out
}

// Recommend returns movies whose genre contains genre (all when empty),
// skipping excluded ids, highest rated first.
func (c *Catalog) Recommend(genre string, exclude map[string]struct{}, limit int) []Movie {
	g := strings.ToLower(strings.TrimSpace(genre))
	out := make([]Movie, 0, len(c.movies))
	for _, m := range c.movies {
		if g != "" && !strings.Contains(strings.ToLower(m.Genre), g) {
			continue
		}
		if _, skip := exclude[m.ID]; skip {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rating > out[j].Rating
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m Movie) matches(q string) bool {
	if strings.Contains(strings.ToLower(m.Title), q) ||
		strings.Contains(strings.ToLower(m.Genre), q) ||
		strings.Contains(strings.ToLower(m.Director), q) {
		return true
	}
	for _, actor := range m.Cast {
		if strings.Contains(strings.ToLower(actor), q) {
			return true
		}
	}
	return false
}
