package catalog

import "testing"

func TestLoadEmbeddedCatalog(t *testing.T) {
	t.Parallel()

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	m, ok := c.Find("m1")
	if !ok {
		t.Fatal("expected m1 to exist")
	}
	if m.Title != "Inception" {
		t.Fatalf("unexpected title: %s", m.Title)
	}
}

func TestSearchMatchesCastCaseInsensitive(t *testing.T) {
	t.Parallel()

	c := MustLoad()
	got := c.Search("heath")
	if len(got) != 1 || got[0].ID != "m3" {
		t.Fatalf("unexpected search result: %#v", got)
	}
	if all := c.Search("  "); len(all) != 5 {
		t.Fatalf("empty query should match everything, got %d", len(all))
	}
}

func TestRecommendExcludesAndSortsByRating(t *testing.T) {
	t.Parallel()

	c := MustLoad()
	got := c.Recommend("sci", map[string]struct{}{"m1": {}}, 5)
	if len(got) != 1 || got[0].ID != "m2" {
		t.Fatalf("unexpected recommendations: %#v", got)
	}

	top := c.Recommend("", nil, 2)
	if len(top) != 2 || top[0].ID != "m3" || top[1].ID != "m1" {
		t.Fatalf("unexpected top recommendations: %#v", top)
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	_, err := New([]Movie{{ID: "a"}, {ID: "a"}})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
}
