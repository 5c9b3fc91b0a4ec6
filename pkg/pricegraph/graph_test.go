package pricegraph

import "testing"

func TestBuild_Symmetry(t *testing.T) {
	g := Build([]Pair{
		{Base: "a", Quote: "b", PoolIndex: 0},
		{Base: "b", Quote: "c", PoolIndex: 1},
	})

	cases := [][2]string{{"a", "b"}, {"b", "a"}, {"b", "c"}, {"c", "b"}}
	for _, c := range cases {
		found := false
		for _, n := range g.Neighbors(c[0]) {
			if n == c[1] {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %s to be a direct neighbor of %s", c[1], c[0])
		}
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	g := Build(nil)
	if g.Nodes() != 0 {
		t.Fatalf("expected empty graph, got %d nodes", g.Nodes())
	}
	if _, err := g.ShortestPath("a", "b"); err != ErrNoPath {
		t.Fatalf("expected ErrNoPath on empty graph, got %v", err)
	}
}

func TestBuild_DuplicatePoolsCollapse(t *testing.T) {
	// Two fee tiers for the same pair must yield one adjacency entry.
	g := Build([]Pair{
		{Base: "a", Quote: "b", PoolIndex: 500},
		{Base: "a", Quote: "b", PoolIndex: 3000},
	})
	if n := len(g.Neighbors("a")); n != 1 {
		t.Fatalf("expected 1 neighbor for a, got %d", n)
	}
}
