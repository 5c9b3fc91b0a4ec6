// Package pricegraph implements the token-pair graph used to resolve a
// token's price against a chain's reference stablecoin: building the graph
// from the chain's pool set, finding the shortest conversion path between
// two tokens, and composing per-hop exchange rates along that path.
package pricegraph

// Pair is one tradable base/quote market on a chain. PoolIndex discriminates
// between multiple pools for the same token pair (e.g. fee tiers).
type Pair struct {
	Base      string
	Quote     string
	PoolIndex int
}

// Graph is an undirected adjacency graph over token addresses. Nodes are
// created implicitly on first appearance; edges are pools. Multiple pools
// between the same two tokens collapse into a single adjacency entry, since
// any one connecting pool is sufficient for path purposes.
type Graph struct {
	adj map[string][]string
}

// Build constructs a Graph from a list of pairs. Each pair contributes both
// directions, A->B and B->A. Empty input yields an empty graph.
func Build(pairs []Pair) *Graph {
	g := &Graph{adj: make(map[string][]string, len(pairs)*2)}
	seen := make(map[[2]string]struct{}, len(pairs)*2)
	for _, p := range pairs {
		g.addEdge(seen, p.Base, p.Quote)
		g.addEdge(seen, p.Quote, p.Base)
	}
	return g
}

func (g *Graph) addEdge(seen map[[2]string]struct{}, from, to string) {
	key := [2]string{from, to}
	if _, ok := seen[key]; ok {
		return
	}
	seen[key] = struct{}{}
	g.adj[from] = append(g.adj[from], to)
}

// Has reports whether node appears in the graph.
func (g *Graph) Has(node string) bool {
	_, ok := g.adj[node]
	return ok
}

// Neighbors returns the nodes directly connected to node, in insertion order.
// The returned slice is shared with the graph and must not be mutated.
func (g *Graph) Neighbors(node string) []string {
	return g.adj[node]
}

// Nodes returns the number of distinct tokens in the graph.
func (g *Graph) Nodes() int {
	return len(g.adj)
}
