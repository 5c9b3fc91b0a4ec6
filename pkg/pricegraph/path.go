package pricegraph

import "errors"

// ErrNoPath is returned when no sequence of pools connects two tokens on the
// chain's current pool set.
var ErrNoPath = errors.New("no conversion path between tokens")

// ShortestPath runs a breadth-first search from start and returns the
// hop-minimal node sequence ending at goal, inclusive of both endpoints.
// Among equal-length paths the first one discovered wins, which is
// determined by adjacency insertion order. If start equals goal the
// zero-hop path [start] is returned.
func (g *Graph) ShortestPath(start, goal string) ([]string, error) {
	if start == goal {
		return []string{start}, nil
	}
	if !g.Has(start) || !g.Has(goal) {
		return nil, ErrNoPath
	}

	type entry struct {
		node string
		path []string
	}

	visited := map[string]struct{}{start: {}}
	queue := []entry{{node: start, path: []string{start}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.node == goal {
			return cur.path, nil
		}

		for _, next := range g.adj[cur.node] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			path := make([]string, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			queue = append(queue, entry{node: next, path: append(path, next)})
		}
	}

	return nil, ErrNoPath
}
