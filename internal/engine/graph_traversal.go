package engine

import (
	"math"
	"sort"

	"github.com/scrypster/osintgraph/pkg/types"
)

// ShortestPath finds the path with the fewest hops between two entities
// using breadth-first search. Neighbors are expanded in edge insertion
// order, so equal-length paths resolve deterministically. It reports false
// when either entity is unknown or no path exists.
func (g *RelationshipGraph) ShortestPath(from, to string) (PathResult, bool) {
	start, ok := g.index[from]
	if !ok {
		return PathResult{}, false
	}
	target, ok := g.index[to]
	if !ok {
		return PathResult{}, false
	}
	if start == target {
		return PathResult{Path: []string{from}, Distance: 0, Confidence: 100}, true
	}

	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}
	parent[start] = start

	queue := []int{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[current] {
			if parent[next] != -1 {
				continue
			}
			parent[next] = current
			if next == target {
				return g.buildPath(parent, start, target), true
			}
			queue = append(queue, next)
		}
	}
	return PathResult{}, false
}

// buildPath walks parent links back from target.
func (g *RelationshipGraph) buildPath(parent []int, start, target int) PathResult {
	var reversed []int
	for n := target; n != start; n = parent[n] {
		reversed = append(reversed, n)
	}
	reversed = append(reversed, start)

	result := PathResult{
		Path:       make([]string, 0, len(reversed)),
		Distance:   len(reversed) - 1,
		Confidence: 100,
	}
	for i := len(reversed) - 1; i >= 0; i-- {
		result.Path = append(result.Path, g.nodes[reversed[i]].ID)
		if i > 0 {
			edge := g.edges[newEdgeKey(reversed[i], reversed[i-1])]
			result.Confidence = math.Min(result.Confidence, edge.Confidence)
		}
	}
	return result
}

// components returns the connected components of the subgraph that keeps
// only edges with confidence >= minConfidence. Members are node indexes in
// arena order; components are ordered by their first member.
func (g *RelationshipGraph) components(minConfidence float64) [][]int {
	seen := make([]bool, len(g.nodes))
	var out [][]int

	for root := range g.nodes {
		if seen[root] {
			continue
		}
		seen[root] = true
		members := []int{root}
		queue := []int{root}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, next := range g.adjacency[current] {
				if seen[next] || g.edges[newEdgeKey(current, next)].Confidence < minConfidence {
					continue
				}
				seen[next] = true
				members = append(members, next)
				queue = append(queue, next)
			}
		}
		sort.Ints(members)
		out = append(out, members)
	}
	return out
}

// FindClusters returns the connected components with at least minSize
// members once edges below minConfidence are dropped. Members are listed in
// first-seen order.
func (g *RelationshipGraph) FindClusters(minConfidence float64, minSize int) [][]string {
	clusters := [][]string{}
	for _, members := range g.components(minConfidence) {
		if len(members) < minSize {
			continue
		}
		ids := make([]string, len(members))
		for i, idx := range members {
			ids[i] = g.nodes[idx].ID
		}
		clusters = append(clusters, ids)
	}
	return clusters
}

// Statistics summarises the graph. Confidence bounds are 0 when there are
// no edges.
func (g *RelationshipGraph) Statistics() GraphStatistics {
	n, e := len(g.nodes), len(g.edges)
	stats := GraphStatistics{
		Nodes:      n,
		Edges:      e,
		Components: len(g.components(math.Inf(-1))),
	}
	if n > 0 {
		stats.AverageDegree = 2 * float64(e) / float64(n)
	}
	if n > 1 {
		stats.Density = 2 * float64(e) / (float64(n) * float64(n-1))
	}

	first := true
	for _, r := range g.edges {
		if first {
			stats.MinConfidence, stats.MaxConfidence = r.Confidence, r.Confidence
			first = false
			continue
		}
		stats.MinConfidence = math.Min(stats.MinConfidence, r.Confidence)
		stats.MaxConfidence = math.Max(stats.MaxConfidence, r.Confidence)
	}
	return stats
}

// CentralEntities ranks entities by degree centrality, highest first, ties
// broken by entity id. topN <= 0 returns every entity.
func (g *RelationshipGraph) CentralEntities(topN int) []Centrality {
	out := make([]Centrality, 0, len(g.nodes))
	for idx, e := range g.nodes {
		c := Centrality{EntityID: e.ID, Degree: len(g.adjacency[idx])}
		if len(g.nodes) > 1 {
			c.Score = float64(c.Degree) / float64(len(g.nodes)-1)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Degree != out[j].Degree {
			return out[i].Degree > out[j].Degree
		}
		return out[i].EntityID < out[j].EntityID
	})
	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out
}

// Bridges returns the edges whose removal would increase the number of
// connected components, ordered by node position.
func (g *RelationshipGraph) Bridges() []*types.Relationship {
	n := len(g.nodes)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}

	var found []edgeKey
	timer := 0
	var visit func(u, parent int)
	visit = func(u, parent int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, v := range g.adjacency[u] {
			if v == parent {
				continue
			}
			if disc[v] == -1 {
				visit(v, u)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if low[v] > disc[u] {
					found = append(found, newEdgeKey(u, v))
				}
			} else if disc[v] < low[u] {
				low[u] = disc[v]
			}
		}
	}
	for u := 0; u < n; u++ {
		if disc[u] == -1 {
			visit(u, -1)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].lo != found[j].lo {
			return found[i].lo < found[j].lo
		}
		return found[i].hi < found[j].hi
	})
	out := make([]*types.Relationship, len(found))
	for i, k := range found {
		out[i] = g.edges[k]
	}
	return out
}
