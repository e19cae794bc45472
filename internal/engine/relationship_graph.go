package engine

import (
	"fmt"
	"sort"

	"github.com/scrypster/osintgraph/pkg/types"
)

// edgeKey identifies an undirected edge by node index, lower index first.
type edgeKey struct {
	lo, hi int
}

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b}
}

// RelationshipGraph is an undirected graph of entities. Nodes live in an
// arena indexed by a dense integer; a side map resolves entity ids. The
// arena order is first-seen order and is used for every deterministic
// tie-break.
//
// RelationshipGraph is not safe for concurrent mutation.
type RelationshipGraph struct {
	nodes     []*types.Entity
	index     map[string]int
	adjacency [][]int
	edges     map[edgeKey]*types.Relationship
}

// NewRelationshipGraph creates an empty graph.
func NewRelationshipGraph() *RelationshipGraph {
	return &RelationshipGraph{
		index: make(map[string]int),
		edges: make(map[edgeKey]*types.Relationship),
	}
}

// AddEntity adds a node. Re-adding an id replaces the node's entity and
// keeps its position and edges.
func (g *RelationshipGraph) AddEntity(e *types.Entity) {
	if idx, ok := g.index[e.ID]; ok {
		g.nodes[idx] = e
		return
	}
	g.index[e.ID] = len(g.nodes)
	g.nodes = append(g.nodes, e)
	g.adjacency = append(g.adjacency, nil)
}

// AddRelationship adds an edge between two known entities. Re-adding the
// same unordered pair overwrites the edge.
func (g *RelationshipGraph) AddRelationship(r *types.Relationship) error {
	a, ok := g.index[r.EntityA]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, r.EntityA)
	}
	b, ok := g.index[r.EntityB]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, r.EntityB)
	}
	if a == b {
		return fmt.Errorf("engine: relationship %s links %s to itself", r.ID, r.EntityA)
	}

	key := newEdgeKey(a, b)
	if _, exists := g.edges[key]; !exists {
		g.adjacency[a] = append(g.adjacency[a], b)
		g.adjacency[b] = append(g.adjacency[b], a)
	}
	g.edges[key] = r
	return nil
}

// HasEntity reports whether the graph holds id.
func (g *RelationshipGraph) HasEntity(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Entity returns the node entity for id.
func (g *RelationshipGraph) Entity(id string) (*types.Entity, bool) {
	idx, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[idx], true
}

// Entities returns the node entities in first-seen order.
func (g *RelationshipGraph) Entities() []*types.Entity {
	return append([]*types.Entity(nil), g.nodes...)
}

// Relationship returns the edge between two entities, in either order.
func (g *RelationshipGraph) Relationship(a, b string) (*types.Relationship, bool) {
	ia, okA := g.index[a]
	ib, okB := g.index[b]
	if !okA || !okB {
		return nil, false
	}
	r, ok := g.edges[newEdgeKey(ia, ib)]
	return r, ok
}

// Relationships returns every edge ordered by node position.
func (g *RelationshipGraph) Relationships() []*types.Relationship {
	keys := make([]edgeKey, 0, len(g.edges))
	for k := range g.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lo != keys[j].lo {
			return keys[i].lo < keys[j].lo
		}
		return keys[i].hi < keys[j].hi
	})
	out := make([]*types.Relationship, len(keys))
	for i, k := range keys {
		out[i] = g.edges[k]
	}
	return out
}

// NodeCount returns the number of entities.
func (g *RelationshipGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of relationships.
func (g *RelationshipGraph) EdgeCount() int {
	return len(g.edges)
}

// Degree returns the number of neighbors of id; 0 for unknown ids.
func (g *RelationshipGraph) Degree(id string) int {
	idx, ok := g.index[id]
	if !ok {
		return 0
	}
	return len(g.adjacency[idx])
}

// Neighbors returns the entities adjacent to id with their edges, in the
// order the edges were first added. Unknown ids have no neighbors.
func (g *RelationshipGraph) Neighbors(id string) []Neighbor {
	idx, ok := g.index[id]
	if !ok {
		return []Neighbor{}
	}
	out := make([]Neighbor, 0, len(g.adjacency[idx]))
	for _, n := range g.adjacency[idx] {
		out = append(out, Neighbor{
			EntityID:     g.nodes[n].ID,
			Relationship: g.edges[newEdgeKey(idx, n)],
		})
	}
	return out
}

// Export builds the node-link document in first-seen node order.
func (g *RelationshipGraph) Export() GraphExport {
	doc := GraphExport{
		Nodes: make([]ExportNode, 0, len(g.nodes)),
		Edges: make([]ExportEdge, 0, len(g.edges)),
	}
	for _, e := range g.nodes {
		doc.Nodes = append(doc.Nodes, ExportNode{
			ID:         e.ID,
			Kind:       e.Kind,
			Name:       e.Name,
			Attributes: e.Attributes.Clone(),
			Sources:    append([]string(nil), e.Sources...),
		})
	}
	for _, r := range g.Relationships() {
		doc.Edges = append(doc.Edges, ExportEdge{
			ID:         r.ID,
			Source:     r.EntityA,
			Target:     r.EntityB,
			Kind:       r.Kind,
			Confidence: r.Confidence,
			Evidence:   append([]string(nil), r.Evidence...),
		})
	}
	return doc
}
