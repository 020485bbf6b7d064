// Package graph builds and holds the directed threat-intelligence knowledge
// graph: technique, malware, and tool nodes joined by typed relationship
// edges.
//
// A graph is constructed by a single writer and treated as read-only by
// queries afterwards; the structures themselves do not synchronize access.
package graph

// NodeKind tags the entity category of a node.
type NodeKind string

const (
	NodeKindTechnique NodeKind = "technique"
	NodeKindMalware   NodeKind = "malware"
	NodeKindTool      NodeKind = "tool"
)

// DefaultRelationship is used when a relationship object carries no
// relationship_type.
const DefaultRelationship = "related-to"

// Node is an entity in the knowledge graph. Embedding is nil until an index
// build attaches a vector to the node.
type Node struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Kind      NodeKind  `json:"kind"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Edge is a directed, typed relationship between two node identity keys.
// Endpoints are bare key references; they are not required to resolve to
// nodes present in the graph.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// Neighbor is one hop of a structural query: the adjacent node key and the
// relationship label on the connecting edge.
type Neighbor struct {
	Key          string `json:"key"`
	Relationship string `json:"relationship"`
}

type edgeKey struct {
	source string
	target string
}

// Graph is a directed knowledge graph with deterministic node enumeration.
// Nodes enumerate in first-insertion order; the embedding index build
// depends on this order staying fixed.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string

	edges     map[edgeKey]*Edge
	edgeOrder []edgeKey

	outgoing map[string][]edgeKey
	incoming map[string][]edgeKey
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[edgeKey]*Edge),
		outgoing: make(map[string][]edgeKey),
		incoming: make(map[string][]edgeKey),
	}
}

// UpsertNode inserts a node or overwrites the label and kind of an existing
// node with the same key. Re-inserting never duplicates and never changes
// the enumeration position established by the first insert.
func (g *Graph) UpsertNode(key, label string, kind NodeKind) *Node {
	if existing, ok := g.nodes[key]; ok {
		existing.Label = label
		existing.Kind = kind
		return existing
	}
	node := &Node{Key: key, Label: label, Kind: kind}
	g.nodes[key] = node
	g.nodeOrder = append(g.nodeOrder, key)
	return node
}

// UpsertEdge inserts a directed edge or overwrites the relationship label of
// an existing edge with the same endpoints. Endpoints are recorded as-is;
// dangling references are allowed.
func (g *Graph) UpsertEdge(source, target, relationship string) *Edge {
	if relationship == "" {
		relationship = DefaultRelationship
	}
	key := edgeKey{source: source, target: target}
	if existing, ok := g.edges[key]; ok {
		existing.Relationship = relationship
		return existing
	}
	edge := &Edge{Source: source, Target: target, Relationship: relationship}
	g.edges[key] = edge
	g.edgeOrder = append(g.edgeOrder, key)
	g.outgoing[source] = append(g.outgoing[source], key)
	g.incoming[target] = append(g.incoming[target], key)
	return edge
}

// Node returns the node with the given key, if present.
func (g *Graph) Node(key string) (*Node, bool) {
	node, ok := g.nodes[key]
	return node, ok
}

// Nodes returns all nodes in first-insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, key := range g.nodeOrder {
		out = append(out, g.nodes[key])
	}
	return out
}

// NodeKeys returns all node keys in first-insertion order.
func (g *Graph) NodeKeys() []string {
	out := make([]string, len(g.nodeOrder))
	copy(out, g.nodeOrder)
	return out
}

// Edges returns all edges in first-insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		out = append(out, g.edges[key])
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Successors returns the direct successors of the given key with the
// relationship labels on the connecting edges. An unknown key yields an
// empty result.
func (g *Graph) Successors(key string) []Neighbor {
	keys := g.outgoing[key]
	out := make([]Neighbor, 0, len(keys))
	for _, ek := range keys {
		out = append(out, Neighbor{Key: ek.target, Relationship: g.edges[ek].Relationship})
	}
	return out
}

// Predecessors returns the direct predecessors of the given key with the
// relationship labels on the connecting edges. An unknown key yields an
// empty result.
func (g *Graph) Predecessors(key string) []Neighbor {
	keys := g.incoming[key]
	out := make([]Neighbor, 0, len(keys))
	for _, ek := range keys {
		out = append(out, Neighbor{Key: ek.source, Relationship: g.edges[ek].Relationship})
	}
	return out
}
