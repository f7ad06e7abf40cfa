package board

import "fmt"

// EdgeKind tags why two items are connected
type EdgeKind int

const (
	// EdgeLabeling connects a team or topic label to the note it labels
	EdgeLabeling EdgeKind = iota
	// EdgeProximity connects two nearby notes
	EdgeProximity
)

// String returns the edge kind name
func (k EdgeKind) String() string {
	switch k {
	case EdgeLabeling:
		return "labeling"
	case EdgeProximity:
		return "proximity"
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// MarshalText encodes the kind by name
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes an edge kind name
func (k *EdgeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "labeling":
		*k = EdgeLabeling
	case "proximity":
		*k = EdgeProximity
	default:
		return fmt.Errorf("unknown edge kind %q", string(text))
	}
	return nil
}

// Edge is an undirected connection between two item IDs
type Edge struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Kind     EdgeKind `json:"kind"`
	Distance float64  `json:"distance"`
}

type edgeKey struct {
	lo, hi int
}

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b}
}

// Graph is a simple undirected graph over item IDs. Nodes and edges keep
// their insertion order, and edges are never removed.
type Graph struct {
	ids   []string
	index map[string]int
	adj   [][]int
	edges []Edge
	keys  map[edgeKey]int // position in edges
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
		keys:  make(map[edgeKey]int),
	}
}

// AddNode registers id and returns its node index. Adding an existing id
// returns the index it already has.
func (g *Graph) AddNode(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	i := len(g.ids)
	g.ids = append(g.ids, id)
	g.index[id] = i
	g.adj = append(g.adj, nil)
	return i
}

// HasNode reports whether id is a node of the graph
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// AddEdge connects a and b, creating missing nodes. It returns false when
// the edge already exists or would be a self loop.
func (g *Graph) AddEdge(a, b string, kind EdgeKind, distance float64) bool {
	return g.addEdgeIdx(g.AddNode(a), g.AddNode(b), kind, distance)
}

func (g *Graph) addEdgeIdx(a, b int, kind EdgeKind, distance float64) bool {
	if a == b {
		return false
	}
	key := newEdgeKey(a, b)
	if _, ok := g.keys[key]; ok {
		return false
	}
	g.keys[key] = len(g.edges)
	g.edges = append(g.edges, Edge{From: g.ids[a], To: g.ids[b], Kind: kind, Distance: distance})
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
	return true
}

// HasEdge reports whether a and b are directly connected
func (g *Graph) HasEdge(a, b string) bool {
	_, ok := g.EdgeBetween(a, b)
	return ok
}

// EdgeBetween returns the edge connecting a and b
func (g *Graph) EdgeBetween(a, b string) (Edge, bool) {
	ia, okA := g.index[a]
	ib, okB := g.index[b]
	if !okA || !okB {
		return Edge{}, false
	}
	pos, ok := g.keys[newEdgeKey(ia, ib)]
	if !ok {
		return Edge{}, false
	}
	return g.edges[pos], true
}

// Degree returns the number of edges incident to id (0 for unknown ids)
func (g *Graph) Degree(id string) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	return len(g.adj[i])
}

func (g *Graph) degreeIdx(i int) int {
	return len(g.adj[i])
}

// Neighbors returns the IDs adjacent to id in edge insertion order
func (g *Graph) Neighbors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, len(g.adj[i]))
	for k, j := range g.adj[i] {
		out[k] = g.ids[j]
	}
	return out
}

// Nodes returns all node IDs in insertion order
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Edges returns all edges in insertion order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.ids)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}
