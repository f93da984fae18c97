package graph

// NodeKind classifies a location in the zone graph.
type NodeKind string

const (
	KindSettlement NodeKind = "settlement"
	KindPortal     NodeKind = "portal"
	KindHub        NodeKind = "hub"
)

// Node is a location: a settlement, a portal, or the central hub.
type Node struct {
	ID        string   `json:"id"`
	Kind      NodeKind `json:"kind"`
	Province  string   `json:"province,omitempty"` // empty for the hub
	Name      string   `json:"name"`
	Contested bool     `json:"contested,omitempty"` // PvP gate leading to the hub
}

// Edge is a directed traversal with a non-negative cost.
type Edge struct {
	To     string
	Weight float64
}

// Graph holds the directed zone graph. It is built once (see Build) and never
// mutated afterwards; derived views such as Without return new graphs.
type Graph struct {
	nodes map[string]Node
	order []string // node ids in insertion order, for deterministic iteration
	adj   map[string][]Edge
}

func newGraph() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		adj:   make(map[string][]Edge),
	}
}

func (g *Graph) addNode(n Node) {
	if _, ok := g.nodes[n.ID]; ok {
		return
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

func (g *Graph) addEdge(from, to string, weight float64) {
	g.adj[from] = append(g.adj[from], Edge{To: to, Weight: weight})
}

// addLink adds edges in both directions.
func (g *Graph) addLink(a, b string, weight float64) {
	g.addEdge(a, b, weight)
	g.addEdge(b, a, weight)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.adj {
		n += len(edges)
	}
	return n
}

// SettlementByName resolves a display name to a settlement node by exact match.
// Portals and the hub never resolve. With duplicate names the first inserted wins.
func (g *Graph) SettlementByName(name string) (Node, bool) {
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Kind == KindSettlement && n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Without derives a new graph with every node matching exclude removed, along
// with all edges touching those nodes. g itself is left untouched.
func (g *Graph) Without(exclude func(Node) bool) *Graph {
	out := newGraph()
	for _, id := range g.order {
		if n := g.nodes[id]; !exclude(n) {
			out.addNode(n)
		}
	}
	for _, id := range out.order {
		for _, e := range g.adj[id] {
			if _, ok := out.nodes[e.To]; ok {
				out.addEdge(id, e.To, e.Weight)
			}
		}
	}
	return out
}

// Unsafe reports whether a node is excluded from safe travel: the hub and
// every contested portal.
func Unsafe(n Node) bool {
	return n.Kind == KindHub || (n.Kind == KindPortal && n.Contested)
}
