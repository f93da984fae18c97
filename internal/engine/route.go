package engine

import "pax-advisor/internal/graph"

// RoutePlanner compares travel between settlements over the zone graph.
// The safe graph is derived once at construction; the full graph is never modified.
type RoutePlanner struct {
	full *graph.Graph
	safe *graph.Graph
}

// NewRoutePlanner prepares both the full and the safe view of g.
func NewRoutePlanner(g *graph.Graph) *RoutePlanner {
	return &RoutePlanner{full: g, safe: g.Without(graph.Unsafe)}
}

// Isolated returns the names of settlements the full graph cannot reach from
// its first settlement, in insertion order. A connected world yields nil.
func (p *RoutePlanner) Isolated() []string {
	var settlements []graph.Node
	for _, n := range p.full.Nodes() {
		if n.Kind == graph.KindSettlement {
			settlements = append(settlements, n)
		}
	}
	if len(settlements) == 0 {
		return nil
	}
	reach := p.full.Reachable(settlements[0].ID)
	var out []string
	for _, n := range settlements[1:] {
		if !reach[n.ID] {
			out = append(out, n.Name)
		}
	}
	return out
}

// Graph returns the full zone graph.
func (p *RoutePlanner) Graph() *graph.Graph { return p.full }

// CompareRoutes resolves origin and destination by exact settlement name and
// returns the cheapest route with and without the hub and contested portals.
// Unknown names yield Resolved=false.
func (p *RoutePlanner) CompareRoutes(origin, destination string) RouteComparison {
	out := RouteComparison{Origin: origin, Destination: destination}
	from, ok := p.full.SettlementByName(origin)
	if !ok {
		return out
	}
	to, ok := p.full.SettlementByName(destination)
	if !ok {
		return out
	}
	out.Resolved = true
	out.Unsafe = p.leg(p.full, from.ID, to.ID)
	out.Safe = p.leg(p.safe, from.ID, to.ID)
	return out
}

func (p *RoutePlanner) leg(g *graph.Graph, from, to string) RouteLeg {
	cost, path := g.ShortestPath(from, to)
	leg := RouteLeg{Cost: cost, Path: []string{}, Names: []string{}}
	for _, id := range path {
		leg.Path = append(leg.Path, id)
		name := id
		if n, ok := p.full.Node(id); ok {
			name = n.Name
		}
		leg.Names = append(leg.Names, name)
	}
	return leg
}
