package graph

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed topology.yaml
var defaultTopology []byte

// Topology is the static description the zone graph is built from.
type Topology struct {
	Hub           string     `yaml:"hub"`
	Weights       Weights    `yaml:"weights"`
	Provinces     []Province `yaml:"provinces"`
	FrontierLinks []Link     `yaml:"frontier_links"`
}

// Weights are the traversal costs per edge class.
type Weights struct {
	SettlementPortal float64 `yaml:"settlement_portal"`
	Frontier         float64 `yaml:"frontier"`
	Contested        float64 `yaml:"contested"`
}

// Province groups settlements with the portals leaving it.
type Province struct {
	Name             string   `yaml:"name"`
	Settlements      []string `yaml:"settlements"`
	FrontierPortals  []string `yaml:"frontier_portals"`
	ContestedPortals []string `yaml:"contested_portals"`
}

// PortalRef names a portal within a province.
type PortalRef struct {
	Province string `yaml:"province"`
	Portal   string `yaml:"portal"`
}

// Link is a two-way frontier connection between portals of different provinces.
type Link struct {
	From PortalRef `yaml:"from"`
	To   PortalRef `yaml:"to"`
}

// SettlementID is the node id of a settlement.
func SettlementID(province, name string) string { return province + "_" + name }

// PortalID is the node id of a portal.
func PortalID(province, name string) string { return province + "_Portal_" + name }

// DefaultTopology returns the built-in world layout.
func DefaultTopology() (Topology, error) {
	return LoadTopology(bytes.NewReader(defaultTopology))
}

// LoadTopology decodes a YAML topology description.
func LoadTopology(r io.Reader) (Topology, error) {
	var t Topology
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Topology{}, fmt.Errorf("decode topology: %w", err)
	}
	return t, nil
}

// Build constructs the zone graph:
//   - every settlement is linked both ways to every portal of its province;
//   - frontier links join portals of neighbouring provinces;
//   - every contested portal is linked both ways to the hub.
func Build(t Topology) (*Graph, error) {
	if t.Weights.SettlementPortal < 0 || t.Weights.Frontier < 0 || t.Weights.Contested < 0 {
		return nil, fmt.Errorf("topology weights must be non-negative: %+v", t.Weights)
	}
	g := newGraph()
	hasContested := false
	for _, p := range t.Provinces {
		hasContested = hasContested || len(p.ContestedPortals) > 0
	}
	if hasContested {
		if t.Hub == "" {
			return nil, fmt.Errorf("topology has contested portals but no hub")
		}
		g.addNode(Node{ID: t.Hub, Kind: KindHub, Name: t.Hub})
	}

	for _, p := range t.Provinces {
		if p.Name == "" {
			return nil, fmt.Errorf("topology province without name")
		}
		for _, s := range p.Settlements {
			g.addNode(Node{ID: SettlementID(p.Name, s), Kind: KindSettlement, Province: p.Name, Name: s})
		}
		var portals []string
		for _, name := range p.FrontierPortals {
			id := PortalID(p.Name, name)
			g.addNode(Node{ID: id, Kind: KindPortal, Province: p.Name, Name: name})
			portals = append(portals, id)
		}
		for _, name := range p.ContestedPortals {
			id := PortalID(p.Name, name)
			g.addNode(Node{ID: id, Kind: KindPortal, Province: p.Name, Name: name, Contested: true})
			portals = append(portals, id)
		}
		for _, s := range p.Settlements {
			for _, portal := range portals {
				g.addLink(SettlementID(p.Name, s), portal, t.Weights.SettlementPortal)
			}
		}
		for _, name := range p.ContestedPortals {
			g.addLink(PortalID(p.Name, name), t.Hub, t.Weights.Contested)
		}
	}

	for _, l := range t.FrontierLinks {
		a := PortalID(l.From.Province, l.From.Portal)
		b := PortalID(l.To.Province, l.To.Portal)
		if _, ok := g.Node(a); !ok {
			return nil, fmt.Errorf("frontier link: unknown portal %q", a)
		}
		if _, ok := g.Node(b); !ok {
			return nil, fmt.Errorf("frontier link: unknown portal %q", b)
		}
		g.addLink(a, b, t.Weights.Frontier)
	}
	return g, nil
}

// Default builds the graph from the built-in topology.
func Default() (*Graph, error) {
	t, err := DefaultTopology()
	if err != nil {
		return nil, err
	}
	return Build(t)
}
