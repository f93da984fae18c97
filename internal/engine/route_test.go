package engine

import (
	"testing"

	"pax-advisor/internal/graph"
)

func hubOnlyPlanner(t *testing.T) *RoutePlanner {
	t.Helper()
	g, err := graph.Build(graph.Topology{
		Hub:     "Lyonesse_Hub",
		Weights: graph.Weights{SettlementPortal: 20},
		Provinces: []graph.Province{
			{Name: "Kerys", Settlements: []string{"Aven"}, ContestedPortals: []string{"Parzival Gate"}},
			{Name: "Merrie", Settlements: []string{"Ham"}, ContestedPortals: []string{"Cormac Gate"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return NewRoutePlanner(g)
}

func TestCompareRoutes_HubOnlyScenario(t *testing.T) {
	p := hubOnlyPlanner(t)
	cmp := p.CompareRoutes("Aven", "Ham")
	if !cmp.Resolved {
		t.Fatal("Resolved = false")
	}
	if cmp.Safe.Cost != graph.NoPath || len(cmp.Safe.Path) != 0 {
		t.Errorf("safe = %+v, want no path", cmp.Safe)
	}
	if cmp.Unsafe.Cost != 40 {
		t.Errorf("unsafe cost = %v, want 40", cmp.Unsafe.Cost)
	}
	foundHub := false
	for _, id := range cmp.Unsafe.Path {
		if id == "Lyonesse_Hub" {
			foundHub = true
		}
	}
	if !foundHub {
		t.Errorf("unsafe path %v does not pass the hub", cmp.Unsafe.Path)
	}
	if cmp.Unsafe.Names[0] != "Aven" || cmp.Unsafe.Names[len(cmp.Unsafe.Names)-1] != "Ham" {
		t.Errorf("names = %v", cmp.Unsafe.Names)
	}
	// Planning again must not have been affected by the safe derivation.
	if again := p.CompareRoutes("Aven", "Ham"); again.Unsafe.Cost != 40 {
		t.Errorf("second unsafe cost = %v, want 40", again.Unsafe.Cost)
	}
}

func TestCompareRoutes_Unresolved(t *testing.T) {
	g, _ := graph.Default()
	p := NewRoutePlanner(g)
	for _, tt := range []struct{ from, to string }{
		{"Atlantis", "Aven"},
		{"Aven", "Atlantis"},
		{"Aven", "Parzival Gate"},
		{"Lyonesse_Hub", "Aven"},
	} {
		if cmp := p.CompareRoutes(tt.from, tt.to); cmp.Resolved {
			t.Errorf("%s -> %s resolved, want unresolved", tt.from, tt.to)
		}
	}
}

func TestCompareRoutes_SameNodeAndSafeNotCheaper(t *testing.T) {
	g, _ := graph.Default()
	p := NewRoutePlanner(g)

	same := p.CompareRoutes("Aven", "Aven")
	if same.Safe.Cost != 0 || len(same.Safe.Path) != 1 || same.Unsafe.Cost != 0 {
		t.Errorf("same node = %+v", same)
	}

	names := []string{"Aven", "Jura", "Ham", "Egeb", "Sanctum", "Wittan"}
	for _, from := range names {
		for _, to := range names {
			cmp := p.CompareRoutes(from, to)
			if cmp.Safe.Cost >= 0 && cmp.Unsafe.Cost >= 0 && cmp.Safe.Cost < cmp.Unsafe.Cost {
				t.Errorf("%s -> %s: safe %v < unsafe %v", from, to, cmp.Safe.Cost, cmp.Unsafe.Cost)
			}
			if cmp.Safe.Cost == graph.NoPath && cmp.Unsafe.Cost == graph.NoPath {
				t.Errorf("%s -> %s: default world should be connected", from, to)
			}
		}
	}
}

func TestIsolated(t *testing.T) {
	if got := hubOnlyPlanner(t).Isolated(); got != nil {
		t.Errorf("hub-only Isolated = %v, want none", got)
	}
	g, _ := graph.Default()
	if got := NewRoutePlanner(g).Isolated(); got != nil {
		t.Errorf("default Isolated = %v, want none", got)
	}

	g, err := graph.Build(graph.Topology{
		Hub:     "Lyonesse_Hub",
		Weights: graph.Weights{SettlementPortal: 20},
		Provinces: []graph.Province{
			{Name: "Kerys", Settlements: []string{"Aven"}, ContestedPortals: []string{"Parzival Gate"}},
			{Name: "Merrie", Settlements: []string{"Ham"}, ContestedPortals: []string{"Cormac Gate"}},
			{Name: "Ulaid", Settlements: []string{"Mora", "Dun"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := NewRoutePlanner(g).Isolated()
	if len(got) != 2 || got[0] != "Mora" || got[1] != "Dun" {
		t.Errorf("Isolated = %v, want [Mora Dun]", got)
	}
}
