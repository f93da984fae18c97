package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pax-advisor/internal/catalog"
	"pax-advisor/internal/graph"
	"pax-advisor/internal/market"
	"pax-advisor/internal/snapshot"
)

type fakeSource struct {
	snaps   []market.Snapshot
	latest  *market.Snapshot
	skipped []snapshot.SkippedFile
	err     error
}

func (f *fakeSource) Latest(ctx context.Context) (market.Snapshot, bool, error) {
	if f.err != nil {
		return market.Snapshot{}, false, f.err
	}
	if f.latest != nil {
		return *f.latest, true, nil
	}
	if len(f.snaps) == 0 {
		return market.Snapshot{}, false, nil
	}
	return f.snaps[len(f.snaps)-1], true, nil
}

func (f *fakeSource) LastN(ctx context.Context, n int) ([]market.Snapshot, snapshot.LoadReport, error) {
	rep := snapshot.LoadReport{Skipped: f.skipped}
	if f.err != nil {
		return nil, rep, f.err
	}
	start := max(0, len(f.snaps)-n)
	rep.Loaded = len(f.snaps) - start
	return f.snaps[start:], rep, nil
}

func (f *fakeSource) All(ctx context.Context) ([]market.Snapshot, snapshot.LoadReport, error) {
	return f.snaps, snapshot.LoadReport{Loaded: len(f.snaps)}, f.err
}

func (f *fakeSource) AllInWindow(ctx context.Context, start, end time.Time) ([]market.Snapshot, snapshot.LoadReport, error) {
	var out []market.Snapshot
	for _, s := range f.snaps {
		if !start.IsZero() && s.CapturedAt.Before(start) {
			continue
		}
		if !end.IsZero() && s.CapturedAt.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, snapshot.LoadReport{Loaded: len(out)}, f.err
}

type fakeRecipes catalog.Recipes

func (f fakeRecipes) Recipes() (catalog.Recipes, error) { return catalog.Recipes(f), nil }

func TestLatestLiquidity_NoDataBelowTwoSnapshots(t *testing.T) {
	src := &fakeSource{
		snaps:   []market.Snapshot{snapAt(0, lst("Flax", 1, "z", "L1"))},
		skipped: []snapshot.SkippedFile{{Path: "bad.parquet", Reason: "malformed"}},
	}
	rep, err := LatestLiquidity(context.Background(), src)
	if err != nil {
		t.Fatalf("LatestLiquidity: %v", err)
	}
	if !rep.NoData {
		t.Error("NoData = false, want true")
	}
	if len(rep.Skipped) != 1 {
		t.Errorf("Skipped = %v, want the bad file", rep.Skipped)
	}
}

func TestLatestLiquidity_UsesLastTwo(t *testing.T) {
	src := &fakeSource{snaps: []market.Snapshot{
		snapAt(0, lst("Flax", 1, "z", "A")),
		snapAt(1, lst("Flax", 1, "z", "B"), lst("Wool", 3, "z", "C")),
		snapAt(2, lst("Flax", 1, "z", "B")),
	}}
	rep, err := LatestLiquidity(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if rep.NoData || len(rep.Records) != 1 || rep.Records[0].Item != "Wool" {
		t.Errorf("records = %+v, want only Wool", rep.Records)
	}
	if !rep.From.Equal(at(1)) || !rep.To.Equal(at(2)) {
		t.Errorf("window = %v..%v, want hours 1..2", rep.From, rep.To)
	}
}

func TestLatestLiquidity_PropagatesLoadError(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := LatestLiquidity(context.Background(), &fakeSource{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped disk error", err)
	}
}

func TestAdvisor_EndToEnd(t *testing.T) {
	cur := snapAt(1,
		seller(lst("Sword", 50, "kerys-aven", "S1"), "h1"),
		seller(lst("Iron Ingot", 10, "kerys-aven", "I1"), "h2"),
		seller(lst("Iron Ingot", 30, "merrie-ham", "I2"), "h2"),
	)
	src := &fakeSource{snaps: []market.Snapshot{
		snapAt(0, lst("Iron Ingot", 40, "merrie-ham", "OLD")),
		cur,
	}}
	recipes := fakeRecipes{{Product: "Sword", Ingredients: []catalog.Ingredient{{Name: "Iron Ingot", Quantity: 1}}}}
	g, err := graph.Default()
	if err != nil {
		t.Fatal(err)
	}
	a := NewAdvisor(src, recipes, NewRoutePlanner(g))
	ctx := context.Background()

	liq, err := a.Liquidity(ctx)
	if err != nil || len(liq.Records) != 1 {
		t.Fatalf("Liquidity = %+v, %v", liq, err)
	}

	craft, noData, err := a.Crafting(ctx, 0)
	if err != nil || noData {
		t.Fatalf("Crafting noData=%v err=%v", noData, err)
	}
	if len(craft.Records) != 1 || craft.Records[0].MaterialCost != 10 || craft.Records[0].Category != catalog.CategoryWeapon {
		t.Errorf("crafting = %+v", craft.Records)
	}

	params := DefaultArbitrageParams()
	params.DedupeByItem = true
	opps, err := a.Arbitrage(ctx, liq.Records, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(opps) != 1 || opps[0].ListingID != "I1" {
		t.Errorf("arbitrage = %+v, want listing I1 (buy 10, resell 40)", opps)
	}

	sellers, err := a.Sellers(ctx, "ingot")
	if err != nil || len(sellers) != 1 || sellers[0].ListingCount != 2 {
		t.Errorf("sellers = %+v, %v", sellers, err)
	}

	names, _ := a.Search(ctx, "o", 0)
	if len(names) != 2 {
		t.Errorf("search = %v, want Iron Ingot and Sword", names)
	}

	hist, _ := a.History(ctx, "iron", time.Time{})
	if hist.NoData || len(hist.Points) != 2 || hist.TotalUnitsSold != 1 {
		t.Errorf("history = %+v", hist)
	}

	recent, _ := a.History(ctx, "iron", at(1))
	if len(recent.Points) != 1 || recent.TotalUnitsSold != 0 {
		t.Errorf("history since hour 1 = %+v, want one point and no churn", recent)
	}

	if cmp := a.Route("Aven", "Nerys"); !cmp.Resolved || cmp.Safe.Cost != 40 {
		t.Errorf("route = %+v", cmp)
	}
}

func TestAdvisor_CraftingNoSnapshot(t *testing.T) {
	a := NewAdvisor(&fakeSource{}, fakeRecipes{}, nil)
	_, noData, err := a.Crafting(context.Background(), 5)
	if err != nil || !noData {
		t.Errorf("noData=%v err=%v, want true nil", noData, err)
	}
}

func TestLatestLiquidity_SameCaptureTimeIsNoData(t *testing.T) {
	src := &fakeSource{snaps: []market.Snapshot{
		snapAt(1, lst("Flax", 1, "z", "A")),
		snapAt(1, lst("Flax", 1, "z", "B")),
	}}
	rep, err := LatestLiquidity(context.Background(), src)
	if err != nil {
		t.Fatalf("LatestLiquidity: %v", err)
	}
	if !rep.NoData || len(rep.Records) != 0 {
		t.Errorf("report = %+v, want NoData", rep)
	}
}

func TestAdvisor_CraftingMissingCatalog(t *testing.T) {
	src := &fakeSource{snaps: []market.Snapshot{snapAt(0, lst("Sword", 50, "kerys-aven", "S1"))}}
	missing := filepath.Join(t.TempDir(), "catalogo_manufatura.json")
	a := NewAdvisor(src, catalog.FileSource{Path: missing}, nil)

	rep, noData, err := a.Crafting(context.Background(), 5)
	if err != nil {
		t.Fatalf("Crafting: %v", err)
	}
	if !noData || len(rep.Records) != 0 {
		t.Errorf("noData=%v records=%v, want no data", noData, rep.Records)
	}
}

func TestAdvisor_CraftingBrokenCatalogIsError(t *testing.T) {
	src := &fakeSource{snaps: []market.Snapshot{snapAt(0, lst("Sword", 50, "kerys-aven", "S1"))}}
	path := filepath.Join(t.TempDir(), "catalogo_manufatura.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := NewAdvisor(src, catalog.FileSource{Path: path}, nil)

	if _, _, err := a.Crafting(context.Background(), 5); err == nil {
		t.Error("Crafting with unparsable catalog: err = nil")
	}
}
