package db

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"pax-advisor/internal/engine"
	"pax-advisor/internal/market"
)

// openTestDB opens an in-memory SQLite DB and runs migrations (for testing only).
func openTestDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func TestDB_MigrateIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var version int
	if err := d.sql.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestDB_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pax-advisor.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	if _, err := d.InsertRun(KindLiquidity, "", 0, 0, 0, nil); err != nil {
		t.Errorf("InsertRun on file db: %v", err)
	}
}

func TestDB_RunRoundTrip(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	rec, err := d.InsertRun(KindArbitrage, "cache", 3, 120.5, 1500*time.Millisecond, map[string]float64{"budget": 2000})
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	if rec.ID <= 0 || len(rec.RunID) != 36 {
		t.Fatalf("ids = %d/%q", rec.ID, rec.RunID)
	}

	got := d.GetRun(rec.RunID)
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if got.Kind != KindArbitrage || got.Source != "cache" || got.Count != 3 || got.TopValue != 120.5 || got.DurationMs != 1500 {
		t.Errorf("run = %+v", got)
	}
	var params map[string]float64
	if err := json.Unmarshal(got.Params, &params); err != nil || params["budget"] != 2000 {
		t.Errorf("params = %s (%v)", got.Params, err)
	}

	if d.GetRun("nope") != nil {
		t.Error("GetRun(nope) should return nil")
	}
}

func TestDB_GetRunsNewestFirst(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	for _, kind := range []string{KindLiquidity, KindCrafting, KindLiquidity} {
		if _, err := d.InsertRun(kind, "live", 1, 1, 0, nil); err != nil {
			t.Fatal(err)
		}
	}
	runs := d.GetRuns(2)
	if len(runs) != 2 || runs[0].ID <= runs[1].ID {
		t.Errorf("runs = %+v", runs)
	}
	latest := d.LatestRun(KindCrafting)
	if latest == nil || latest.Kind != KindCrafting {
		t.Errorf("LatestRun = %+v", latest)
	}
	if d.LatestRun(KindArbitrage) != nil {
		t.Error("LatestRun(arbitrage) should be nil")
	}
}

func TestDB_LiquidityResultsRoundTrip(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	run, _ := d.InsertRun(KindLiquidity, "live", 2, 5, 0, nil)
	rows := []market.LiquidityRecord{
		{Item: "Iron Ingot", UnitsSold: 5, TotalVolume: 50, TopZone: "kerys-aven", TopZoneSales: 3},
		{Item: "Wool", UnitsSold: 1, TotalVolume: 4, TopZone: "merrie-ham", TopZoneSales: 1},
	}
	if err := d.InsertLiquidityResults(run.ID, rows); err != nil {
		t.Fatalf("InsertLiquidityResults: %v", err)
	}
	got := d.GetLiquidityResults(run.ID)
	if len(got) != 2 || got[0] != rows[0] || got[1] != rows[1] {
		t.Errorf("got %+v, want %+v", got, rows)
	}
}

func TestDB_CraftingResultsRoundTrip(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	run, _ := d.InsertRun(KindCrafting, "live", 1, 40, 0, nil)
	row := market.ProfitabilityRecord{
		Product: "Sword", Category: "Weapon", MaterialCost: 10, SellPrice: 50,
		Spread: 40, MarginPct: 80, SellPriceMethod: "Weighted Median", Sourcing: "Iron Ingot: 1 Zones (+0%)",
	}
	if err := d.InsertCraftingResults(run.ID, []market.ProfitabilityRecord{row}); err != nil {
		t.Fatal(err)
	}
	got := d.GetCraftingResults(run.ID)
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Product != "Sword" || got[0].Category != "Weapon" || got[0].Spread != 40 || got[0].Sourcing != row.Sourcing {
		t.Errorf("got %+v", got[0])
	}
}

func TestDB_ArbitrageResultsAndDelete(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	run, _ := d.InsertRun(KindArbitrage, "live", 1, 100, 0, nil)
	opp := engine.ArbitrageOpportunity{
		Item: "Wool", Zone: "kerys-aven", ListingID: "W1", SellerHash: "h", Quantity: 1,
		BuyPrice: 10, AvgSalePrice: 20, UnitProfit: 10, MarginPct: 100, UnitsSold: 10, TopZone: "merrie-ham", Score: 100,
	}
	if err := d.InsertArbitrageResults(run.ID, []engine.ArbitrageOpportunity{opp}); err != nil {
		t.Fatal(err)
	}
	if got := d.GetArbitrageResults(run.ID); len(got) != 1 || got[0] != opp {
		t.Errorf("got %+v", got)
	}

	if err := d.DeleteRun(run.RunID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if d.GetRun(run.RunID) != nil || len(d.GetArbitrageResults(run.ID)) != 0 {
		t.Error("run or results survived delete")
	}
	if err := d.DeleteRun(run.RunID); err != sql.ErrNoRows {
		t.Errorf("second delete err = %v, want sql.ErrNoRows", err)
	}
}

func TestDB_InsertResults_ZeroRunIDNoOp(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	if err := d.InsertLiquidityResults(0, []market.LiquidityRecord{{Item: "x"}}); err != nil {
		t.Fatal(err)
	}
	if got := d.GetLiquidityResults(0); len(got) != 0 {
		t.Errorf("zero run id inserted %d rows", len(got))
	}
}

func TestDB_ClearRuns(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	old, _ := d.InsertRun(KindLiquidity, "live", 1, 1, 0, nil)
	d.InsertLiquidityResults(old.ID, []market.LiquidityRecord{{Item: "x", UnitsSold: 1}})
	d.sql.Exec("UPDATE runs SET timestamp = ? WHERE id = ?", time.Now().AddDate(0, 0, -10).UTC().Format(time.RFC3339), old.ID)
	fresh, _ := d.InsertRun(KindLiquidity, "live", 1, 1, 0, nil)

	n, err := d.ClearRuns(7)
	if err != nil || n != 1 {
		t.Fatalf("ClearRuns = %d, %v; want 1", n, err)
	}
	if d.GetRun(old.RunID) != nil || d.GetRun(fresh.RunID) == nil {
		t.Error("wrong run cleared")
	}
	if len(d.GetLiquidityResults(old.ID)) != 0 {
		t.Error("results of cleared run survived")
	}
}
