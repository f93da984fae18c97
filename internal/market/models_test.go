package market

import (
	"testing"
	"time"
)

func TestNewListing_DefaultsQuantity(t *testing.T) {
	l := NewListing("Iron Ingot", 30, 3, "kerys-aven", "L1")
	if l.UnitPrice != 10 || !l.HasQuantity {
		t.Errorf("UnitPrice = %v HasQuantity = %v, want 10 true", l.UnitPrice, l.HasQuantity)
	}

	l = NewListing("Iron Ingot", 12, 0, "kerys-aven", "L2")
	if l.Quantity != 1 || l.HasQuantity || l.UnitPrice != 12 {
		t.Errorf("got qty=%d has=%v unit=%v, want 1 false 12", l.Quantity, l.HasQuantity, l.UnitPrice)
	}
}

func TestNewSnapshot_FirstDuplicateWins(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	snap, dupes := NewSnapshot(at, "a.parquet", []Listing{
		NewListing("Iron Ingot", 10, 1, "z1", "L1"),
		NewListing("Iron Ingot", 99, 1, "z2", "L1"),
		NewListing("Copper Ore", 4, 2, "z1", "L2"),
	})
	if dupes != 1 {
		t.Fatalf("dupes = %d, want 1", dupes)
	}
	if snap.Len() != 2 {
		t.Fatalf("Len = %d, want 2", snap.Len())
	}
	if got := snap.Listings()[0].TotalPrice; got != 10 {
		t.Errorf("kept price = %v, want 10", got)
	}
	if !snap.HasQuantities() {
		t.Error("HasQuantities = false, want true")
	}
	ids := snap.IDs()
	if _, ok := ids["L2"]; !ok || len(ids) != 2 {
		t.Errorf("IDs = %v, want L1 and L2", ids)
	}
}

func TestSnapshot_ListingsIsCopy(t *testing.T) {
	snap, _ := NewSnapshot(time.Now(), "", []Listing{NewListing("Flax", 1, 0, "z", "L1")})
	rows := snap.Listings()
	rows[0].ItemName = "changed"
	if snap.Listings()[0].ItemName != "Flax" {
		t.Error("mutating Listings() leaked into snapshot")
	}
	if snap.HasQuantities() {
		t.Error("HasQuantities = true for a row without quantity")
	}
}

func TestExpiresAt(t *testing.T) {
	seen := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	days := 1.5
	l := Listing{LastSeen: seen, LifetimeDays: &days}
	if want := seen.Add(36 * time.Hour); !l.ExpiresAt().Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", l.ExpiresAt(), want)
	}
	if !(Listing{LastSeen: seen}).ExpiresAt().IsZero() {
		t.Error("ExpiresAt without lifetime should be zero")
	}
}

func TestSortByCapture(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a, _ := NewSnapshot(t0.Add(2*time.Hour), "c", nil)
	b, _ := NewSnapshot(t0, "a", nil)
	c, _ := NewSnapshot(t0.Add(time.Hour), "b", nil)
	snaps := []Snapshot{a, b, c}
	SortByCapture(snaps)
	for i, want := range []string{"a", "b", "c"} {
		if snaps[i].Source != want {
			t.Errorf("snaps[%d] = %s, want %s", i, snaps[i].Source, want)
		}
	}
}

func TestLiquidityRecord_AvgSalePrice(t *testing.T) {
	if got := (LiquidityRecord{UnitsSold: 4, TotalVolume: 100}).AvgSalePrice(); got != 25 {
		t.Errorf("AvgSalePrice = %v, want 25", got)
	}
	if got := (LiquidityRecord{TotalVolume: 100}).AvgSalePrice(); got != 0 {
		t.Errorf("AvgSalePrice = %v, want 0", got)
	}
}
