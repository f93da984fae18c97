package engine

import (
	"context"
	"fmt"
	"sort"

	"pax-advisor/internal/market"
)

// disappeared returns the listings of older whose id is absent from newer.
// Rows without an id and rows rejected by match are ignored.
func disappeared(older, newer market.Snapshot, match func(item string) bool) []market.Listing {
	newIDs := newer.IDs()
	var out []market.Listing
	older.Each(func(l market.Listing) {
		if l.ListingID == "" {
			return
		}
		if match != nil && !match(l.ItemName) {
			return
		}
		if _, ok := newIDs[l.ListingID]; !ok {
			out = append(out, l)
		}
	})
	return out
}

// unitsOf counts a listing as its quantity when the snapshot carries
// quantities, otherwise as one sale.
func unitsOf(l market.Listing, withQty bool) int64 {
	if withQty {
		return l.Quantity
	}
	return 1
}

// EstimateChurn infers sales between two snapshots: every listing id present in
// older and absent in newer counts as sold. Expiry and cancellation are not
// distinguished from sales.
func EstimateChurn(older, newer market.Snapshot) (LiquidityReport, error) {
	if !older.CapturedAt.Before(newer.CapturedAt) {
		return LiquidityReport{}, fmt.Errorf("estimate churn: old snapshot %s is not before new %s: %w",
			older.CapturedAt.Format("2006-01-02 15:04"), newer.CapturedAt.Format("2006-01-02 15:04"), ErrInvalidArgument)
	}
	gone := disappeared(older, newer, nil)
	return LiquidityReport{
		From:        older.CapturedAt,
		To:          newer.CapturedAt,
		Records:     aggregateSales(gone, older.HasQuantities()),
		Disappeared: len(gone),
	}, nil
}

type itemSales struct {
	units  int64
	volume float64
	zones  map[string]int64
}

func aggregateSales(gone []market.Listing, withQty bool) []market.LiquidityRecord {
	byItem := make(map[string]*itemSales)
	for _, l := range gone {
		s := byItem[l.ItemName]
		if s == nil {
			s = &itemSales{zones: make(map[string]int64)}
			byItem[l.ItemName] = s
		}
		s.units += unitsOf(l, withQty)
		s.volume += l.TotalPrice
		s.zones[l.Zone]++
	}

	records := make([]market.LiquidityRecord, 0, len(byItem))
	for item, s := range byItem {
		zone, count := topZone(s.zones)
		records = append(records, market.LiquidityRecord{
			Item:         item,
			UnitsSold:    s.units,
			TotalVolume:  s.volume,
			TopZone:      zone,
			TopZoneSales: count,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].UnitsSold != records[j].UnitsSold {
			return records[i].UnitsSold > records[j].UnitsSold
		}
		return records[i].Item < records[j].Item
	})
	return records
}

// topZone picks the zone with the most disappeared listings; ties go to the
// alphabetically first zone.
func topZone(zones map[string]int64) (string, int64) {
	var (
		best  string
		count int64 = -1
	)
	for z, n := range zones {
		if n > count || (n == count && z < best) {
			best, count = z, n
		}
	}
	return best, count
}

// LatestLiquidity estimates churn between the two most recent loadable snapshots.
// Fewer than two, or two sharing a capture time, yields NoData rather than an error.
func LatestLiquidity(ctx context.Context, src SnapshotSource) (LiquidityReport, error) {
	snaps, report, err := src.LastN(ctx, 2)
	if err != nil {
		return LiquidityReport{}, fmt.Errorf("load snapshots: %w", err)
	}
	if len(snaps) < 2 || !snaps[0].CapturedAt.Before(snaps[1].CapturedAt) {
		return LiquidityReport{NoData: true, Skipped: report.Skipped}, nil
	}
	out, err := EstimateChurn(snaps[0], snaps[1])
	if err != nil {
		return LiquidityReport{}, err
	}
	out.Skipped = report.Skipped
	return out, nil
}
