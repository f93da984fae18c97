package engine

import "pax-advisor/internal/market"

// ItemHistory builds one point per snapshot for every item whose name contains
// query (case-insensitive), starting at the first snapshot with a match. Sales
// between consecutive points use the same disappearance logic as EstimateChurn.
//
// Price statistics use each listing's unit price, not its stack total. Once the
// first match is found every later snapshot yields a point, including ones
// where no matching listing remains, so a sell-out shows as zero stock and its
// disappearances are still counted as sales.
func ItemHistory(snapshots []market.Snapshot, query string) ItemHistoryResult {
	match := nameMatcher(query)
	snaps := make([]market.Snapshot, len(snapshots))
	copy(snaps, snapshots)
	market.SortByCapture(snaps)

	out := ItemHistoryResult{Query: query}
	items := make(map[string]struct{})
	var prev *market.Snapshot
	for i := range snaps {
		snap := snaps[i]
		var (
			prices []float64
			zones  = make(map[string]struct{})
		)
		snap.Each(func(l market.Listing) {
			if !match(l.ItemName) {
				return
			}
			items[l.ItemName] = struct{}{}
			prices = append(prices, l.UnitPrice)
			zones[l.Zone] = struct{}{}
		})
		if prev == nil && len(prices) == 0 {
			continue
		}

		p := HistoryPoint{
			CapturedAt:  snap.CapturedAt,
			StockCount:  len(prices),
			Zones:       sortedKeys(zones),
			MedianPrice: median(prices),
		}
		if len(prices) > 0 {
			p.MinPrice = prices[0]
			var sum float64
			for _, v := range prices {
				sum += v
				if v < p.MinPrice {
					p.MinPrice = v
				}
			}
			p.AvgPrice = sum / float64(len(prices))
		}
		if prev != nil {
			withQty := prev.HasQuantities()
			for _, l := range disappeared(*prev, snap, match) {
				p.UnitsSoldSinceLast += unitsOf(l, withQty)
				p.VolumeSold += l.TotalPrice
			}
		}
		out.TotalUnitsSold += p.UnitsSoldSinceLast
		out.TotalVolume += p.VolumeSold
		out.Points = append(out.Points, p)
		prev = &snaps[i]
	}

	out.Items = sortedKeys(items)
	out.NoData = len(out.Points) == 0
	return out
}
