package engine

import (
	"fmt"
	"sort"

	"pax-advisor/internal/market"
)

// FindArbitrage ranks current listings that can be bought under budget and
// resold at the item's average realized sale price. Score weights unit profit
// by how many units sold, so liquid items rank above rare high-margin ones.
func FindArbitrage(listings []market.Listing, liquidity []market.LiquidityRecord, params ArbitrageParams) ([]ArbitrageOpportunity, error) {
	if params.Budget < 0 {
		return nil, fmt.Errorf("arbitrage budget %v: %w", params.Budget, ErrInvalidArgument)
	}
	if params.MinMargin < 0 {
		return nil, fmt.Errorf("arbitrage min margin %v: %w", params.MinMargin, ErrInvalidArgument)
	}

	active := make(map[string]market.LiquidityRecord, len(liquidity))
	for _, r := range liquidity {
		if r.UnitsSold > 0 {
			active[r.Item] = r
		}
	}

	var out []ArbitrageOpportunity
	for _, l := range listings {
		liq, ok := active[l.ItemName]
		if !ok || l.UnitPrice > params.Budget || l.UnitPrice <= 0 {
			continue
		}
		avg := liq.AvgSalePrice()
		profit := avg - l.UnitPrice
		margin := profit / l.UnitPrice * 100
		if profit <= 0 || margin < params.MinMargin {
			continue
		}
		out = append(out, ArbitrageOpportunity{
			Item:         l.ItemName,
			Zone:         l.Zone,
			ListingID:    l.ListingID,
			SellerHash:   l.SellerHash,
			Quantity:     l.Quantity,
			BuyPrice:     l.UnitPrice,
			AvgSalePrice: avg,
			UnitProfit:   profit,
			MarginPct:    margin,
			UnitsSold:    liq.UnitsSold,
			TopZone:      liq.TopZone,
			Score:        profit * float64(liq.UnitsSold),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Item != b.Item {
			return a.Item < b.Item
		}
		if a.Zone != b.Zone {
			return a.Zone < b.Zone
		}
		return a.ListingID < b.ListingID
	})

	if params.DedupeByItem {
		seen := make(map[string]bool, len(out))
		kept := out[:0]
		for _, o := range out {
			if seen[o.Item] {
				continue
			}
			seen[o.Item] = true
			kept = append(kept, o)
		}
		out = kept
	}
	if params.Top > 0 && len(out) > params.Top {
		out = out[:params.Top]
	}
	return out, nil
}
