package engine

import (
	"sort"
	"strings"

	"pax-advisor/internal/market"
)

// DefaultSearchLimit caps SearchItems results.
const DefaultSearchLimit = 20

// ProducerStats counts, per zone, the distinct sellers and listings of items
// matching query across all given snapshots.
func ProducerStats(snapshots []market.Snapshot, query string) []ProducerStat {
	match := nameMatcher(query)
	sellers := make(map[string]map[string]struct{})
	listings := make(map[string]map[string]struct{})
	for _, snap := range snapshots {
		snap.Each(func(l market.Listing) {
			if !match(l.ItemName) {
				return
			}
			if sellers[l.Zone] == nil {
				sellers[l.Zone] = make(map[string]struct{})
				listings[l.Zone] = make(map[string]struct{})
			}
			if l.SellerHash != "" {
				sellers[l.Zone][l.SellerHash] = struct{}{}
			}
			if l.ListingID != "" {
				listings[l.Zone][l.ListingID] = struct{}{}
			}
		})
	}

	out := make([]ProducerStat, 0, len(sellers))
	for zone := range sellers {
		out = append(out, ProducerStat{
			Zone:            zone,
			UniqueProducers: len(sellers[zone]),
			UniqueListings:  len(listings[zone]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UniqueProducers != out[j].UniqueProducers {
			return out[i].UniqueProducers > out[j].UniqueProducers
		}
		if out[i].UniqueListings != out[j].UniqueListings {
			return out[i].UniqueListings > out[j].UniqueListings
		}
		return out[i].Zone < out[j].Zone
	})
	return out
}

// TopSellers summarizes each seller's current stock of items matching query,
// largest stock first. Listings without a seller hash are ignored.
func TopSellers(snap market.Snapshot, query string) []SellerStat {
	match := nameMatcher(query)
	type acc struct {
		stock    int64
		count    int
		priceSum float64
		zones    map[string]struct{}
	}
	bySeller := make(map[string]*acc)
	snap.Each(func(l market.Listing) {
		if l.SellerHash == "" || !match(l.ItemName) {
			return
		}
		a := bySeller[l.SellerHash]
		if a == nil {
			a = &acc{zones: make(map[string]struct{})}
			bySeller[l.SellerHash] = a
		}
		a.stock += l.Quantity
		a.count++
		a.priceSum += l.UnitPrice
		a.zones[l.Zone] = struct{}{}
	})

	out := make([]SellerStat, 0, len(bySeller))
	for seller, a := range bySeller {
		out = append(out, SellerStat{
			SellerHash:   seller,
			TotalStock:   a.stock,
			ListingCount: a.count,
			AvgPrice:     a.priceSum / float64(a.count),
			Zones:        sortedKeys(a.zones),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalStock != out[j].TotalStock {
			return out[i].TotalStock > out[j].TotalStock
		}
		return out[i].SellerHash < out[j].SellerHash
	})
	return out
}

// SearchItems returns distinct item names containing query, sorted, at most
// limit of them (DefaultSearchLimit when limit <= 0).
func SearchItems(snap market.Snapshot, query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	match := nameMatcher(query)
	names := make(map[string]struct{})
	snap.Each(func(l market.Listing) {
		if l.ItemName != "" && match(l.ItemName) {
			names[l.ItemName] = struct{}{}
		}
	})
	out := sortedKeys(names)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ZoneBargains finds listings in zones containing any of zoneKeywords whose unit
// price is below the server-wide median for the item. An empty items or
// zoneKeywords list matches everything. Results are ordered by discount.
func ZoneBargains(snap market.Snapshot, items, zoneKeywords []string) []Bargain {
	wanted := make(map[string]bool, len(items))
	for _, it := range items {
		wanted[it] = true
	}
	keywords := make([]string, 0, len(zoneKeywords))
	for _, z := range zoneKeywords {
		if z = strings.ToLower(strings.TrimSpace(z)); z != "" {
			keywords = append(keywords, z)
		}
	}

	prices := make(map[string][]float64)
	var candidates []market.Listing
	snap.Each(func(l market.Listing) {
		if len(wanted) > 0 && !wanted[l.ItemName] {
			return
		}
		prices[l.ItemName] = append(prices[l.ItemName], l.UnitPrice)
		if inZones(l.Zone, keywords) {
			candidates = append(candidates, l)
		}
	})

	medians := make(map[string]float64, len(prices))
	for item, ps := range prices {
		medians[item] = median(ps)
	}

	var out []Bargain
	for _, l := range candidates {
		med := medians[l.ItemName]
		if med <= 0 || l.UnitPrice >= med {
			continue
		}
		out = append(out, Bargain{
			Item:        l.ItemName,
			Zone:        l.Zone,
			ListingID:   l.ListingID,
			SellerHash:  l.SellerHash,
			Quantity:    l.Quantity,
			Price:       l.UnitPrice,
			MedianPrice: med,
			DiscountPct: (med - l.UnitPrice) / med * 100,
			ExpiresAt:   l.ExpiresAt(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DiscountPct != b.DiscountPct {
			return a.DiscountPct > b.DiscountPct
		}
		if a.Item != b.Item {
			return a.Item < b.Item
		}
		if a.Zone != b.Zone {
			return a.Zone < b.Zone
		}
		return a.ListingID < b.ListingID
	})
	return out
}

func inZones(zone string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	z := strings.ToLower(zone)
	for _, k := range keywords {
		if strings.Contains(z, k) {
			return true
		}
	}
	return false
}
