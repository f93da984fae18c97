package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"pax-advisor/internal/catalog"
	"pax-advisor/internal/market"
)

// DefaultZonePenaltyPct is the cost surcharge per additional zone touched.
const DefaultZonePenaltyPct = 5.0

// PriceBook indexes one snapshot's listings by item, cheapest first.
// Build it once per analysis run and pass it explicitly.
type PriceBook struct {
	CapturedAt time.Time
	byItem     map[string][]market.Listing
}

// BuildPriceBook groups listings by item and orders each group by unit price,
// then zone, then listing id.
func BuildPriceBook(snap market.Snapshot) PriceBook {
	byItem := make(map[string][]market.Listing)
	snap.Each(func(l market.Listing) {
		byItem[l.ItemName] = append(byItem[l.ItemName], l)
	})
	for _, ls := range byItem {
		sort.SliceStable(ls, func(i, j int) bool {
			if ls[i].UnitPrice != ls[j].UnitPrice {
				return ls[i].UnitPrice < ls[j].UnitPrice
			}
			if ls[i].Zone != ls[j].Zone {
				return ls[i].Zone < ls[j].Zone
			}
			return ls[i].ListingID < ls[j].ListingID
		})
	}
	return PriceBook{CapturedAt: snap.CapturedAt, byItem: byItem}
}

// Items returns all item names, sorted.
func (b PriceBook) Items() []string { return sortedKeys(b.byItem) }

// SellPrice is the median unit price across the item's listings. With one row
// per unit on offer this equals the stock-weighted median.
func SellPrice(book PriceBook, item string) (float64, bool) {
	ls := book.byItem[item]
	if len(ls) == 0 {
		return 0, false
	}
	prices := make([]float64, len(ls))
	for i, l := range ls {
		prices[i] = l.UnitPrice
	}
	return median(prices), true
}

// SupplyModel decides how many units a listing can contribute.
type SupplyModel interface {
	Available(l market.Listing, remaining int64) int64
}

// UnlimitedSupply lets any listing fill the whole remaining requirement at its
// unit price. The first (cheapest) listing therefore always fills the order.
type UnlimitedSupply struct{}

func (UnlimitedSupply) Available(_ market.Listing, remaining int64) int64 { return remaining }

// ListedQuantitySupply caps each listing at its stack quantity.
type ListedQuantitySupply struct{}

func (ListedQuantitySupply) Available(l market.Listing, _ int64) int64 { return l.Quantity }

// SupplyModelByName maps "unlimited" (or "") and "listed" to a model.
func SupplyModelByName(name string) (SupplyModel, error) {
	switch strings.ToLower(name) {
	case "", "unlimited":
		return UnlimitedSupply{}, nil
	case "listed":
		return ListedQuantitySupply{}, nil
	}
	return nil, fmt.Errorf("supply model %q: %w", name, ErrInvalidArgument)
}

// Sourcer prices ingredients by walking the price book.
type Sourcer struct {
	Supply         SupplyModel
	ZonePenaltyPct float64
}

// NewSourcer returns a Sourcer with unlimited supply and the default penalty.
func NewSourcer() Sourcer {
	return Sourcer{Supply: UnlimitedSupply{}, ZonePenaltyPct: DefaultZonePenaltyPct}
}

// MaterialCost fills requiredQty from the cheapest listings and applies the
// multi-zone penalty: cost = raw * (1 + pct/100 * max(0, zones-1)).
// ok is false when the item has no listings. Under a finite supply model the
// walk may run out of listings; the cost then covers what was filled and
// Shortfall holds the rest.
func (s Sourcer) MaterialCost(book PriceBook, item string, requiredQty int64) (SourcingResult, bool, error) {
	if requiredQty <= 0 {
		return SourcingResult{}, false, fmt.Errorf("material cost %q: quantity %d: %w", item, requiredQty, ErrInvalidArgument)
	}
	supply := s.Supply
	if supply == nil {
		supply = UnlimitedSupply{}
	}

	res := SourcingResult{Item: item, Required: requiredQty}
	zones := make(map[string]struct{})
	for _, l := range book.byItem[item] {
		remaining := requiredQty - res.Filled
		if remaining <= 0 {
			break
		}
		take := min(remaining, supply.Available(l, remaining))
		if take <= 0 {
			continue
		}
		res.RawCost += float64(take) * l.UnitPrice
		res.Filled += take
		zones[l.Zone] = struct{}{}
	}
	if res.Filled == 0 {
		res.Shortfall = requiredQty
		res.Note = fmt.Sprintf("%s: no listings", item)
		return res, false, nil
	}

	res.Shortfall = requiredQty - res.Filled
	res.Zones = sortedKeys(zones)
	res.PenaltyPct = s.ZonePenaltyPct * float64(max(0, len(res.Zones)-1))
	res.Cost = res.RawCost * (1 + res.PenaltyPct/100)
	res.Note = fmt.Sprintf("%s: %d Zones (+%.0f%%)", item, len(res.Zones), res.PenaltyPct)
	if res.Shortfall > 0 {
		res.Note += fmt.Sprintf(" short %d", res.Shortfall)
	}
	return res, true, nil
}

// ProfitabilityOptions configures AnalyzeProfitability.
type ProfitabilityOptions struct {
	Sourcer    Sourcer
	Classifier catalog.Classifier // nil leaves Category empty
	Top        int                // 0 = all
}

// SellPriceMethod labels how Preco_Venda was derived.
const SellPriceMethod = "Weighted Median"

// AnalyzeProfitability ranks recipes by spread between median sell price and
// sourced ingredient cost. Recipes without a sell price are not evaluated.
// Recipes with an unsourceable or short ingredient are skipped and reported.
func AnalyzeProfitability(book PriceBook, recipes catalog.Recipes, opts ProfitabilityOptions) (ProfitabilityReport, error) {
	var out ProfitabilityReport
	type ranked struct {
		rec    market.ProfitabilityRecord
		spread float64
	}
	var rows []ranked

	for _, r := range recipes {
		sell, ok := SellPrice(book, r.Product)
		if !ok || sell <= 0 {
			continue
		}
		out.Evaluated++

		var (
			cost        float64
			notes       []string
			ingredients []market.IngredientSourcing
			missing     int
			short       int
		)
		for _, ing := range r.Ingredients {
			res, ok, err := opts.Sourcer.MaterialCost(book, ing.Name, ing.Quantity)
			if err != nil {
				return ProfitabilityReport{}, fmt.Errorf("recipe %q: %w", r.Product, err)
			}
			switch {
			case !ok:
				missing++
				continue
			case res.Shortfall > 0:
				short++
			}
			cost += res.Cost
			notes = append(notes, res.Note)
			ingredients = append(ingredients, market.IngredientSourcing(res))
		}
		if missing > 0 || short > 0 {
			out.Skipped = append(out.Skipped, SkippedRecipe{
				Product: r.Product,
				Reason:  skipReason(missing, short, len(r.Ingredients)),
			})
			continue
		}

		spread := sell - cost
		rec := market.ProfitabilityRecord{
			Product:         r.Product,
			MaterialCost:    round(cost, 2),
			SellPrice:       round(sell, 2),
			Spread:          round(spread, 2),
			MarginPct:       round(spread/sell*100, 1),
			SellPriceMethod: SellPriceMethod,
			Sourcing:        strings.Join(notes, "; "),
			Ingredients:     ingredients,
		}
		if opts.Classifier != nil {
			rec.Category = opts.Classifier.Category(r.Product)
		}
		rows = append(rows, ranked{rec: rec, spread: spread})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].spread != rows[j].spread {
			return rows[i].spread > rows[j].spread
		}
		return rows[i].rec.Product < rows[j].rec.Product
	})
	if opts.Top > 0 && len(rows) > opts.Top {
		rows = rows[:opts.Top]
	}
	out.Records = make([]market.ProfitabilityRecord, len(rows))
	for i, r := range rows {
		out.Records[i] = r.rec
	}
	return out, nil
}

func skipReason(missing, short, total int) string {
	var parts []string
	if missing > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d ingredients unsourceable", missing, total))
	}
	if short > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d ingredients short", short, total))
	}
	return strings.Join(parts, "; ")
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
