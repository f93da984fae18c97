package market

import (
	"sort"
	"time"
)

// Listing is one row of a market snapshot: a stack of an item offered in a zone.
type Listing struct {
	ItemName     string
	TotalPrice   float64 // price for the whole stack
	UnitPrice    float64 // TotalPrice / Quantity
	Quantity     int64   // >= 1
	HasQuantity  bool    // false when the row carried no quantity and Quantity defaulted to 1
	Zone         string  // "<region>-<subzone>"
	ListingID    string
	SellerHash   string
	Durability   *float64
	Quality      *float64
	CreatedAt    time.Time
	LastSeen     time.Time
	LifetimeDays *float64
}

// NewListing builds a listing from the stack price, deriving the unit price.
// A quantity below 1 is treated as a single unit.
func NewListing(item string, totalPrice float64, quantity int64, zone, listingID string) Listing {
	has := quantity >= 1
	if !has {
		quantity = 1
	}
	return Listing{
		ItemName:    item,
		TotalPrice:  totalPrice,
		UnitPrice:   totalPrice / float64(quantity),
		Quantity:    quantity,
		HasQuantity: has,
		Zone:        zone,
		ListingID:   listingID,
	}
}

// ExpiresAt is LastSeen + LifetimeDays, or the zero time when either is unknown.
func (l Listing) ExpiresAt() time.Time {
	if l.LastSeen.IsZero() || l.LifetimeDays == nil {
		return time.Time{}
	}
	return l.LastSeen.Add(time.Duration(*l.LifetimeDays * float64(24*time.Hour)))
}

// Snapshot is an immutable capture of all listings at one moment.
// Identity is CapturedAt.
type Snapshot struct {
	CapturedAt time.Time
	Source     string
	listings   []Listing
	hasQty     bool
}

// NewSnapshot copies listings into a new snapshot. Rows with a ListingID already
// seen are dropped (first wins); the number dropped is returned.
func NewSnapshot(capturedAt time.Time, source string, listings []Listing) (Snapshot, int) {
	seen := make(map[string]struct{}, len(listings))
	out := make([]Listing, 0, len(listings))
	dupes := 0
	hasQty := len(listings) > 0
	for _, l := range listings {
		if l.ListingID != "" {
			if _, ok := seen[l.ListingID]; ok {
				dupes++
				continue
			}
			seen[l.ListingID] = struct{}{}
		}
		if !l.HasQuantity {
			hasQty = false
		}
		out = append(out, l)
	}
	return Snapshot{CapturedAt: capturedAt, Source: source, listings: out, hasQty: hasQty}, dupes
}

// Listings returns a copy of the snapshot rows.
func (s Snapshot) Listings() []Listing {
	out := make([]Listing, len(s.listings))
	copy(out, s.listings)
	return out
}

// Len is the number of listings.
func (s Snapshot) Len() int { return len(s.listings) }

// Each calls fn for every listing without copying the slice.
func (s Snapshot) Each(fn func(Listing)) {
	for _, l := range s.listings {
		fn(l)
	}
}

// HasQuantities reports whether every row carried an explicit quantity.
func (s Snapshot) HasQuantities() bool { return s.hasQty }

// IDs returns the set of listing ids in the snapshot. Rows without an id are ignored.
func (s Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.listings))
	for _, l := range s.listings {
		if l.ListingID != "" {
			ids[l.ListingID] = struct{}{}
		}
	}
	return ids
}

// SortByCapture orders snapshots oldest first, in place.
func SortByCapture(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].CapturedAt.Before(snaps[j].CapturedAt)
	})
}

// LiquidityRecord is the estimated sales of one item between two snapshots.
// CSV tags match the liquidity cache columns so cached and live rows are interchangeable.
type LiquidityRecord struct {
	Item         string  `json:"Item" csv:"Item"`
	UnitsSold    int64   `json:"Units_Sold" csv:"Units_Sold"`
	TotalVolume  float64 `json:"Total_Volume" csv:"Total_Volume"`
	TopZone      string  `json:"Top_Zone" csv:"Top_Zone"`
	TopZoneSales int64   `json:"Top_Zone_Sales" csv:"Top_Zone_Sales"`
}

// AvgSalePrice is TotalVolume / UnitsSold, or 0 when nothing sold.
func (r LiquidityRecord) AvgSalePrice() float64 {
	if r.UnitsSold <= 0 {
		return 0
	}
	return r.TotalVolume / float64(r.UnitsSold)
}

// ProfitabilityRecord is one ranked crafting opportunity.
type ProfitabilityRecord struct {
	Product         string               `json:"Produto" csv:"Produto"`
	Category        string               `json:"Categoria" csv:"-"`
	MaterialCost    float64              `json:"Custo_Manufatura" csv:"Custo_Manufatura"`
	SellPrice       float64              `json:"Preco_Venda" csv:"Preco_Venda"`
	Spread          float64              `json:"Spread" csv:"Spread"`
	MarginPct       float64              `json:"Margem_Perc" csv:"Margem_Perc"`
	SellPriceMethod string               `json:"Mercado_Venda" csv:"Mercado_Venda"`
	Sourcing        string               `json:"Sourcing_Insumos" csv:"Sourcing_Insumos"`
	Ingredients     []IngredientSourcing `json:"Ingredients,omitempty" csv:"-"`
}

// IngredientSourcing is the audit trail for one ingredient of a recipe.
type IngredientSourcing struct {
	Item       string   `json:"item"`
	Required   int64    `json:"required"`
	Filled     int64    `json:"filled"`
	Shortfall  int64    `json:"shortfall"`
	RawCost    float64  `json:"raw_cost"`
	Cost       float64  `json:"cost"`
	Zones      []string `json:"zones"`
	PenaltyPct float64  `json:"penalty_pct"`
	Note       string   `json:"note"`
}
