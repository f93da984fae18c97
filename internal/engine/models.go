package engine

import (
	"time"

	"pax-advisor/internal/market"
	"pax-advisor/internal/snapshot"
)

// LiquidityReport is the churn between two snapshots.
type LiquidityReport struct {
	From        time.Time
	To          time.Time
	Records     []market.LiquidityRecord
	Disappeared int  // listing ids present in From and absent in To
	NoData      bool // fewer than two loadable snapshots
	Skipped     []snapshot.SkippedFile
}

// HistoryPoint aggregates all matching items in one snapshot.
type HistoryPoint struct {
	CapturedAt         time.Time
	MinPrice           float64
	AvgPrice           float64
	MedianPrice        float64
	StockCount         int
	Zones              []string
	UnitsSoldSinceLast int64
	VolumeSold         float64
}

// ItemHistoryResult is the time series for an item-name query.
type ItemHistoryResult struct {
	Query          string
	Items          []string // distinct matching item names
	Points         []HistoryPoint
	TotalUnitsSold int64
	TotalVolume    float64
	NoData         bool
}

// SourcingResult is the cost of acquiring one ingredient.
type SourcingResult struct {
	Item       string
	Required   int64
	Filled     int64
	Shortfall  int64 // > 0 only under a finite supply model
	RawCost    float64
	Cost       float64 // RawCost with the multi-zone penalty applied
	Zones      []string
	PenaltyPct float64
	Note       string
}

// SkippedRecipe is a recipe excluded from profitability ranking.
type SkippedRecipe struct {
	Product string
	Reason  string
}

// ProfitabilityReport is the ranked crafting analysis.
type ProfitabilityReport struct {
	Records   []market.ProfitabilityRecord
	Evaluated int
	Skipped   []SkippedRecipe
}

// RouteLeg is one computed route.
type RouteLeg struct {
	Cost  float64  // -1 when no path exists
	Path  []string // node ids
	Names []string // display names, aligned with Path
}

// RouteComparison contrasts the shortest route over the full graph with the
// shortest route avoiding the hub and contested portals.
type RouteComparison struct {
	Origin      string
	Destination string
	Resolved    bool
	Safe        RouteLeg
	Unsafe      RouteLeg
}

// ArbitrageParams filters and ranks arbitrage rows.
type ArbitrageParams struct {
	Budget       float64 // max unit buy price
	MinMargin    float64 // percent
	DedupeByItem bool
	Top          int // 0 = all
}

// DefaultArbitrageParams matches the advisor defaults.
func DefaultArbitrageParams() ArbitrageParams {
	return ArbitrageParams{Budget: 2000, MinMargin: 15}
}

// ArbitrageOpportunity is one listing worth buying for resale.
type ArbitrageOpportunity struct {
	Item         string
	Zone         string
	ListingID    string
	SellerHash   string
	Quantity     int64
	BuyPrice     float64
	AvgSalePrice float64
	UnitProfit   float64
	MarginPct    float64
	UnitsSold    int64
	TopZone      string
	Score        float64
}

// ProducerStat counts sellers of matching items per zone.
type ProducerStat struct {
	Zone            string
	UniqueProducers int
	UniqueListings  int
}

// SellerStat summarizes one seller's current stock of matching items.
type SellerStat struct {
	SellerHash   string
	TotalStock   int64
	ListingCount int
	AvgPrice     float64
	Zones        []string
}

// Bargain is a listing priced below the server-wide median of its item.
type Bargain struct {
	Item        string
	Zone        string
	ListingID   string
	SellerHash  string
	Quantity    int64
	Price       float64
	MedianPrice float64
	DiscountPct float64
	ExpiresAt   time.Time // zero when the listing's lifetime is unknown
}
