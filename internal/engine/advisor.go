package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"pax-advisor/internal/catalog"
	"pax-advisor/internal/logger"
	"pax-advisor/internal/market"
	"pax-advisor/internal/metrics"
)

// Advisor wires the engine components to their data sources. The components
// themselves stay pure; Advisor only loads inputs and records run durations.
type Advisor struct {
	Snapshots  SnapshotSource
	Recipes    RecipeSource
	Classifier catalog.Classifier // nil: keyword rules over the loaded catalog
	Planner    *RoutePlanner
	Sourcer    Sourcer
}

// NewAdvisor creates an Advisor with the default sourcing model.
func NewAdvisor(snaps SnapshotSource, recipes RecipeSource, planner *RoutePlanner) *Advisor {
	return &Advisor{
		Snapshots: snaps,
		Recipes:   recipes,
		Planner:   planner,
		Sourcer:   NewSourcer(),
	}
}

// Liquidity estimates churn between the two latest snapshots.
func (a *Advisor) Liquidity(ctx context.Context) (LiquidityReport, error) {
	defer metrics.ObserveRun("churn", time.Now())
	return LatestLiquidity(ctx, a.Snapshots)
}

// history loads every snapshot captured at or after since; a zero since
// loads the full history.
func (a *Advisor) history(ctx context.Context, since time.Time) ([]market.Snapshot, error) {
	var (
		snaps []market.Snapshot
		err   error
	)
	if since.IsZero() {
		snaps, _, err = a.Snapshots.All(ctx)
	} else {
		snaps, _, err = a.Snapshots.AllInWindow(ctx, since, time.Time{})
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return snaps, nil
}

// History returns the price and churn series for items matching query over
// snapshots captured since the given time (zero: all).
func (a *Advisor) History(ctx context.Context, query string, since time.Time) (ItemHistoryResult, error) {
	defer metrics.ObserveRun("history", time.Now())
	snaps, err := a.history(ctx, since)
	if err != nil {
		return ItemHistoryResult{}, err
	}
	return ItemHistory(snaps, query), nil
}

// Producers counts sellers per zone for items matching query across history.
func (a *Advisor) Producers(ctx context.Context, query string) ([]ProducerStat, error) {
	defer metrics.ObserveRun("producers", time.Now())
	snaps, err := a.history(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	return ProducerStats(snaps, query), nil
}

func (a *Advisor) latest(ctx context.Context) (market.Snapshot, bool, error) {
	snap, ok, err := a.Snapshots.Latest(ctx)
	if err != nil {
		return market.Snapshot{}, false, fmt.Errorf("load latest snapshot: %w", err)
	}
	return snap, ok, nil
}

// Sellers ranks current sellers of items matching query.
func (a *Advisor) Sellers(ctx context.Context, query string) ([]SellerStat, error) {
	defer metrics.ObserveRun("sellers", time.Now())
	snap, ok, err := a.latest(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return TopSellers(snap, query), nil
}

// Search lists current item names containing query.
func (a *Advisor) Search(ctx context.Context, query string, limit int) ([]string, error) {
	snap, ok, err := a.latest(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return SearchItems(snap, query, limit), nil
}

// Crafting ranks recipes by spread over the latest snapshot. noData is true
// when there is no snapshot to price against or no recipe catalog file.
// A catalog that exists but cannot be read or parsed is an error.
func (a *Advisor) Crafting(ctx context.Context, top int) (report ProfitabilityReport, noData bool, err error) {
	defer metrics.ObserveRun("crafting", time.Now())
	snap, ok, err := a.latest(ctx)
	if err != nil {
		return ProfitabilityReport{}, false, err
	}
	if !ok {
		return ProfitabilityReport{}, true, nil
	}
	recipes, err := a.Recipes.Recipes()
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Crafting", fmt.Sprintf("no recipe catalog: %v", err))
		return ProfitabilityReport{}, true, nil
	}
	if err != nil {
		return ProfitabilityReport{}, false, fmt.Errorf("load recipes: %w", err)
	}
	classifier := a.Classifier
	if classifier == nil {
		classifier = catalog.NewKeywordClassifier(recipes)
	}
	report, err = AnalyzeProfitability(BuildPriceBook(snap), recipes, ProfitabilityOptions{
		Sourcer:    a.Sourcer,
		Classifier: classifier,
		Top:        top,
	})
	return report, false, err
}

// Arbitrage scores current listings against the given liquidity records.
func (a *Advisor) Arbitrage(ctx context.Context, liquidity []market.LiquidityRecord, params ArbitrageParams) ([]ArbitrageOpportunity, error) {
	defer metrics.ObserveRun("arbitrage", time.Now())
	snap, ok, err := a.latest(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return FindArbitrage(snap.Listings(), liquidity, params)
}

// Bargains finds below-median listings of items in the given zones.
func (a *Advisor) Bargains(ctx context.Context, items, zones []string) ([]Bargain, error) {
	defer metrics.ObserveRun("bargains", time.Now())
	snap, ok, err := a.latest(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return ZoneBargains(snap, items, zones), nil
}

// Route compares the safe and unsafe routes between two settlements.
func (a *Advisor) Route(from, to string) RouteComparison {
	defer metrics.ObserveRun("route", time.Now())
	return a.Planner.CompareRoutes(from, to)
}
