package engine

import (
	"context"
	"time"

	"pax-advisor/internal/catalog"
	"pax-advisor/internal/market"
	"pax-advisor/internal/snapshot"
)

// SnapshotSource gives ordered read access to market snapshots.
// *snapshot.Store satisfies it.
type SnapshotSource interface {
	Latest(ctx context.Context) (market.Snapshot, bool, error)
	LastN(ctx context.Context, n int) ([]market.Snapshot, snapshot.LoadReport, error)
	All(ctx context.Context) ([]market.Snapshot, snapshot.LoadReport, error)
	AllInWindow(ctx context.Context, start, end time.Time) ([]market.Snapshot, snapshot.LoadReport, error)
}

// RecipeSource supplies the recipe catalog.
type RecipeSource interface {
	Recipes() (catalog.Recipes, error)
}
