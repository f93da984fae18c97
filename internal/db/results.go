package db

import (
	"fmt"
	"log"

	"pax-advisor/internal/engine"
	"pax-advisor/internal/market"
)

// insertRows runs stmtSQL once per row inside one transaction.
func (d *DB) insertRows(name, stmtSQL string, n int, args func(i int) []any) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("%s begin tx: %w", name, err)
	}
	stmt, err := tx.Prepare(stmtSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%s prepare: %w", name, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.Exec(args(i)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("%s row %d: %w", name, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", name, err)
	}
	return nil
}

// InsertLiquidityResults stores liquidity rows for a run.
func (d *DB) InsertLiquidityResults(runID int64, rows []market.LiquidityRecord) error {
	if runID == 0 || len(rows) == 0 {
		return nil
	}
	return d.insertRows("InsertLiquidityResults", `INSERT INTO liquidity_results (
		run_id, item, units_sold, total_volume, top_zone, top_zone_sales
	) VALUES (?,?,?,?,?,?)`, len(rows), func(i int) []any {
		r := rows[i]
		return []any{runID, r.Item, r.UnitsSold, r.TotalVolume, r.TopZone, r.TopZoneSales}
	})
}

// GetLiquidityResults retrieves liquidity rows for a run, in stored order.
func (d *DB) GetLiquidityResults(runID int64) []market.LiquidityRecord {
	rows, err := d.sql.Query(`
		SELECT item, units_sold, total_volume, top_zone, top_zone_sales
		FROM liquidity_results WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		log.Printf("[DB] GetLiquidityResults: %v", err)
		return nil
	}
	defer rows.Close()

	var results []market.LiquidityRecord
	for rows.Next() {
		var r market.LiquidityRecord
		if err := rows.Scan(&r.Item, &r.UnitsSold, &r.TotalVolume, &r.TopZone, &r.TopZoneSales); err != nil {
			log.Printf("[DB] GetLiquidityResults scan: %v", err)
			continue
		}
		results = append(results, r)
	}
	return results
}

// InsertCraftingResults stores profitability rows for a run.
func (d *DB) InsertCraftingResults(runID int64, rows []market.ProfitabilityRecord) error {
	if runID == 0 || len(rows) == 0 {
		return nil
	}
	return d.insertRows("InsertCraftingResults", `INSERT INTO crafting_results (
		run_id, product, category, material_cost, sell_price,
		spread, margin_pct, method, sourcing
	) VALUES (?,?,?,?,?,?,?,?,?)`, len(rows), func(i int) []any {
		r := rows[i]
		return []any{runID, r.Product, r.Category, r.MaterialCost, r.SellPrice,
			r.Spread, r.MarginPct, r.SellPriceMethod, r.Sourcing}
	})
}

// GetCraftingResults retrieves profitability rows for a run.
func (d *DB) GetCraftingResults(runID int64) []market.ProfitabilityRecord {
	rows, err := d.sql.Query(`
		SELECT product, COALESCE(category, ''), material_cost, sell_price,
			spread, margin_pct, COALESCE(method, ''), COALESCE(sourcing, '')
		FROM crafting_results WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		log.Printf("[DB] GetCraftingResults: %v", err)
		return nil
	}
	defer rows.Close()

	var results []market.ProfitabilityRecord
	for rows.Next() {
		var r market.ProfitabilityRecord
		if err := rows.Scan(&r.Product, &r.Category, &r.MaterialCost, &r.SellPrice,
			&r.Spread, &r.MarginPct, &r.SellPriceMethod, &r.Sourcing); err != nil {
			log.Printf("[DB] GetCraftingResults scan: %v", err)
			continue
		}
		results = append(results, r)
	}
	return results
}

// InsertArbitrageResults stores arbitrage rows for a run.
func (d *DB) InsertArbitrageResults(runID int64, rows []engine.ArbitrageOpportunity) error {
	if runID == 0 || len(rows) == 0 {
		return nil
	}
	return d.insertRows("InsertArbitrageResults", `INSERT INTO arbitrage_results (
		run_id, item, zone, listing_id, seller_hash, quantity, buy_price,
		avg_sale_price, unit_profit, margin_pct, units_sold, top_zone, score
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`, len(rows), func(i int) []any {
		r := rows[i]
		return []any{runID, r.Item, r.Zone, r.ListingID, r.SellerHash, r.Quantity, r.BuyPrice,
			r.AvgSalePrice, r.UnitProfit, r.MarginPct, r.UnitsSold, r.TopZone, r.Score}
	})
}

// GetArbitrageResults retrieves arbitrage rows for a run.
func (d *DB) GetArbitrageResults(runID int64) []engine.ArbitrageOpportunity {
	rows, err := d.sql.Query(`
		SELECT item, COALESCE(zone, ''), COALESCE(listing_id, ''), COALESCE(seller_hash, ''),
			quantity, buy_price, avg_sale_price, unit_profit, margin_pct,
			units_sold, COALESCE(top_zone, ''), score
		FROM arbitrage_results WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		log.Printf("[DB] GetArbitrageResults: %v", err)
		return nil
	}
	defer rows.Close()

	var results []engine.ArbitrageOpportunity
	for rows.Next() {
		var r engine.ArbitrageOpportunity
		if err := rows.Scan(&r.Item, &r.Zone, &r.ListingID, &r.SellerHash,
			&r.Quantity, &r.BuyPrice, &r.AvgSalePrice, &r.UnitProfit, &r.MarginPct,
			&r.UnitsSold, &r.TopZone, &r.Score); err != nil {
			log.Printf("[DB] GetArbitrageResults scan: %v", err)
			continue
		}
		results = append(results, r)
	}
	return results
}
