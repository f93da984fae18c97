package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"pax-advisor/internal/logger"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Missing table on a fresh database leaves version at 0.
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id      TEXT NOT NULL UNIQUE,
				timestamp   TEXT NOT NULL,
				kind        TEXT NOT NULL,
				source      TEXT NOT NULL DEFAULT 'live',
				count       INTEGER NOT NULL,
				top_value   REAL NOT NULL,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				params_json TEXT DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp);

			CREATE TABLE IF NOT EXISTS liquidity_results (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id         INTEGER NOT NULL REFERENCES runs(id),
				item           TEXT NOT NULL,
				units_sold     INTEGER,
				total_volume   REAL,
				top_zone       TEXT,
				top_zone_sales INTEGER
			);
			CREATE INDEX IF NOT EXISTS idx_liquidity_run ON liquidity_results(run_id);

			CREATE TABLE IF NOT EXISTS crafting_results (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id        INTEGER NOT NULL REFERENCES runs(id),
				product       TEXT NOT NULL,
				category      TEXT,
				material_cost REAL,
				sell_price    REAL,
				spread        REAL,
				margin_pct    REAL,
				method        TEXT,
				sourcing      TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_crafting_run ON crafting_results(run_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS arbitrage_results (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id         INTEGER NOT NULL REFERENCES runs(id),
				item           TEXT NOT NULL,
				zone           TEXT,
				listing_id     TEXT,
				seller_hash    TEXT,
				quantity       INTEGER,
				buy_price      REAL,
				avg_sale_price REAL,
				unit_profit    REAL,
				margin_pct     REAL,
				units_sold     INTEGER,
				top_zone       TEXT,
				score          REAL
			);
			CREATE INDEX IF NOT EXISTS idx_arbitrage_run ON arbitrage_results(run_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (arbitrage results)")
	}

	return nil
}
