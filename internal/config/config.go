package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supply models for the sourcing order-book walk.
const (
	SupplyUnlimited = "unlimited" // each listing can cover the whole remaining requirement
	SupplyListed    = "listed"    // each listing supplies at most its listed quantity
)

// Config holds application settings (in-memory representation).
// Loaded from an optional YAML file, then .env, then PAX_* environment variables.
type Config struct {
	DataDir        string `json:"data_dir" yaml:"data_dir"`
	HistoryDir     string `json:"history_dir" yaml:"history_dir"`
	LatestFile     string `json:"latest_file" yaml:"latest_file"`
	CatalogFile    string `json:"catalog_file" yaml:"catalog_file"`
	LiquidityCache string `json:"liquidity_cache" yaml:"liquidity_cache"`
	CraftingCache  string `json:"crafting_cache" yaml:"crafting_cache"`
	DBPath         string `json:"db_path" yaml:"db_path"`
	TopologyFile   string `json:"topology_file" yaml:"topology_file"` // "" = built-in topology
	ClientOrders   string `json:"client_orders" yaml:"client_orders"` // items wanted by clients, for bargains
	Suppliers      string `json:"suppliers" yaml:"suppliers"`

	Port int `json:"port" yaml:"port"`

	// Arbitrage defaults (caller-overridable per request).
	Budget    float64 `json:"budget" yaml:"budget"`
	MinMargin float64 `json:"min_margin" yaml:"min_margin"`

	// Sourcing.
	ZonePenaltyPct float64 `json:"zone_penalty_pct" yaml:"zone_penalty_pct"`
	SupplyModel    string  `json:"supply_model" yaml:"supply_model"`
	TopRecipes     int     `json:"top_recipes" yaml:"top_recipes"`

	// Zone keywords searched for bargains when a request names none.
	BargainZones []string `json:"bargain_zones" yaml:"bargain_zones"`

	// Snapshot store.
	LoadWorkers     int `json:"load_workers" yaml:"load_workers"`
	WatchDebounceMs int `json:"watch_debounce_ms" yaml:"watch_debounce_ms"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir:         "data",
		HistoryDir:      filepath.Join("data", "history"),
		LatestFile:      filepath.Join("data", "selene_latest.parquet"),
		CatalogFile:     filepath.Join("data", "catalogo_manufatura.json"),
		LiquidityCache:  filepath.Join("data", "liquidez_diaria.csv"),
		CraftingCache:   filepath.Join("data", "analise_disparidade.csv"),
		DBPath:          filepath.Join("data", "pax-advisor.db"),
		ClientOrders:    filepath.Join("data", "client_orders.csv"),
		Suppliers:       filepath.Join("data", "suppliers.csv"),
		Port:            8000,
		Budget:          2000,
		MinMargin:       15,
		ZonePenaltyPct:  5,
		SupplyModel:     SupplyUnlimited,
		TopRecipes:      20,
		BargainZones:    []string{"ulaid", "yarborne", "ardbog", "down", "nene"},
		LoadWorkers:     4,
		WatchDebounceMs: 500,
	}
}

// Load reads path (YAML) over the defaults. A missing file is not an error.
// Afterwards .env is loaded (if present) and PAX_* variables override fields.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// .env only fills variables that are not already set.
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"PAX_DATA_DIR":        &c.DataDir,
		"PAX_HISTORY_DIR":     &c.HistoryDir,
		"PAX_LATEST_FILE":     &c.LatestFile,
		"PAX_CATALOG_FILE":    &c.CatalogFile,
		"PAX_LIQUIDITY_CACHE": &c.LiquidityCache,
		"PAX_CRAFTING_CACHE":  &c.CraftingCache,
		"PAX_DB_PATH":         &c.DBPath,
		"PAX_TOPOLOGY_FILE":   &c.TopologyFile,
		"PAX_CLIENT_ORDERS":   &c.ClientOrders,
		"PAX_SUPPLIERS":       &c.Suppliers,
		"PAX_SUPPLY_MODEL":    &c.SupplyModel,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PAX_PORT":              &c.Port,
		"PAX_TOP_RECIPES":       &c.TopRecipes,
		"PAX_LOAD_WORKERS":      &c.LoadWorkers,
		"PAX_WATCH_DEBOUNCE_MS": &c.WatchDebounceMs,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"PAX_BUDGET":           &c.Budget,
		"PAX_MIN_MARGIN":       &c.MinMargin,
		"PAX_ZONE_PENALTY_PCT": &c.ZonePenaltyPct,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	return nil
}

// Validate rejects settings the engine treats as contract violations.
func (c *Config) Validate() error {
	if c.Budget < 0 {
		return fmt.Errorf("budget must be >= 0, got %v", c.Budget)
	}
	if c.MinMargin < 0 {
		return fmt.Errorf("min_margin must be >= 0, got %v", c.MinMargin)
	}
	if c.ZonePenaltyPct < 0 {
		return fmt.Errorf("zone_penalty_pct must be >= 0, got %v", c.ZonePenaltyPct)
	}
	if c.LoadWorkers <= 0 {
		return fmt.Errorf("load_workers must be > 0, got %d", c.LoadWorkers)
	}
	switch c.SupplyModel {
	case SupplyUnlimited, SupplyListed:
	default:
		return fmt.Errorf("supply_model must be %q or %q, got %q", SupplyUnlimited, SupplyListed, c.SupplyModel)
	}
	return nil
}
