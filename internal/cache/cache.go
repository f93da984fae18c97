// Package cache persists the latest liquidity and crafting results as flat CSV
// files so they can be served when a live computation yields nothing.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"pax-advisor/internal/market"
)

// ErrNotCached is returned when a cache file does not exist yet.
var ErrNotCached = errors.New("not cached")

// Cache reads and writes the two CSV result files.
type Cache struct {
	LiquidityPath string
	CraftingPath  string
}

// New returns a Cache over the given files.
func New(liquidityPath, craftingPath string) *Cache {
	return &Cache{LiquidityPath: liquidityPath, CraftingPath: craftingPath}
}

// ReadLiquidity loads cached liquidity rows.
func (c *Cache) ReadLiquidity() ([]market.LiquidityRecord, error) {
	var rows []market.LiquidityRecord
	if err := readCSV(c.LiquidityPath, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// WriteLiquidity replaces the liquidity cache.
func (c *Cache) WriteLiquidity(rows []market.LiquidityRecord) error {
	return writeCSV(c.LiquidityPath, &rows)
}

// ReadCrafting loads cached profitability rows ordered by spread, largest
// first. Category and per-ingredient detail are not cached.
func (c *Cache) ReadCrafting() ([]market.ProfitabilityRecord, error) {
	var rows []market.ProfitabilityRecord
	if err := readCSV(c.CraftingPath, &rows); err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Spread > rows[j].Spread })
	return rows, nil
}

// WriteCrafting replaces the crafting cache.
func (c *Cache) WriteCrafting(rows []market.ProfitabilityRecord) error {
	return writeCSV(c.CraftingPath, &rows)
}

// ClientOrder is one row of the client orders sheet; extra columns are ignored.
type ClientOrder struct {
	Item     string `csv:"Item"`
	Quantity int64  `csv:"Quantity,omitempty"`
	Client   string `csv:"Client,omitempty"`
}

// ReadClientItems returns the distinct item names of a client orders CSV, in
// file order.
func ReadClientItems(path string) ([]string, error) {
	var orders []ClientOrder
	if err := readCSV(path, &orders); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(orders))
	var items []string
	for _, o := range orders {
		if o.Item == "" || seen[o.Item] {
			continue
		}
		seen[o.Item] = true
		items = append(items, o.Item)
	}
	return items, nil
}

// ReadTable loads any CSV sheet as rows keyed by header, keeping every column.
func ReadTable(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotCached)
	}
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		return nil, nil
	}
	rows, err := gocsv.CSVToMaps(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rows, nil
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotCached)
	}
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeCSV writes through a temp file and renames it so readers never see a
// partial file.
func writeCSV(path string, in any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := gocsv.MarshalFile(in, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
