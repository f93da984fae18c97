// Package export writes engine results to an xlsx workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"pax-advisor/internal/engine"
	"pax-advisor/internal/market"
)

// Sheet names, in workbook order.
const (
	SheetLiquidity = "Liquidity"
	SheetCrafting  = "Crafting"
	SheetArbitrage = "Arbitrage"
)

// Report is the set of tables written to the workbook. Empty tables still get
// a sheet with a header row.
type Report struct {
	Liquidity []market.LiquidityRecord
	Crafting  []market.ProfitabilityRecord
	Arbitrage []engine.ArbitrageOpportunity
}

type table struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

func (r Report) tables() []table {
	liq := table{name: SheetLiquidity, header: []interface{}{"Item", "Units_Sold", "Total_Volume", "Avg_Sale_Price", "Top_Zone", "Top_Zone_Sales"}}
	for _, l := range r.Liquidity {
		liq.rows = append(liq.rows, []interface{}{l.Item, l.UnitsSold, l.TotalVolume, l.AvgSalePrice(), l.TopZone, l.TopZoneSales})
	}

	craft := table{name: SheetCrafting, header: []interface{}{"Produto", "Categoria", "Custo_Manufatura", "Preco_Venda", "Spread", "Margem_Perc", "Mercado_Venda", "Sourcing_Insumos"}}
	for _, c := range r.Crafting {
		craft.rows = append(craft.rows, []interface{}{c.Product, c.Category, c.MaterialCost, c.SellPrice, c.Spread, c.MarginPct, c.SellPriceMethod, c.Sourcing})
	}

	arb := table{name: SheetArbitrage, header: []interface{}{"Item", "Zone", "ListingID", "Buy_Price", "Avg_Sale_Price", "Unit_Profit", "Margin", "Units_Sold", "Top_Zone", "Score"}}
	for _, a := range r.Arbitrage {
		arb.rows = append(arb.rows, []interface{}{a.Item, a.Zone, a.ListingID, a.BuyPrice, a.AvgSalePrice, a.UnitProfit, a.MarginPct, a.UnitsSold, a.TopZone, a.Score})
	}
	return []table{liq, craft, arb}
}

func build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, t := range r.tables() {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), t.name)
		} else {
			_, err = f.NewSheet(t.name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", t.name, err)
		}
		if err := writeTable(f, t, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeTable(f *excelize.File, t table, headerStyle int) error {
	if err := f.SetSheetRow(t.name, "A1", &t.header); err != nil {
		return fmt.Errorf("sheet %s header: %w", t.name, err)
	}
	if err := f.SetRowStyle(t.name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("sheet %s header style: %w", t.name, err)
	}
	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.name, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", t.name, i+2, err)
		}
	}
	return nil
}

// Write encodes the workbook to w.
func Write(w io.Writer, r Report) error {
	f, err := build(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Save writes the workbook to path.
func Save(path string, r Report) error {
	f, err := build(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}
