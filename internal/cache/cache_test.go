package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pax-advisor/internal/market"
)

func newTestCache(t *testing.T) *Cache {
	dir := t.TempDir()
	return New(filepath.Join(dir, "liquidez_diaria.csv"), filepath.Join(dir, "analise_disparidade.csv"))
}

func TestLiquidity_RoundTripKeepsColumnNames(t *testing.T) {
	c := newTestCache(t)
	rows := []market.LiquidityRecord{
		{Item: "Iron Ingot", UnitsSold: 3, TotalVolume: 31.5, TopZone: "kerys-aven", TopZoneSales: 2},
		{Item: "Wool", UnitsSold: 1, TotalVolume: 4, TopZone: "merrie-ham", TopZoneSales: 1},
	}
	require.NoError(t, c.WriteLiquidity(rows))

	raw, err := os.ReadFile(c.LiquidityPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Item,Units_Sold,Total_Volume,Top_Zone,Top_Zone_Sales")

	got, err := c.ReadLiquidity()
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestLiquidity_ReadsExternalFile(t *testing.T) {
	c := newTestCache(t)
	csv := "Item,Units_Sold,Total_Volume,Top_Zone,Top_Zone_Sales,Extra\n" +
		"Flax,7,21.0,ancien-egeb,4,x\n"
	require.NoError(t, os.WriteFile(c.LiquidityPath, []byte(csv), 0o644))

	got, err := c.ReadLiquidity()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, market.LiquidityRecord{Item: "Flax", UnitsSold: 7, TotalVolume: 21, TopZone: "ancien-egeb", TopZoneSales: 4}, got[0])
}

func TestCrafting_RoundTripDropsDetail(t *testing.T) {
	c := newTestCache(t)
	rows := []market.ProfitabilityRecord{{
		Product:         "Sword",
		Category:        "Weapon",
		MaterialCost:    10,
		SellPrice:       50,
		Spread:          40,
		MarginPct:       80,
		SellPriceMethod: "Weighted Median",
		Sourcing:        "Iron Ingot: 1 Zones (+0%)",
		Ingredients:     []market.IngredientSourcing{{Item: "Iron Ingot", Required: 1}},
	}}
	require.NoError(t, c.WriteCrafting(rows))

	raw, err := os.ReadFile(c.CraftingPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Produto,Custo_Manufatura,Preco_Venda,Spread,Margem_Perc,Mercado_Venda,Sourcing_Insumos")

	got, err := c.ReadCrafting()
	require.NoError(t, err)
	require.Len(t, got, 1)
	want := rows[0]
	want.Category = ""
	want.Ingredients = nil
	assert.Equal(t, want, got[0])
}

func TestRead_MissingFileIsNotCached(t *testing.T) {
	c := newTestCache(t)
	_, err := c.ReadLiquidity()
	assert.ErrorIs(t, err, ErrNotCached)
	_, err = c.ReadCrafting()
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestWrite_EmptyThenRead(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.WriteLiquidity(nil))
	got, err := c.ReadLiquidity()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadClientItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_orders.csv")
	csv := "Client,Item,Quantity\nann,Wool,10\nbob,Flax,2\ncid,Wool,5\ndee,,1\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	items, err := ReadClientItems(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Wool", "Flax"}, items)

	_, err = ReadClientItems(path + ".missing")
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestCrafting_ExternalFileSortedBySpread(t *testing.T) {
	c := newTestCache(t)
	csv := "Produto,Custo_Manufatura,Preco_Venda,Spread,Margem_Perc,Mercado_Venda,Sourcing_Insumos\n" +
		"Rope,5,10,5,50,Weighted Median,\n" +
		"Sword,10,50,40,80,Weighted Median,\n" +
		"Cloak,20,45,25,55.6,Weighted Median,\n"
	require.NoError(t, os.WriteFile(c.CraftingPath, []byte(csv), 0o644))

	got, err := c.ReadCrafting()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Sword", "Cloak", "Rope"}, []string{got[0].Product, got[1].Product, got[2].Product})
}

func TestReadTable_KeepsEveryColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppliers.csv")
	csv := "Supplier,Item,Zone\nhalla,Iron Ore,ulaid-mora\nbrisk,Flax,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	rows, err := ReadTable(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"Supplier": "halla", "Item": "Iron Ore", "Zone": "ulaid-mora"}, rows[0])
	assert.Equal(t, "", rows[1]["Zone"])

	_, err = ReadTable(path + ".missing")
	assert.ErrorIs(t, err, ErrNotCached)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	rows, err = ReadTable(empty)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
