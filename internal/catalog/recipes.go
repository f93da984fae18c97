package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"pax-advisor/internal/logger"
)

// Ingredient is one input of a recipe.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// Recipe maps a craftable product to its ordered ingredient list.
type Recipe struct {
	Product     string       `json:"product"`
	Ingredients []Ingredient `json:"ingredients"`
}

// Recipes is a loaded catalog, sorted by product name.
type Recipes []Recipe

// Find returns the recipe for product.
func (rs Recipes) Find(product string) (Recipe, bool) {
	i := sort.Search(len(rs), func(i int) bool { return rs[i].Product >= product })
	if i < len(rs) && rs[i].Product == product {
		return rs[i], true
	}
	return Recipe{}, false
}

// Contains reports whether name appears as a product or an ingredient.
func (rs Recipes) Contains(name string) bool {
	if _, ok := rs.Find(name); ok {
		return true
	}
	for _, r := range rs {
		for _, ing := range r.Ingredients {
			if ing.Name == name {
				return true
			}
		}
	}
	return false
}

// rawIngredient is the catalog file row: {"insumo": "<ingredient>", "qtd": <n>}.
type rawIngredient struct {
	Name     string  `json:"insumo"`
	Quantity float64 `json:"qtd"`
}

// Parse decodes a catalog. Recipes with an empty ingredient list, an unnamed
// ingredient, or a quantity that is not a positive integer are skipped with a
// warning; the rest load.
func Parse(r io.Reader) (Recipes, error) {
	var raw map[string][]rawIngredient
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	out := make(Recipes, 0, len(raw))
	skipped := 0
	for product, rows := range raw {
		recipe, err := buildRecipe(product, rows)
		if err != nil {
			logger.Warn("Catalog", err.Error())
			skipped++
			continue
		}
		out = append(out, recipe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	if skipped > 0 {
		logger.Warn("Catalog", fmt.Sprintf("Skipped %d malformed recipes", skipped))
	}
	return out, nil
}

func buildRecipe(product string, rows []rawIngredient) (Recipe, error) {
	if product == "" {
		return Recipe{}, fmt.Errorf("recipe without product name")
	}
	if len(rows) == 0 {
		return Recipe{}, fmt.Errorf("recipe %q has no ingredients", product)
	}
	ings := make([]Ingredient, 0, len(rows))
	for _, row := range rows {
		if row.Name == "" {
			return Recipe{}, fmt.Errorf("recipe %q has an unnamed ingredient", product)
		}
		if row.Quantity <= 0 || row.Quantity != math.Trunc(row.Quantity) {
			return Recipe{}, fmt.Errorf("recipe %q: ingredient %q has invalid quantity %v", product, row.Name, row.Quantity)
		}
		ings = append(ings, Ingredient{Name: row.Name, Quantity: int64(row.Quantity)})
	}
	return Recipe{Product: product, Ingredients: ings}, nil
}

// Load reads the catalog file at path.
func Load(path string) (Recipes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// FileSource serves recipes from a catalog file, re-reading it on each call
// so edits by the catalog ETL are picked up.
type FileSource struct {
	Path string
}

// Recipes loads the catalog.
func (s FileSource) Recipes() (Recipes, error) {
	return Load(s.Path)
}
