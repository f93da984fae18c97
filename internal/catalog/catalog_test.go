package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCatalog = `{
	"Sword": [{"insumo": "Iron Ingot", "qtd": 1}],
	"Linen Tunic": [{"insumo": "Linen Cloth", "qtd": 4}, {"insumo": "Linen String", "qtd": 2}],
	"Broken": [{"insumo": "Flax", "qtd": 0}],
	"Fractional": [{"insumo": "Flax", "qtd": 1.5}],
	"Empty": []
}`

func TestParse_SkipsMalformedRecipes(t *testing.T) {
	rs, err := Parse(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("len = %d, want 2 (%v)", len(rs), rs)
	}
	if rs[0].Product != "Linen Tunic" || rs[1].Product != "Sword" {
		t.Errorf("order = %s, %s; want sorted by product", rs[0].Product, rs[1].Product)
	}
	tunic, ok := rs.Find("Linen Tunic")
	if !ok {
		t.Fatal("Find(Linen Tunic) missing")
	}
	if len(tunic.Ingredients) != 2 || tunic.Ingredients[0] != (Ingredient{Name: "Linen Cloth", Quantity: 4}) {
		t.Errorf("ingredients = %+v", tunic.Ingredients)
	}
	if _, ok := rs.Find("Broken"); ok {
		t.Error("zero-quantity recipe should be skipped")
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse(strings.NewReader("[1,2")); err == nil {
		t.Error("expected decode error")
	}
}

func TestRecipes_Contains(t *testing.T) {
	rs, _ := Parse(strings.NewReader(sampleCatalog))
	for _, tt := range []struct {
		name string
		want bool
	}{
		{"Sword", true},
		{"Iron Ingot", true},
		{"Linen String", true},
		{"Flax", false},
		{"Dragon Egg", false},
	} {
		if got := rs.Contains(tt.name); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogo_manufatura.json")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	rs, err := FileSource{Path: path}.Recipes()
	if err != nil {
		t.Fatalf("Recipes: %v", err)
	}
	if len(rs) != 2 {
		t.Errorf("len = %d, want 2", len(rs))
	}
	if _, err := (FileSource{Path: path + ".missing"}).Recipes(); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestKeywordClassifier(t *testing.T) {
	c := KeywordClassifier{}
	tests := []struct {
		item string
		want string
	}{
		{"Healing Potion", CategoryAlchemy},
		{"Iron Ingot", CategoryMetal},
		{"Copper Ore", CategoryMetal},
		{"Coarse Leather Band", CategoryLeather},
		{"Linen Cloth", CategoryTailoring},
		{"Long Sword", CategoryWeapon},
		{"Padded Gambeson", CategoryArmor},
		{"Wrought Iron Plate", CategoryMaterial},
		{"Flax", CategoryMaterial},
	}
	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			if got := c.Category(tt.item); got != tt.want {
				t.Errorf("Category(%q) = %q, want %q", tt.item, got, tt.want)
			}
		})
	}
}

func TestKeywordClassifier_UnknownOutsideCatalog(t *testing.T) {
	rs, _ := Parse(strings.NewReader(sampleCatalog))
	c := NewKeywordClassifier(rs)
	if got := c.Category("Sword"); got != CategoryWeapon {
		t.Errorf("Category(Sword) = %q, want Weapon", got)
	}
	if got := c.Category("Dragon Egg"); got != CategoryUnknown {
		t.Errorf("Category(Dragon Egg) = %q, want Unknown", got)
	}
	if got := NewKeywordClassifier(nil).Category("Dragon Egg"); got != CategoryMaterial {
		t.Errorf("nil catalog Category = %q, want Material", got)
	}
}
