package catalog

import "strings"

// Classifier assigns a coarse category to an item name.
type Classifier interface {
	Category(item string) string
}

// Category names produced by KeywordClassifier.
const (
	CategoryAlchemy   = "Alchemy"
	CategoryMetal     = "Metal"
	CategoryLeather   = "Leather"
	CategoryTailoring = "Tailoring"
	CategoryWeapon    = "Weapon"
	CategoryArmor     = "Armor"
	CategoryMaterial  = "Material"
	CategoryUnknown   = "Unknown"
)

type keywordRule struct {
	category string
	keywords []string
	exclude  []string
}

// Rules are checked in order; the first match wins.
var defaultRules = []keywordRule{
	{category: CategoryAlchemy, keywords: []string{"potion", "brew", "wine"}},
	{category: CategoryMetal, keywords: []string{"ingot", "ore"}},
	{category: CategoryLeather, keywords: []string{"hide", "leather"}},
	{category: CategoryTailoring, keywords: []string{"linen", "cloth", "fabric", "thread"}},
	{category: CategoryWeapon, keywords: []string{"sword", "axe", "mace", "spear", "bow", "shield", "blade", "point", "pommel"}},
	{category: CategoryArmor,
		keywords: []string{"helmet", "chest", "gloves", "boots", "pants", "tunic", "gambeson", "chainmail", "plate"},
		exclude:  []string{"wrought"}},
}

// KeywordClassifier matches lowercase name keywords. It is best-effort: names
// matching no rule are "Material". When Known is set, names it rejects are
// "Unknown".
type KeywordClassifier struct {
	Known func(item string) bool
}

// NewKeywordClassifier returns a classifier that reports items absent from
// recipes as unknown. A nil catalog disables that check.
func NewKeywordClassifier(recipes Recipes) KeywordClassifier {
	if recipes == nil {
		return KeywordClassifier{}
	}
	known := make(map[string]bool)
	for _, r := range recipes {
		known[r.Product] = true
		for _, ing := range r.Ingredients {
			known[ing.Name] = true
		}
	}
	return KeywordClassifier{Known: func(item string) bool { return known[item] }}
}

// Category implements Classifier.
func (c KeywordClassifier) Category(item string) string {
	if c.Known != nil && !c.Known(item) {
		return CategoryUnknown
	}
	name := strings.ToLower(item)
	for _, rule := range defaultRules {
		if containsAny(name, rule.keywords) && !containsAny(name, rule.exclude) {
			return rule.category
		}
	}
	return CategoryMaterial
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
