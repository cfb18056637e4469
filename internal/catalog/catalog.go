package catalog

import "fmt"

// Category is one of the fixed license/training classes a school enrolls
// candidates into. The set is closed: it comes from static configuration and
// never grows at runtime.
type Category string

const (
	CategoryB          Category = "B"
	CategoryA1         Category = "A1"
	CategoryA2         Category = "A2"
	CategoryC          Category = "C"
	CategoryD          Category = "D"
	CategoryFarkA1     Category = "FARK_A1"
	CategoryFarkA2     Category = "FARK_A2"
	CategoryBakanlikA1 Category = "BAKANLIK_A1"
)

// categories is the closed set in display order.
var categories = []Category{
	CategoryB,
	CategoryA1,
	CategoryA2,
	CategoryC,
	CategoryD,
	CategoryFarkA1,
	CategoryFarkA2,
	CategoryBakanlikA1,
}

// differenceCategories are the "fark" classes reported as a single column in
// the detailed report.
var differenceCategories = []Category{
	CategoryFarkA1,
	CategoryFarkA2,
	CategoryBakanlikA1,
}

// Catalog holds the static per-category configuration: fees in whole TL and
// human-readable display names. Immutable for the process lifetime once
// loaded.
type Catalog struct {
	fees  map[Category]int
	names map[Category]string
}

// Default returns the catalog with the production fee table and Turkish
// display names.
func Default() *Catalog {
	return &Catalog{
		fees: map[Category]int{
			CategoryB:          7500,
			CategoryA1:         5000,
			CategoryA2:         6000,
			CategoryC:          9000,
			CategoryD:          10000,
			CategoryFarkA1:     2500,
			CategoryFarkA2:     3000,
			CategoryBakanlikA1: 2000,
		},
		names: map[Category]string{
			CategoryB:          "B Sınıfı",
			CategoryA1:         "A1 Sınıfı",
			CategoryA2:         "A2 Sınıfı",
			CategoryC:          "C Sınıfı",
			CategoryD:          "D Sınıfı",
			CategoryFarkA1:     "A1 Fark",
			CategoryFarkA2:     "A2 Fark",
			CategoryBakanlikA1: "Bakanlık A1",
		},
	}
}

// WithFees returns a copy of the catalog with fee overrides applied. Unknown
// category keys in the override map are rejected, keeping the set closed.
func (c *Catalog) WithFees(overrides map[string]int) (*Catalog, error) {
	next := &Catalog{
		fees:  make(map[Category]int, len(c.fees)),
		names: c.names,
	}
	for cat, fee := range c.fees {
		next.fees[cat] = fee
	}
	for key, fee := range overrides {
		cat := Category(key)
		if !Known(cat) {
			return nil, fmt.Errorf("unknown category %q in fee overrides", key)
		}
		if fee < 0 {
			return nil, fmt.Errorf("negative fee for category %q", key)
		}
		next.fees[cat] = fee
	}
	return next, nil
}

// Categories returns the closed category set in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// DifferenceCategories returns the classes grouped under the FARK column of
// the detailed report.
func DifferenceCategories() []Category {
	out := make([]Category, len(differenceCategories))
	copy(out, differenceCategories)
	return out
}

// Known reports whether cat is part of the closed set.
func Known(cat Category) bool {
	for _, c := range categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Fee returns the fee for a category. The category set is closed, so asking
// for an unknown category is a programming error and panics.
func (c *Catalog) Fee(cat Category) int {
	fee, ok := c.fees[cat]
	if !ok {
		panic(fmt.Sprintf("catalog: no fee configured for category %q", cat))
	}
	return fee
}

// Name returns the display name for a category, falling back to the raw key.
func (c *Catalog) Name(cat Category) string {
	if name, ok := c.names[cat]; ok {
		return name
	}
	return string(cat)
}
