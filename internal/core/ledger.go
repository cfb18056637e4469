package core

import "github.com/kurspanel/kurspanel-server/internal/catalog"

// ApplyDelta returns a new counts map with the category adjusted by delta and
// clamped at zero. All other entries are unchanged; the input map is never
// mutated.
func ApplyDelta(counts CategoryCounts, cat catalog.Category, delta int) CategoryCounts {
	next := counts.Clone()
	if next == nil {
		next = CategoryCounts{}
	}
	n := next[cat] + delta
	if n < 0 {
		n = 0
	}
	next[cat] = n
	return next
}

// TotalCount sums all category counts of one school.
func TotalCount(counts CategoryCounts) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// TotalFee sums count*fee over all categories. The category set is closed, so
// a count under a category the catalog has no fee for panics via Catalog.Fee.
func TotalFee(counts CategoryCounts, cat *catalog.Catalog) int {
	total := 0
	for c, n := range counts {
		total += n * cat.Fee(c)
	}
	return total
}

// TotalDifference sums the counts of the "fark" classes, reported as one
// column in the detailed report.
func TotalDifference(counts CategoryCounts) int {
	total := 0
	for _, c := range catalog.DifferenceCategories() {
		total += counts[c]
	}
	return total
}
