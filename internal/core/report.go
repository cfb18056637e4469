package core

import "github.com/kurspanel/kurspanel-server/internal/catalog"

// SchoolRow is one line of the detailed cross-school report.
type SchoolRow struct {
	School     School
	Total      int
	Fee        int
	Difference int
}

// Report is the full cross-school report derived from a registry snapshot.
// Recomputed from scratch on every snapshot change; input sizes are tens of
// schools, nothing here is cached.
type Report struct {
	Rows            []SchoolRow
	TotalCandidates int
	TotalFee        int
	TotalDifference int
	PerCategory     map[catalog.Category]int
}

// TotalAcrossSchools sums the candidate counts of every school in the
// snapshot.
func TotalAcrossSchools(snapshot []School) int {
	total := 0
	for _, s := range snapshot {
		total += TotalCount(s.Candidates)
	}
	return total
}

// TotalFeeAcrossSchools sums the fees of every school in the snapshot.
func TotalFeeAcrossSchools(snapshot []School, cat *catalog.Catalog) int {
	total := 0
	for _, s := range snapshot {
		total += TotalFee(s.Candidates, cat)
	}
	return total
}

// PerCategoryTotals sums each category's count across all schools. Every
// known category is present in the result, defaulting to zero.
func PerCategoryTotals(snapshot []School) map[catalog.Category]int {
	totals := make(map[catalog.Category]int, len(catalog.Categories()))
	for _, c := range catalog.Categories() {
		totals[c] = 0
	}
	for _, s := range snapshot {
		for c, n := range s.Candidates {
			totals[c] += n
		}
	}
	return totals
}

// BuildReport derives the detailed report from a snapshot: one row per school
// in snapshot order plus grand totals.
func BuildReport(snapshot []School, cat *catalog.Catalog) Report {
	rep := Report{
		Rows:        make([]SchoolRow, 0, len(snapshot)),
		PerCategory: PerCategoryTotals(snapshot),
	}
	for _, s := range snapshot {
		row := SchoolRow{
			School:     s.Clone(),
			Total:      TotalCount(s.Candidates),
			Fee:        TotalFee(s.Candidates, cat),
			Difference: TotalDifference(s.Candidates),
		}
		rep.Rows = append(rep.Rows, row)
		rep.TotalCandidates += row.Total
		rep.TotalFee += row.Fee
		rep.TotalDifference += row.Difference
	}
	return rep
}
