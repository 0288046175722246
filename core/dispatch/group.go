package dispatch

import "sort"

// Group is a run of consecutive items sharing a row number.
type Group[T any] struct {
	RowNumber int `json:"row_number"`
	Items     []T `json:"slots"`
}

// GroupByRow orders items by (row number, id) and splits them into runs of
// equal row number. The input slice is not modified.
func GroupByRow[T any](items []T, row func(T) int, id func(T) int64) []Group[T] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := row(sorted[i]), row(sorted[j])
		if ri != rj {
			return ri < rj
		}
		return id(sorted[i]) < id(sorted[j])
	})
	var groups []Group[T]
	for _, it := range sorted {
		n := row(it)
		if len(groups) == 0 || groups[len(groups)-1].RowNumber != n {
			groups = append(groups, Group[T]{RowNumber: n})
		}
		last := &groups[len(groups)-1]
		last.Items = append(last.Items, it)
	}
	return groups
}
