package pipeline

import (
	"fmt"
	"sort"

	"rareport/internal/core"
)

// ApplyFilters narrows ds by each non-empty selection, in the order of
// core.FilterDimensions. The input is never modified; the result always
// holds a fresh row slice.
func ApplyFilters(ds *core.Dataset, sel core.Selections) (*core.Dataset, error) {
	if err := checkSelections(ds, sel); err != nil {
		return nil, err
	}
	rows := append([]core.Transaction(nil), ds.Rows...)
	for _, dim := range core.FilterDimensions {
		rows = keep(rows, dim, sel[dim])
	}
	return ds.WithRows(rows), nil
}

// FilterOptions returns, for every filter dimension, the sorted distinct
// values present once the previous dimensions' selections are applied.
// A dimension whose column is absent is reported as unavailable.
func FilterOptions(ds *core.Dataset, sel core.Selections) ([]core.DimensionOptions, error) {
	for dim := range sel {
		if !core.IsFilterDimension(dim) {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownDimension, dim)
		}
	}
	rows := ds.Rows
	opts := make([]core.DimensionOptions, 0, len(core.FilterDimensions))
	for _, dim := range core.FilterDimensions {
		o := core.DimensionOptions{
			Dimension: dim,
			Available: ds.Has(dim),
			Values:    []string{},
			Selected:  append([]string{}, sel[dim]...),
		}
		if o.Available {
			o.Values = distinct(rows, dim)
			rows = keep(rows, dim, sel[dim])
		}
		opts = append(opts, o)
	}
	return opts, nil
}

func checkSelections(ds *core.Dataset, sel core.Selections) error {
	for dim, values := range sel {
		if !core.IsFilterDimension(dim) {
			return fmt.Errorf("%w: %s", core.ErrUnknownDimension, dim)
		}
		if len(values) > 0 && !ds.Has(dim) {
			return &core.MissingColumnError{Column: dim, Stage: "filter"}
		}
	}
	return nil
}

// keep returns the rows whose dim value is in values. An empty values
// list keeps everything.
func keep(rows []core.Transaction, dim string, values []string) []core.Transaction {
	if len(values) == 0 {
		return rows
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		v, _ := r.Value(dim)
		if _, ok := set[v]; ok {
			out = append(out, r)
		}
	}
	return out
}

func distinct(rows []core.Transaction, dim string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range rows {
		v, _ := r.Value(dim)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
