package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"rareport/internal/core"
)

// SampleSize is the number of filtered rows shown in the detail table.
const SampleSize = 10

// TotalAmount sums the valid amounts of ds. It is zero when none are valid.
func TotalAmount(ds *core.Dataset) decimal.Decimal {
	total := decimal.Zero
	for _, r := range ds.Rows {
		if r.Amount.Valid {
			total = total.Add(r.Amount.Decimal)
		}
	}
	return total
}

// Count returns the number of rows, whatever their amount.
func Count(ds *core.Dataset) int {
	return ds.Len()
}

// KPIs returns the count and total of ds.
func KPIs(ds *core.Dataset) core.KPI {
	return core.KPI{Count: Count(ds), Total: TotalAmount(ds)}
}

// GroupSum sums valid amounts per distinct value of dim, sorted by key.
// Rows with an empty key are not grouped. A group whose amounts are all
// missing sums to zero.
func GroupSum(ds *core.Dataset, dim string) ([]core.GroupTotal, error) {
	return groupSum(ds, dim, nil)
}

// GroupSumSuccess is GroupSum restricted to rows with statut SUCCESS.
func GroupSumSuccess(ds *core.Dataset, dim string) ([]core.GroupTotal, error) {
	if !ds.Has(core.ColStatus) {
		return nil, &core.MissingColumnError{Column: core.ColStatus, Stage: "aggregate"}
	}
	return groupSum(ds, dim, func(r core.Transaction) bool {
		return r.Status == core.StatusSuccess
	})
}

func groupSum(ds *core.Dataset, dim string, include func(core.Transaction) bool) ([]core.GroupTotal, error) {
	if _, ok := (core.Transaction{}).Value(dim); !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownDimension, dim)
	}
	if !ds.Has(dim) {
		return nil, &core.MissingColumnError{Column: dim, Stage: "aggregate"}
	}

	sums := make(map[string]decimal.Decimal)
	for _, r := range ds.Rows {
		if include != nil && !include(r) {
			continue
		}
		key, _ := r.Value(dim)
		if key == "" {
			continue
		}
		s, ok := sums[key]
		if !ok {
			s = decimal.Zero
		}
		if r.Amount.Valid {
			s = s.Add(r.Amount.Decimal)
		}
		sums[key] = s
	}

	out := make([]core.GroupTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, core.GroupTotal{Key: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Summarize filters ds by sel and computes every figure the dashboard
// shows in a single pass. The payin and payout KPIs describe the whole
// segments, as uploaded. Breakdowns over a column the file lacks are left
// empty and the column is listed in MissingColumns.
func Summarize(ds, payin, payout *core.Dataset, sel core.Selections) (*core.Report, error) {
	view, err := ApplyFilters(ds, sel)
	if err != nil {
		return nil, err
	}

	rep := &core.Report{
		Filters:  sel,
		Overview: KPIs(view),
		Payin:    KPIs(payin),
		Payout:   KPIs(payout),
		Sample:   sample(view, SampleSize),
	}

	missing := make(map[string]bool)
	group := func(dim string, success bool) []core.GroupTotal {
		var (
			g   []core.GroupTotal
			err error
		)
		if success {
			g, err = GroupSumSuccess(view, dim)
		} else {
			g, err = GroupSum(view, dim)
		}
		if err != nil {
			var mc *core.MissingColumnError
			if errors.As(err, &mc) {
				missing[mc.Column] = true
			}
			return []core.GroupTotal{}
		}
		return g
	}

	rep.ByProvider = group(core.ColProvider, false)
	rep.ByCountry = group(core.ColCountry, false)
	rep.ByStatus = group(core.ColStatus, false)
	rep.SuccessByCountry = group(core.ColCountry, true)
	rep.SuccessByProvider = group(core.ColProvider, true)
	rep.SuccessByMerchant = group(core.ColMerchant, true)

	for col := range missing {
		rep.MissingColumns = append(rep.MissingColumns, col)
	}
	sort.Strings(rep.MissingColumns)
	return rep, nil
}

func sample(ds *core.Dataset, n int) []core.SampleRow {
	if len(ds.Rows) < n {
		n = len(ds.Rows)
	}
	out := make([]core.SampleRow, 0, n)
	for _, r := range ds.Rows[:n] {
		out = append(out, core.SampleRow{
			Country:   r.Country,
			Provider:  r.Provider,
			Operation: r.Operation,
			Operator:  r.Operator,
			Merchant:  r.Merchant,
		})
	}
	return out
}
