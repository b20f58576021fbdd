package pipeline

import (
	"strings"
	"unicode"

	"rareport/internal/core"
)

// Normalized is the deduplicated, typed dataset plus what was learned
// while building it.
type Normalized struct {
	Dataset           *core.Dataset
	Issues            []core.RowIssue
	RowsRead          int
	DuplicatesRemoved int
}

// BadTimestamps counts issues raised on created_at.
func (n *Normalized) BadTimestamps() int { return n.countIssues(core.ColCreatedAt) }

// BadAmounts counts issues raised on amount.
func (n *Normalized) BadAmounts() int { return n.countIssues(core.ColAmount) }

func (n *Normalized) countIssues(col string) int {
	c := 0
	for _, is := range n.Issues {
		if is.Column == col {
			c++
		}
	}
	return c
}

// DeriveDay returns the part of createdAt before the first run of
// whitespace. An empty prefix, including one caused by leading whitespace,
// is a malformed timestamp. The value is not validated as a calendar date.
func DeriveDay(createdAt string) (string, error) {
	day := createdAt
	if i := strings.IndexFunc(createdAt, unicode.IsSpace); i >= 0 {
		day = createdAt[:i]
	}
	if day == "" {
		return "", core.ErrMalformedTimestamp
	}
	return day, nil
}

// CoerceAmount parses raw as a decimal number. Invalid values become a
// missing amount.
func CoerceAmount(raw string) core.Amount {
	return core.ParseAmount(raw)
}

// Dedupe keeps the first record for each transaction_id, preserving order.
// It returns the kept records and the number removed.
func Dedupe(records []Record) ([]Record, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.TransactionID]; ok {
			continue
		}
		seen[r.TransactionID] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

var requiredColumns = []string{core.ColTransactionID, core.ColCreatedAt, core.ColAmount}

// Normalize deduplicates t, derives the Date column and coerces amounts.
// A row with an unusable created_at keeps an empty Date and is reported in
// Issues; it does not abort the table.
func Normalize(t *Table) (*Normalized, error) {
	for _, col := range requiredColumns {
		if !t.Has(col) {
			return nil, &core.MissingColumnError{Column: col, Stage: "normalize"}
		}
	}

	kept, removed := Dedupe(t.Records)
	res := &Normalized{
		RowsRead:          len(t.Records),
		DuplicatesRemoved: removed,
	}

	rows := make([]core.Transaction, 0, len(kept))
	for _, r := range kept {
		tx := core.Transaction{
			TransactionID: r.TransactionID,
			CreatedAt:     r.CreatedAt,
			RawAmount:     r.Amount,
			Amount:        CoerceAmount(r.Amount),
			Status:        r.Status,
			Operation:     r.Operation,
			Country:       r.Country,
			Provider:      r.Provider,
			Operator:      r.Operator,
			Merchant:      r.Merchant,
		}
		day, err := DeriveDay(r.CreatedAt)
		if err != nil {
			res.Issues = append(res.Issues, core.RowIssue{Row: r.Line, Column: core.ColCreatedAt, Value: r.CreatedAt, Err: err})
		}
		tx.Date = day
		if !tx.Amount.Valid {
			res.Issues = append(res.Issues, core.RowIssue{Row: r.Line, Column: core.ColAmount, Value: r.Amount, Err: core.ErrInvalidAmount})
		}
		rows = append(rows, tx)
	}

	cols := make(map[string]bool, len(t.Columns)+1)
	for _, c := range core.KnownColumns {
		if t.Has(c) {
			cols[c] = true
		}
	}
	cols[core.ColDate] = true
	res.Dataset = &core.Dataset{Columns: cols, Rows: rows}
	return res, nil
}
