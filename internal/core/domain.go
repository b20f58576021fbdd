// Package core holds the transaction domain shared by the pipeline, the
// report service and the HTTP layer: column names, transactions and
// datasets, filter selections, report and upload summary types, amount
// parsing and formatting, and the error taxonomy.
package core

import (
	"github.com/shopspring/decimal"
)

// Column names as they appear in the transaction export header.
const (
	ColTransactionID = "transaction_id"
	ColCreatedAt     = "created_at"
	ColAmount        = "amount"
	ColStatus        = "statut"
	ColOperation     = "operation_origin"
	ColCountry       = "country"
	ColProvider      = "provider_name"
	ColOperator      = "operator"
	ColMerchant      = "merchant_name"

	// ColDate is derived from created_at during normalization.
	ColDate = "Date"
)

const (
	StatusSuccess     = "SUCCESS"
	OperationPayment  = "payment"
	OperationTransfer = "transfer"
)

// KnownColumns lists every column the pipeline understands, in export order.
var KnownColumns = []string{
	ColTransactionID,
	ColCreatedAt,
	ColAmount,
	ColStatus,
	ColOperation,
	ColCountry,
	ColProvider,
	ColOperator,
	ColMerchant,
}

type (
	// Amount is a coerced transaction amount. Valid is false when the raw
	// value was empty or not numeric.
	Amount = decimal.NullDecimal

	Transaction struct {
		TransactionID string
		CreatedAt     string
		Date          string // empty when created_at could not be parsed
		RawAmount     string
		Amount        Amount
		Status        string
		Operation     string
		Country       string
		Provider      string
		Operator      string
		Merchant      string
	}

	// Dataset is an ordered set of transactions together with the columns
	// that were present in the source file.
	Dataset struct {
		Columns map[string]bool
		Rows    []Transaction
	}
)

// Value returns the string value of a named column. The second result is
// false when the column is not one the pipeline knows.
func (t Transaction) Value(col string) (string, bool) {
	switch col {
	case ColTransactionID:
		return t.TransactionID, true
	case ColCreatedAt:
		return t.CreatedAt, true
	case ColDate:
		return t.Date, true
	case ColAmount:
		return t.RawAmount, true
	case ColStatus:
		return t.Status, true
	case ColOperation:
		return t.Operation, true
	case ColCountry:
		return t.Country, true
	case ColProvider:
		return t.Provider, true
	case ColOperator:
		return t.Operator, true
	case ColMerchant:
		return t.Merchant, true
	default:
		return "", false
	}
}

// Has reports whether the column was present in the source data.
func (d *Dataset) Has(col string) bool {
	if d == nil {
		return false
	}
	return d.Columns[col]
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// WithRows returns a dataset sharing the column set of d but holding rows.
func (d *Dataset) WithRows(rows []Transaction) *Dataset {
	cols := make(map[string]bool, len(d.Columns))
	for k, v := range d.Columns {
		cols[k] = v
	}
	return &Dataset{Columns: cols, Rows: rows}
}

// ColumnList returns the present columns in export order.
func (d *Dataset) ColumnList() []string {
	var out []string
	for _, c := range KnownColumns {
		if d.Has(c) {
			out = append(out, c)
		}
	}
	if d.Has(ColDate) {
		out = append(out, ColDate)
	}
	return out
}
