package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"rareport/internal/core"
)

// WriteGroupCSV writes totals as UTF-8 CSV with the header "<dim>,amount".
// Amounts use plain decimal notation.
func WriteGroupCSV(w io.Writer, dim string, totals []core.GroupTotal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{dim, "amount"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range totals {
		if err := cw.Write([]string{t.Key, t.Amount.String()}); err != nil {
			return fmt.Errorf("write row %q: %w", t.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type exportRow struct {
	TransactionID string `csv:"transaction_id"`
	CreatedAt     string `csv:"created_at"`
	Date          string `csv:"Date"`
	Amount        string `csv:"amount"`
	Status        string `csv:"statut"`
	Operation     string `csv:"operation_origin"`
	Country       string `csv:"country"`
	Provider      string `csv:"provider_name"`
	Operator      string `csv:"operator"`
	Merchant      string `csv:"merchant_name"`
}

// WriteTransactionsCSV writes the rows of ds as UTF-8 CSV. The amount
// column holds the coerced value and is empty when the amount is missing.
func WriteTransactionsCSV(w io.Writer, ds *core.Dataset) error {
	rows := make([]exportRow, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		amount := ""
		if r.Amount.Valid {
			amount = r.Amount.Decimal.String()
		}
		rows = append(rows, exportRow{
			TransactionID: r.TransactionID,
			CreatedAt:     r.CreatedAt,
			Date:          r.Date,
			Amount:        amount,
			Status:        r.Status,
			Operation:     r.Operation,
			Country:       r.Country,
			Provider:      r.Provider,
			Operator:      r.Operator,
			Merchant:      r.Merchant,
		})
	}
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(csv.NewWriter(w))); err != nil {
		return fmt.Errorf("marshal transactions: %w", err)
	}
	return nil
}
