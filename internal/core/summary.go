package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupTotal represents an amount aggregated by a dimension value.
type GroupTotal struct {
	Key    string          `json:"key"`
	Amount decimal.Decimal `json:"amount"`
}

// KPI is the count and total of a view.
type KPI struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// SampleRow is one line of the detail table shown under the overview.
type SampleRow struct {
	Country   string `json:"country"`
	Provider  string `json:"provider_name"`
	Operation string `json:"operation_origin"`
	Operator  string `json:"operator"`
	Merchant  string `json:"merchant_name"`
}

// Report is the result of one aggregation pass over a filtered session.
// Every dashboard view reads from the same Report.
type Report struct {
	SessionID string     `json:"session_id"`
	Filters   Selections `json:"filters"`

	Overview KPI `json:"overview"`
	Payin    KPI `json:"payin"`
	Payout   KPI `json:"payout"`

	ByProvider []GroupTotal `json:"by_provider"`
	ByCountry  []GroupTotal `json:"by_country"`
	ByStatus   []GroupTotal `json:"by_status"`

	SuccessByCountry  []GroupTotal `json:"success_by_country"`
	SuccessByProvider []GroupTotal `json:"success_by_provider"`
	SuccessByMerchant []GroupTotal `json:"success_by_merchant"`

	Sample []SampleRow `json:"sample"`

	// MissingColumns lists grouping columns absent from the data; their
	// breakdowns are left empty.
	MissingColumns []string `json:"missing_columns,omitempty"`
}

const (
	UploadStatusOK     = "ok"
	UploadStatusFailed = "failed"
)

// UploadSummary describes one ingestion attempt. It is what the upload
// journal stores; transaction rows are never persisted.
type UploadSummary struct {
	SessionID         string    `json:"session_id"`
	Filename          string    `json:"filename"`
	Bytes             int64     `json:"bytes"`
	RowsRead          int       `json:"rows_read"`
	RowsKept          int       `json:"rows_kept"`
	DuplicatesRemoved int       `json:"duplicates_removed"`
	BadTimestamps     int       `json:"bad_timestamps"`
	BadAmounts        int       `json:"bad_amounts"`
	Status            string    `json:"status"`
	Error             string    `json:"error,omitempty"`
	ReceivedAt        time.Time `json:"received_at"`
}
