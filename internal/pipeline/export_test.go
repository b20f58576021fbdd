package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"rareport/internal/core"
)

func TestWriteGroupCSV(t *testing.T) {
	var buf bytes.Buffer
	totals := []core.GroupTotal{
		{Key: "CI", Amount: decimal.RequireFromString("100")},
		{Key: "Côte, Sud", Amount: decimal.RequireFromString("12.50")},
	}
	if err := WriteGroupCSV(&buf, core.ColCountry, totals); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "country,amount\nCI,100\n\"Côte, Sud\",12.5\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteGroupCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGroupCSV(&buf, core.ColMerchant, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "merchant_name,amount\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestWriteTransactionsCSV(t *testing.T) {
	res := mustRun(t, scenarioCSV)
	var buf bytes.Buffer
	if err := WriteTransactionsCSV(&buf, res.Dataset); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "transaction_id,created_at,Date,amount,statut,operation_origin,country,provider_name,operator,merchant_name" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[2] != "2,2024-01-06 09:00,2024-01-06,,FAILED,transfer,SN,P2,Free,Shop B" {
		t.Fatalf("unexpected row %q", lines[2])
	}
}
