package pipeline

import (
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"rareport/internal/core"
)

const scenarioCSV = `transaction_id,created_at,amount,statut,operation_origin,country,provider_name,operator,merchant_name
1,2024-01-05 10:00,100,SUCCESS,payment,CI,P1,Orange,Shop A
1,2024-01-05 11:00,200,SUCCESS,payment,CI,P1,Orange,Shop A
2,2024-01-06 09:00,abc,FAILED,transfer,SN,P2,Free,Shop B
`

// mustRun runs the pipeline over a Latin-1 encoded CSV literal.
func mustRun(t *testing.T, data string) *Result {
	t.Helper()
	res, err := Run(strings.NewReader(data), charmap.ISO8859_1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func keys(totals []core.GroupTotal) map[string]string {
	out := make(map[string]string, len(totals))
	for _, g := range totals {
		out[g.Key] = g.Amount.String()
	}
	return out
}
