package pipeline

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"rareport/internal/core"
)

func TestTotalAmountAllMissing(t *testing.T) {
	ds := mustRun(t, "transaction_id,created_at,amount,operation_origin\n1,2024-01-01 00:00,x,payment\n2,2024-01-01 00:00,,payment\n").Dataset
	if got := TotalAmount(ds); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
	if Count(ds) != 2 {
		t.Fatalf("count must include rows with missing amounts")
	}
}

func TestGroupSum(t *testing.T) {
	data := `transaction_id,created_at,amount,statut,operation_origin,country,provider_name
1,2024-01-05 10:00,10.5,SUCCESS,payment,SN,P1
2,2024-01-05 11:00,20,FAILED,payment,CI,P2
3,2024-01-06 09:00,30,SUCCESS,transfer,CI,P1
4,2024-01-06 12:00,bad,SUCCESS,payment,ML,P1
5,2024-01-06 12:00,7,SUCCESS,payment,,P1
`
	ds := mustRun(t, data).Dataset

	all, err := GroupSum(ds, core.ColCountry)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	want := map[string]string{"CI": "50", "ML": "0", "SN": "10.5"}
	if got := keys(all); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if all[0].Key != "CI" || all[2].Key != "SN" {
		t.Fatalf("groups must be sorted by key: %+v", all)
	}

	success, err := GroupSumSuccess(ds, core.ColCountry)
	if err != nil {
		t.Fatalf("group success: %v", err)
	}
	want = map[string]string{"CI": "30", "ML": "0", "SN": "10.5"}
	if got := keys(success); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if _, err := GroupSum(ds, core.ColMerchant); err == nil {
		t.Fatalf("expected missing merchant column")
	}
	if _, err := GroupSum(ds, "nope"); !errors.Is(err, core.ErrUnknownDimension) {
		t.Fatalf("expected unknown dimension, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	res := mustRun(t, scenarioCSV)
	rep, err := Summarize(res.Dataset, res.Payin, res.Payout, core.Selections{core.ColStatus: {"SUCCESS"}})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if rep.Overview.Count != 1 || rep.Overview.Total.String() != "100" {
		t.Fatalf("unexpected overview %+v", rep.Overview)
	}
	if rep.Payin.Count != 1 || rep.Payout.Count != 1 || rep.Payout.Total.String() != "0" {
		t.Fatalf("segment KPIs should cover the whole upload: in=%+v out=%+v", rep.Payin, rep.Payout)
	}
	if got := keys(rep.SuccessByMerchant); !reflect.DeepEqual(got, map[string]string{"Shop A": "100"}) {
		t.Fatalf("unexpected merchant totals %v", got)
	}
	if len(rep.Sample) != 1 || rep.Sample[0].Operator != "Orange" {
		t.Fatalf("unexpected sample %+v", rep.Sample)
	}
	if len(rep.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns %v", rep.MissingColumns)
	}
}

func TestSummarizeMissingColumns(t *testing.T) {
	var b strings.Builder
	b.WriteString("transaction_id,created_at,amount,statut,operation_origin\n")
	for i := 0; i < 15; i++ {
		b.WriteString(string(rune('a'+i)) + ",2024-01-01 00:00,1,SUCCESS,payment\n")
	}
	res := mustRun(t, b.String())
	rep, err := Summarize(res.Dataset, res.Payin, res.Payout, nil)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(rep.Sample) != SampleSize {
		t.Fatalf("sample = %d rows", len(rep.Sample))
	}
	want := []string{core.ColCountry, core.ColMerchant, core.ColProvider}
	if !reflect.DeepEqual(rep.MissingColumns, want) {
		t.Fatalf("missing = %v, want %v", rep.MissingColumns, want)
	}
	if len(rep.ByStatus) != 1 || rep.ByStatus[0].Amount.String() != "15" {
		t.Fatalf("unexpected status breakdown %+v", rep.ByStatus)
	}
}

func TestHugeExponentAmountIsMissing(t *testing.T) {
	res := mustRun(t, "transaction_id,created_at,amount,operation_origin\n1,2024-01-05 10:00,100,payment\n2,2024-01-05 11:00,1e2000000000,payment\n")
	if res.Dataset.Rows[1].Amount.Valid {
		t.Fatalf("an amount outside the float64 range must be missing")
	}
	if res.BadAmounts() != 1 {
		t.Fatalf("expected one bad amount, got %d", res.BadAmounts())
	}
	if got := TotalAmount(res.Dataset).String(); got != "100" {
		t.Fatalf("total = %s, want 100", got)
	}
}
