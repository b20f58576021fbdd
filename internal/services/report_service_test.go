package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"

	"rareport/internal/core"
	"rareport/internal/journal/memory"
)

const sampleCSV = `transaction_id,created_at,amount,statut,operation_origin,country,provider_name,operator,merchant_name
1,2024-01-05 10:00,100,SUCCESS,payment,CI,P1,Orange,Shop A
1,2024-01-05 11:00,200,SUCCESS,payment,CI,P1,Orange,Shop A
2,2024-01-06 09:00,abc,FAILED,transfer,SN,P2,Free,Shop B
3,,40,SUCCESS,transfer,SN,P2,Free,Shop B
`

func newTestService(t *testing.T) (*ReportService, *memory.Store) {
	t.Helper()
	store := memory.New(10)
	svc := NewReportService(Config{
		Encoding:   charmap.ISO8859_1,
		SessionTTL: time.Hour,
		SessionMax: 2,
		Journal:    store,
	})
	t.Cleanup(func() { svc.Close() })
	return svc, store
}

func TestUploadCreatesSession(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Upload(ctx, "jan.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if sess.ID == "" || sess.Data.Len() != 3 {
		t.Fatalf("unexpected session %+v", sess)
	}
	sum := sess.Summary
	if sum.RowsRead != 4 || sum.RowsKept != 3 || sum.DuplicatesRemoved != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.BadAmounts != 1 || sum.BadTimestamps != 1 || sum.Bytes != int64(len(sampleCSV)) {
		t.Fatalf("unexpected issue counts %+v", sum)
	}

	got, _ := store.Recent(ctx, 5)
	if len(got) != 1 || got[0].SessionID != sess.ID || got[0].Status != core.UploadStatusOK {
		t.Fatalf("journal not updated: %+v", got)
	}
	if st := svc.Stats(); st.Sessions != 1 || st.UploadsOK != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestUploadFailureIsJournaled(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "bad.csv", strings.NewReader("transaction_id,amount\n1,5\n"))
	var mc *core.MissingColumnError
	if !errors.As(err, &mc) || mc.Column != core.ColCreatedAt {
		t.Fatalf("expected missing created_at, got %v", err)
	}

	got, _ := store.Recent(ctx, 5)
	if len(got) != 1 || got[0].Status != core.UploadStatusFailed || got[0].Error == "" {
		t.Fatalf("failure not journaled: %+v", got)
	}
	if st := svc.Stats(); st.Sessions != 0 || st.UploadsFailed != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "a.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	second, err := svc.Upload(ctx, "b.csv", strings.NewReader("transaction_id,created_at,amount,operation_origin\n9,2024-02-01 00:00,1,payment\n"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("session ids must differ")
	}

	rep, err := svc.Report(first.ID, nil)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Overview.Count != 3 || rep.SessionID != first.ID {
		t.Fatalf("first session changed by second upload: %+v", rep.Overview)
	}
}

func TestReportAndOptions(t *testing.T) {
	svc, _ := newTestService(t)
	sess, err := svc.Upload(context.Background(), "jan.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	rep, err := svc.Report(sess.ID, core.Selections{core.ColCountry: {"SN"}})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Overview.Count != 2 || rep.Overview.Total.String() != "40" {
		t.Fatalf("unexpected overview %+v", rep.Overview)
	}
	if rep.Payin.Count != 1 || rep.Payout.Count != 2 {
		t.Fatalf("unexpected segments in=%+v out=%+v", rep.Payin, rep.Payout)
	}

	opts, err := svc.Options(sess.ID, core.Selections{core.ColDate: {"2024-01-05"}})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if got := opts[0].Values; len(got) != 2 {
		t.Fatalf("dates with a missing one excluded, got %v", got)
	}
	if got := opts[3].Values; len(got) != 1 || got[0] != "CI" {
		t.Fatalf("country options should cascade from the date, got %v", got)
	}
}

func TestExports(t *testing.T) {
	svc, _ := newTestService(t)
	sess, err := svc.Upload(context.Background(), "jan.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.ExportGroup(&buf, sess.ID, core.ColCountry, nil); err != nil {
		t.Fatalf("export: %v", err)
	}
	if want := "country,amount\nCI,100\nSN,40\n"; buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}

	if err := svc.ExportGroup(&buf, sess.ID, core.ColStatus, nil); !errors.Is(err, core.ErrUnknownDimension) {
		t.Fatalf("expected unknown dimension, got %v", err)
	}

	buf.Reset()
	if err := svc.ExportTransactions(&buf, sess.ID, core.Selections{core.ColStatus: {"FAILED"}}); err != nil {
		t.Fatalf("export transactions: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("expected header and one row, got %q", buf.String())
	}
}

func TestDiscardAndEviction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, _ := svc.Upload(ctx, "a.csv", strings.NewReader(sampleCSV))
	if err := svc.Discard(ctx, a.ID); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := svc.Report(a.ID, nil); !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Discard(ctx, a.ID); !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("expected not found on second discard, got %v", err)
	}

	// capacity is two sessions
	b, _ := svc.Upload(ctx, "b.csv", strings.NewReader(sampleCSV))
	_, _ = svc.Upload(ctx, "c.csv", strings.NewReader(sampleCSV))
	_, _ = svc.Upload(ctx, "d.csv", strings.NewReader(sampleCSV))
	if _, err := svc.Session(b.ID); !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("oldest session should be evicted, got %v", err)
	}
}
