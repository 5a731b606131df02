package parse

import (
	"testing"
	"time"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
)

type stubCodes map[string]bool

func (s stubCodes) Known(code string) bool { return s[code] }

func testDoc() internal.Document {
	return internal.Document{
		ID:          "reg-2026-07",
		Kind:        internal.KindRegister,
		FiscalYear:  2026,
		PeriodStart: internal.NewDay(2025, time.July, 1),
		PeriodEnd:   internal.NewDay(2025, time.July, 31),
	}
}

func row(page int, conf float64, cells ...string) internal.CandidateRow {
	return internal.CandidateRow{Page: page, Cells: cells, Confidence: conf}
}

func newTestRun(t *testing.T) *Run {
	t.Helper()
	cfg, _ := config.Load()
	return NewRun(cfg, testDoc(), stubCodes{"01-5803": true, "01-4300": true})
}

func TestParseRegisterRow(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000001", "07/15/2025", "ZUM SERVICES, INC.", "01-5803", "1,234.56"))
	candidates, failures := r.Finish()

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.Payee != "ZUM SERVICES, INC." {
		t.Fatalf("payee = %q", c.Payee)
	}
	if c.AmountCents != 123456 {
		t.Fatalf("amount = %d", c.AmountCents)
	}
	if c.WarrantNumber == nil || *c.WarrantNumber != "0200000001" {
		t.Fatalf("warrant = %v", c.WarrantNumber)
	}
	if c.AccountCode == nil || *c.AccountCode != "01-5803" || !c.AccountKnown {
		t.Fatalf("account = %v known=%v", c.AccountCode, c.AccountKnown)
	}
	if c.DatePrecision != internal.PrecisionDay || c.Date.Format("2006-01-02") != "2025-07-15" {
		t.Fatalf("date = %v precision=%v", c.Date, c.DatePrecision)
	}
	if c.Cancelled {
		t.Fatal("record wrongly cancelled")
	}
	if c.Ambiguity != 1.0 {
		t.Fatalf("ambiguity = %v", c.Ambiguity)
	}
}

func TestParseWrittenOutDate(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000001", "July 15, 2025", "ZUM SERVICES, INC.", "01-5803", "1,234.56"))
	candidates, failures := r.Finish()

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.DatePrecision != internal.PrecisionDay || c.Date.Format("2006-01-02") != "2025-07-15" {
		t.Fatalf("date = %v precision=%v", c.Date, c.DatePrecision)
	}
	if c.Payee != "ZUM SERVICES, INC." {
		t.Fatalf("date tokens leaked into payee: %q", c.Payee)
	}
}

func TestParseDateInheritance(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000001", "07/15/2025", "ZUM SERVICES", "01-5803", "100.00"))
	r.Row(row(1, 0.95, "0200000002", "", "ACME", "01-4300", "200.00"))
	candidates, _ := r.Finish()

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	second := candidates[1]
	if second.Date.Format("2006-01-02") != "2025-07-15" {
		t.Fatalf("inherited date = %v", second.Date)
	}
	if second.DatePrecision != internal.PrecisionDay {
		t.Fatalf("precision = %v", second.DatePrecision)
	}
}

func TestParsePeriodFallbackWhenNoDateSeen(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000001", "", "ZUM SERVICES", "01-5803", "100.00"))
	candidates, _ := r.Finish()

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.DatePrecision != internal.PrecisionPeriod {
		t.Fatalf("precision = %v", c.DatePrecision)
	}
	if c.Date.Format("2006-01-02") != "2025-07-01" {
		t.Fatalf("fallback date = %v", c.Date)
	}
	if c.Ambiguity >= 1.0 {
		t.Fatalf("period fallback should lower ambiguity, got %v", c.Ambiguity)
	}
}

func TestParseSubtotalDiscarded(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000001", "07/15/2025", "ZUM SERVICES", "", "100.00"))
	r.Row(row(1, 0.95, "0200000002", "07/15/2025", "ACME", "", "200.00"))
	r.Row(row(1, 0.95, "", "", "PAGE TOTAL", "", "300.00"))
	candidates, failures := r.Finish()

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if len(failures) != 0 {
		t.Fatalf("subtotal row should be silent, got %+v", failures)
	}
}

func TestParseSubtotalMismatchFlagged(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000001", "07/15/2025", "ZUM SERVICES", "", "100.00"))
	r.Row(row(1, 0.95, "", "", "PAGE TOTAL", "", "999.99"))
	candidates, failures := r.Finish()

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", failures)
	}
}

func TestParseCancelledCheck(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000003", "07/20/2025", "STALE VENDOR Void", "", "250.00"))
	candidates, _ := r.Finish()

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if !c.Cancelled {
		t.Fatal("void marker not detected")
	}
	if c.AmountCents != -25000 {
		t.Fatalf("cancelled amount = %d", c.AmountCents)
	}
	if c.Payee != "STALE VENDOR" {
		t.Fatalf("payee = %q", c.Payee)
	}
}

func TestParseMultiLineCheckTotal(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000010", "07/21/2025", "BIG CO", "600.00", ""))
	r.Row(row(1, 0.95, "", "", "", "01-5803 400.00", "1,000.00"))
	candidates, failures := r.Finish()

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected rollup into 1 candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.AmountCents != 100000 {
		t.Fatalf("check total = %d", c.AmountCents)
	}
	if c.AccountCode == nil || *c.AccountCode != "01-5803" {
		t.Fatalf("account = %v", c.AccountCode)
	}
}

func TestParseExpensedSumFallback(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "0200000011", "07/22/2025", "SPLIT VENDOR", "", "0.00"))
	r.Row(row(1, 0.95, "", "", "", "01-4300 300.00", ""))
	r.Row(row(1, 0.95, "", "", "", "01-5803 200.00", ""))
	candidates, _ := r.Finish()

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].AmountCents != 50000 {
		t.Fatalf("expensed sum = %d", candidates[0].AmountCents)
	}
}

func TestParseHeaderAndSummarySkipped(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.95, "Check Number", "Date", "Vendor Name", "", "Check Amount"))
	r.Row(row(1, 0.95, "0200000001", "07/15/2025", "ZUM SERVICES", "", "100.00"))
	r.Row(row(1, 0.95, "", "", "Total Number of Checks", "", "1"))
	r.Row(row(1, 0.95, "", "", "Fund Recap", "", ""))
	candidates, failures := r.Finish()

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if len(failures) != 0 {
		t.Fatalf("header/summary rows should be silent, got %+v", failures)
	}
}

func TestParseFailureSideChannel(t *testing.T) {
	r := newTestRun(t)
	r.Row(row(1, 0.40, "", "", "UNREADABLE 123 GARBAGE", "", ""))
	candidates, failures := r.Finish()

	if len(candidates) != 0 {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if failures[0].Reason == "" || failures[0].RowText == "" {
		t.Fatalf("failure not attributable: %+v", failures[0])
	}
}

func TestParseDegradedMultiAmountAmbiguous(t *testing.T) {
	r := newTestRun(t)
	degraded := internal.CandidateRow{
		Page:       1,
		Cells:      []string{"0200000001 07/15/2025 ZUM SERVICES 600.00 1,000.00"},
		Confidence: 0.40,
		Degraded:   true,
	}
	r.Row(degraded)
	candidates, failures := r.Finish()

	if len(candidates) != 0 {
		t.Fatalf("ambiguous row must not yield a record: %+v", candidates)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
}
