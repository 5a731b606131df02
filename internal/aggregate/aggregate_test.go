package aggregate

import (
	"testing"
	"time"

	"ledgerproof/internal"
)

func rec(id, payee string, cents int64, date internal.Day, tier internal.ConfidenceTier, account string) internal.TransactionRecord {
	r := internal.TransactionRecord{
		RecordID:             id,
		SourceDocumentID:     "register-1",
		FiscalYear:           2026,
		TransactionDate:      date,
		PayeeName:            payee,
		PayeeNormalized:      payee,
		AmountCents:          cents,
		ProvenanceConfidence: tier,
	}
	if account != "" {
		r.AccountCode = &account
	}
	return r
}

func TestBuildPayeeBucket(t *testing.T) {
	july := internal.NewDay(2025, time.July, 15)
	august := internal.NewDay(2025, time.August, 2)

	records := []internal.TransactionRecord{
		rec("aaaa", "ZUM SERVICES", 100000, july, internal.ConfidenceHigh, "01-5803"),
		rec("bbbb", "ZUM SERVICES", 250000, august, internal.ConfidenceLow, "01-5803"),
		rec("cccc", "ACME", 50000, july, internal.ConfidenceHigh, "12-5100"),
	}

	idx := Build(records)

	bucket, ok := idx.Lookup(internal.BucketPayee, "ZUM SERVICES")
	if !ok {
		t.Fatal("payee bucket missing")
	}
	if bucket.TotalCents != 350000 {
		t.Fatalf("total = %d", bucket.TotalCents)
	}
	if bucket.LowConfidenceCents != 250000 {
		t.Fatalf("low-confidence cents = %d", bucket.LowConfidenceCents)
	}
	if bucket.Count != 2 {
		t.Fatalf("count = %d", bucket.Count)
	}
	if bucket.MinDate != july || bucket.MaxDate != august {
		t.Fatalf("date span = %v..%v", bucket.MinDate, bucket.MaxDate)
	}
	if len(bucket.RecordIDs) != 2 || bucket.RecordIDs[0] != "aaaa" {
		t.Fatalf("record ids = %v", bucket.RecordIDs)
	}
}

func TestBuildAccountAndPeriodBuckets(t *testing.T) {
	july := internal.NewDay(2025, time.July, 15)

	records := []internal.TransactionRecord{
		rec("aaaa", "ZUM SERVICES", 100000, july, internal.ConfidenceHigh, "01-5803"),
		rec("bbbb", "ACME", 50000, july, internal.ConfidenceHigh, "01-4300"),
		rec("cccc", "CDC VENDOR", 25000, july, internal.ConfidenceHigh, "12-5100"),
	}

	idx := Build(records)

	fund01, ok := idx.Lookup(internal.BucketAccount, "01")
	if !ok || fund01.TotalCents != 150000 {
		t.Fatalf("fund 01 bucket = %+v ok=%v", fund01, ok)
	}
	fund12, ok := idx.Lookup(internal.BucketAccount, "12")
	if !ok || fund12.TotalCents != 25000 {
		t.Fatalf("fund 12 bucket = %+v ok=%v", fund12, ok)
	}

	year, ok := idx.Lookup(internal.BucketPeriod, "2026")
	if !ok || year.TotalCents != 175000 || year.Count != 3 {
		t.Fatalf("fiscal year bucket = %+v ok=%v", year, ok)
	}
	month, ok := idx.Lookup(internal.BucketPeriod, "2026-07")
	if !ok || month.TotalCents != 175000 {
		t.Fatalf("month bucket = %+v ok=%v", month, ok)
	}
}

func TestBucketsDeterministicOrder(t *testing.T) {
	july := internal.NewDay(2025, time.July, 15)
	records := []internal.TransactionRecord{
		rec("bbbb", "ZEBRA CO", 100, july, internal.ConfidenceHigh, ""),
		rec("aaaa", "ALPHA LLC", 200, july, internal.ConfidenceHigh, ""),
	}

	first := Build(records).Buckets()
	second := Build([]internal.TransactionRecord{records[1], records[0]}).Buckets()

	if len(first) != len(second) {
		t.Fatalf("bucket counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Kind != second[i].Kind || first[i].Key != second[i].Key || first[i].TotalCents != second[i].TotalCents {
			t.Fatalf("bucket %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
