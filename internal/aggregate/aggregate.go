package aggregate

import (
	"sort"
	"strings"

	"ledgerproof/internal"
	"ledgerproof/internal/refdata"
)

// Index holds the deterministic rollups over the canonical record set. It is
// recomputed in full on every run; nothing mutates a bucket in place, so two
// runs over identical input produce byte-identical output.
type Index struct {
	buckets map[string]*internal.AggregateBucket
}

// Build computes every bucket kind for every record: payee, account-code
// fund category, fiscal year, and fiscal year-month.
func Build(records []internal.TransactionRecord) *Index {
	idx := &Index{buckets: map[string]*internal.AggregateBucket{}}
	for _, rec := range records {
		idx.add(internal.BucketPayee, rec.PayeeNormalized, rec)
		if rec.AccountCode != nil {
			fund := *rec.AccountCode
			if i := strings.Index(fund, "-"); i > 0 {
				fund = fund[:i]
			}
			idx.add(internal.BucketAccount, fund, rec)
		}
		idx.add(internal.BucketPeriod, refdata.PeriodKey(rec.FiscalYear), rec)
		idx.add(internal.BucketPeriod, refdata.MonthKey(rec.TransactionDate), rec)
	}

	for _, b := range idx.buckets {
		sort.Strings(b.RecordIDs)
	}
	return idx
}

func (idx *Index) add(kind internal.BucketKind, key string, rec internal.TransactionRecord) {
	if key == "" {
		return
	}
	id := string(kind) + "/" + key
	b, ok := idx.buckets[id]
	if !ok {
		b = &internal.AggregateBucket{
			Kind:    kind,
			Key:     key,
			MinDate: rec.TransactionDate,
			MaxDate: rec.TransactionDate,
		}
		idx.buckets[id] = b
	}

	b.TotalCents += rec.AmountCents
	if rec.ProvenanceConfidence == internal.ConfidenceLow {
		// Low-confidence money still lands in the total, but is called out
		// separately so the aggregate stays auditable.
		b.LowConfidenceCents += rec.AmountCents
	}
	b.Count++
	b.RecordIDs = append(b.RecordIDs, rec.RecordID)
	if rec.TransactionDate.Before(b.MinDate.Time) {
		b.MinDate = rec.TransactionDate
	}
	if rec.TransactionDate.After(b.MaxDate.Time) {
		b.MaxDate = rec.TransactionDate
	}
}

// Lookup resolves one bucket by kind and key.
func (idx *Index) Lookup(kind internal.BucketKind, key string) (internal.AggregateBucket, bool) {
	b, ok := idx.buckets[string(kind)+"/"+key]
	if !ok {
		return internal.AggregateBucket{}, false
	}
	return *b, true
}

// Buckets returns every bucket in deterministic (kind, key) order.
func (idx *Index) Buckets() []internal.AggregateBucket {
	ids := make([]string, 0, len(idx.buckets))
	for id := range idx.buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]internal.AggregateBucket, 0, len(ids))
	for _, id := range ids {
		out = append(out, *idx.buckets[id])
	}
	return out
}
