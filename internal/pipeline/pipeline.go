package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
	"ledgerproof/internal/logger"
	"ledgerproof/internal/parse"
	"ledgerproof/internal/reconcile"
	"ledgerproof/internal/segment"
	"ledgerproof/internal/source"
	"ledgerproof/internal/storage"
	"ledgerproof/internal/validate"
)

// Batch runs the full extraction pass over one manifest of documents.
// Documents are processed concurrently; everything after the barrier
// (reconciliation, ordering, persistence) is single-threaded so two runs over
// the same inputs produce byte-identical output.
type Batch struct {
	cfg   config.Config
	db    *storage.DB
	codes parse.CodeSpace

	// SourceFor is swappable so tests can feed pages from memory.
	SourceFor func(cfg config.Config, doc internal.Document) (source.PageSource, error)
}

func NewBatch(cfg config.Config, db *storage.DB, codes parse.CodeSpace) *Batch {
	return &Batch{cfg: cfg, db: db, codes: codes, SourceFor: source.ForDocument}
}

// docOutcome is one document's contribution, held in manifest order until the
// barrier so merge order never depends on goroutine scheduling.
type docOutcome struct {
	records  []internal.TransactionRecord
	unparsed []internal.ParseFailure
	rejected []internal.ValidationRejection
	summary  internal.DocumentSummary
	failed   *internal.DocumentError
}

func (b *Batch) Run(ctx context.Context, docs []internal.Document) (internal.BatchResult, error) {
	log := logger.FromContext(ctx)
	traceID := uuid.NewString()
	log.Info().Str("traceId", traceID).Int("documents", len(docs)).Msg("batch started")

	outcomes := make([]docOutcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.PipelineMaxWorkers)
	for i, doc := range docs {
		g.Go(func() error {
			outcomes[i] = b.processDocument(gctx, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return internal.BatchResult{}, err
	}

	var result internal.BatchResult
	for _, out := range outcomes {
		if out.failed != nil {
			result.DocumentErrors = append(result.DocumentErrors, *out.failed)
			continue
		}
		result.Records = append(result.Records, out.records...)
		result.Unparsed = append(result.Unparsed, out.unparsed...)
		result.Rejected = append(result.Rejected, out.rejected...)
		result.Summaries = append(result.Summaries, out.summary)
	}

	merged, ambiguities := reconcile.New(b.cfg).Reconcile(result.Records)
	result.Records = merged
	result.Ambiguities = ambiguities

	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].RecordID < result.Records[j].RecordID
	})

	if b.db != nil {
		for _, doc := range docs {
			if err := b.db.UpsertDocument(doc); err != nil {
				return internal.BatchResult{}, err
			}
		}
		if err := b.db.ReplaceLedger(result); err != nil {
			return internal.BatchResult{}, err
		}
		if err := b.db.InsertRun(traceID, len(docs), map[string]int{
			"records":     len(result.Records),
			"unparsed":    len(result.Unparsed),
			"rejected":    len(result.Rejected),
			"ambiguities": len(result.Ambiguities),
			"docErrors":   len(result.DocumentErrors),
		}); err != nil {
			return internal.BatchResult{}, err
		}
	}

	log.Info().
		Str("traceId", traceID).
		Int("records", len(result.Records)).
		Int("unparsed", len(result.Unparsed)).
		Int("rejected", len(result.Rejected)).
		Int("docErrors", len(result.DocumentErrors)).
		Msg("batch finished")
	return result, nil
}

func (b *Batch) processDocument(ctx context.Context, doc internal.Document) docOutcome {
	log := logger.FromContext(ctx)

	pages, err := b.acquire(ctx, doc)
	if err != nil {
		log.Warn().Str("document", doc.ID).Err(err).Msg("document failed")
		return docOutcome{failed: &internal.DocumentError{
			DocumentID: doc.ID,
			Stage:      "acquire",
			Message:    err.Error(),
		}}
	}

	rows := segment.New(b.cfg).Rows(pages)

	run := parse.NewRun(b.cfg, doc, b.codes)
	for _, row := range rows {
		run.Row(row)
	}
	candidates, unparsed := run.Finish()

	records, rejected := validate.New(b.cfg).Canonicalize(doc, candidates)

	return docOutcome{
		records:  records,
		unparsed: unparsed,
		rejected: rejected,
		summary:  summarize(doc, len(pages), len(rows), records, unparsed, rejected),
	}
}

// acquire retries bounded times on acquisition failures; any other error is
// terminal for the document.
func (b *Batch) acquire(ctx context.Context, doc internal.Document) ([][]internal.RawLine, error) {
	src, err := b.SourceFor(b.cfg, doc)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= b.cfg.OCRMaxRetries; attempt++ {
		pages, err := src.Pages(ctx, doc)
		if err == nil {
			return pages, nil
		}
		lastErr = err
		var acqErr *internal.AcquisitionError
		if !errors.As(err, &acqErr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func summarize(doc internal.Document, pages, rows int, records []internal.TransactionRecord, unparsed []internal.ParseFailure, rejected []internal.ValidationRejection) internal.DocumentSummary {
	summary := internal.DocumentSummary{
		DocumentID:        doc.ID,
		Pages:             pages,
		Rows:              rows,
		Records:           len(records),
		Unparsed:          len(unparsed),
		Rejected:          len(rejected),
		ControlTotalCents: doc.ControlTotalCents,
	}

	var warrants []string
	for _, rec := range records {
		summary.NetTotalCents += rec.AmountCents
		if rec.Cancelled {
			summary.Cancelled++
		}
		if rec.WarrantNumber != nil {
			warrants = append(warrants, *rec.WarrantNumber)
		}
	}

	if doc.ControlTotalCents != nil {
		delta := summary.NetTotalCents - *doc.ControlTotalCents
		summary.ControlDeltaCents = internal.Int64Ptr(delta)
		if *doc.ControlTotalCents != 0 {
			pct := float64(delta) / float64(*doc.ControlTotalCents) * 100
			summary.ControlDeltaPct = &pct
		}
	}

	summary.MissingWarrants = missingWarrants(warrants)
	return summary
}

// missingWarrants flags short gaps in each warrant number series. Long gaps
// mean a different numbering block, not missing pages.
func missingWarrants(warrants []string) []string {
	series := map[string][]int{}
	width := map[string]int{}
	for _, w := range warrants {
		prefix, digits := splitWarrant(w)
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		series[prefix] = append(series[prefix], n)
		if len(digits) > width[prefix] {
			width[prefix] = len(digits)
		}
	}

	var missing []string
	prefixes := make([]string, 0, len(series))
	for p := range series {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		nums := series[prefix]
		sort.Ints(nums)
		for i := 1; i < len(nums); i++ {
			gap := nums[i] - nums[i-1]
			if gap <= 1 || gap > 20 {
				continue
			}
			for n := nums[i-1] + 1; n < nums[i]; n++ {
				missing = append(missing, fmt.Sprintf("%s%0*d", prefix, width[prefix], n))
			}
		}
	}
	return missing
}

func splitWarrant(w string) (prefix, digits string) {
	if rest, ok := strings.CutPrefix(w, "DDP-"); ok {
		return "DDP-", rest
	}
	for _, p := range []string{"020", "120"} {
		if strings.HasPrefix(w, p) {
			return p, w[len(p):]
		}
	}
	return "", w
}
