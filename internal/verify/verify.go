package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"ledgerproof/internal"
	"ledgerproof/internal/aggregate"
	"ledgerproof/internal/config"
	"ledgerproof/internal/util"
)

// Engine matches narrative claims against the aggregation index or a cited
// source document. It never auto-corrects anything: it only emits verdicts
// plus evidence pointers so a human can re-derive the number.
type Engine struct {
	cfg    config.Config
	index  *aggregate.Index
	ledger []internal.TransactionRecord
}

func New(cfg config.Config, index *aggregate.Index, ledger []internal.TransactionRecord) *Engine {
	return &Engine{cfg: cfg, index: index, ledger: ledger}
}

// Run verifies every claim, in input order. A claim whose cited source
// cannot be resolved is unverifiable: a data gap, not a contradiction.
func (e *Engine) Run(claims []internal.Claim) []internal.VerificationResult {
	out := make([]internal.VerificationResult, 0, len(claims))
	for _, claim := range claims {
		out = append(out, e.verify(claim))
	}
	return out
}

func (e *Engine) verify(claim internal.Claim) internal.VerificationResult {
	result := internal.VerificationResult{
		ClaimID:        claim.ID,
		Unit:           claim.Unit,
		Asserted:       assertedValue(claim),
		EvidenceSource: claim.Source,
		ToleranceUsed:  e.tolerance(claim),
	}

	matched, evidence, err := e.resolve(claim)
	if err != nil {
		result.Verdict = internal.VerdictUnverifiable
		result.Note = err.Error()
		return result
	}

	result.Matched = matched
	result.Delta = matched - result.Asserted
	result.EvidenceIDs = evidence

	if withinTolerance(result.Delta, result.Asserted, result.ToleranceUsed, claim.Unit) {
		result.Verdict = internal.VerdictVerified
	} else {
		result.Verdict = internal.VerdictMismatch
	}
	return result
}

// resolve maps a cited source key onto the index or the ledger. Recognized
// schemes: payee:<name>, account:<fund>, period:<fy | fy-mm>, document:<id>.
func (e *Engine) resolve(claim internal.Claim) (int64, []string, error) {
	scheme, key, ok := strings.Cut(claim.Source, ":")
	if !ok {
		return 0, nil, fmt.Errorf("unresolvable source %q", claim.Source)
	}
	key = strings.TrimSpace(key)

	var bucket internal.AggregateBucket
	var found bool
	switch scheme {
	case "payee":
		bucket, found = e.index.Lookup(internal.BucketPayee, util.NormalizePayee(key))
	case "account":
		bucket, found = e.index.Lookup(internal.BucketAccount, key)
	case "period":
		bucket, found = e.index.Lookup(internal.BucketPeriod, key)
	case "document":
		return e.resolveDocument(key, claim.Unit)
	default:
		return 0, nil, fmt.Errorf("unknown source scheme %q", scheme)
	}

	if !found || bucket.Count == 0 {
		return 0, nil, fmt.Errorf("no %s bucket for %q", scheme, key)
	}
	if claim.Unit == internal.UnitCount {
		return int64(bucket.Count), bucket.RecordIDs, nil
	}
	return bucket.TotalCents, bucket.RecordIDs, nil
}

// resolveDocument sums the ledger records a specific document contributed,
// for claims about a non-aggregable fact on one file.
func (e *Engine) resolveDocument(docID string, unit internal.ClaimUnit) (int64, []string, error) {
	var total int64
	var count int64
	var evidence []string
	for _, rec := range e.ledger {
		if !contributedBy(rec, docID) {
			continue
		}
		total += rec.AmountCents
		count++
		evidence = append(evidence, rec.RecordID)
	}
	if count == 0 {
		return 0, nil, fmt.Errorf("no ledger records from document %q", docID)
	}
	sort.Strings(evidence)
	if unit == internal.UnitCount {
		return count, evidence, nil
	}
	return total, evidence, nil
}

func contributedBy(rec internal.TransactionRecord, docID string) bool {
	if rec.SourceDocumentID == docID {
		return true
	}
	for _, doc := range rec.CorroboratingDocumentIDs {
		if doc == docID {
			return true
		}
	}
	return false
}

func (e *Engine) tolerance(claim internal.Claim) internal.Tolerance {
	t := claim.Tolerance
	if t.Kind == "" {
		t = internal.Tolerance{Kind: internal.ToleranceAbsolute, Value: e.cfg.DefaultToleranceDollars}
	}
	return t
}

func assertedValue(claim internal.Claim) int64 {
	if claim.Unit == internal.UnitCount {
		return int64(claim.Value)
	}
	return decimal.NewFromFloat(claim.Value).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func withinTolerance(delta, asserted int64, tol internal.Tolerance, unit internal.ClaimUnit) bool {
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if tol.Kind == internal.TolerancePercent {
		base := asserted
		if base < 0 {
			base = -base
		}
		allowed := decimal.NewFromInt(base).Mul(decimal.NewFromFloat(tol.Value)).Div(decimal.NewFromInt(100))
		return decimal.NewFromInt(abs).LessThanOrEqual(allowed)
	}
	// Absolute tolerance is expressed in dollars for usd claims, items for counts.
	allowed := decimal.NewFromFloat(tol.Value)
	if unit == internal.UnitUSD {
		allowed = allowed.Mul(decimal.NewFromInt(100))
	}
	return decimal.NewFromInt(abs).LessThanOrEqual(allowed)
}
