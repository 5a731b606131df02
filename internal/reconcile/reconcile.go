package reconcile

import (
	"fmt"
	"sort"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
	"ledgerproof/internal/util"
)

// Engine merges records describing the same underlying payment sourced from
// overlapping documents. Merging never discards information: every
// contributing document id survives on the canonical record.
type Engine struct {
	cfg config.Config
}

func New(cfg config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Reconcile runs the exact pass (shared record_id) then the fuzzy pass
// (same amount, near-identical payee, dates within the configured window).
// Fuzzy ties are never guessed: they are left unmerged and flagged.
func (e *Engine) Reconcile(records []internal.TransactionRecord) ([]internal.TransactionRecord, []internal.ReconciliationAmbiguity) {
	merged := e.mergeExact(records)
	return e.mergeFuzzy(merged)
}

// mergeExact collapses records sharing a record_id. The highest-confidence
// source stays canonical; the rest become corroborating provenance.
func (e *Engine) mergeExact(records []internal.TransactionRecord) []internal.TransactionRecord {
	byID := map[string][]internal.TransactionRecord{}
	var order []string
	for _, rec := range records {
		if _, seen := byID[rec.RecordID]; !seen {
			order = append(order, rec.RecordID)
		}
		byID[rec.RecordID] = append(byID[rec.RecordID], rec)
	}
	sort.Strings(order)

	out := make([]internal.TransactionRecord, 0, len(order))
	for _, id := range order {
		group := byID[id]
		sort.SliceStable(group, func(i, j int) bool {
			ti, tj := tierRank(group[i].ProvenanceConfidence), tierRank(group[j].ProvenanceConfidence)
			if ti != tj {
				return ti > tj
			}
			return group[i].SourceDocumentID < group[j].SourceDocumentID
		})

		canonical := group[0]
		for _, other := range group[1:] {
			canonical.CorroboratingDocumentIDs = appendDoc(canonical.CorroboratingDocumentIDs, other.SourceDocumentID, canonical.SourceDocumentID)
			for _, doc := range other.CorroboratingDocumentIDs {
				canonical.CorroboratingDocumentIDs = appendDoc(canonical.CorroboratingDocumentIDs, doc, canonical.SourceDocumentID)
			}
		}
		sort.Strings(canonical.CorroboratingDocumentIDs)
		out = append(out, canonical)
	}
	return out
}

// payeeMatchThreshold gates the fuzzy pass. Identical normalized payees
// score 1.0, OCR-mangled variants of one vendor land around 0.8, and
// distinct vendors that happen to share an amount stay well below.
const payeeMatchThreshold = 0.75

// mergeFuzzy pairs records from different documents that plausibly describe
// one payment: same amount, near-identical payee, dates within N days. A
// merge happens only when each record is the other's strictly unique best
// match; a contested candidate stays unmerged and the record holding the tie
// flags it.
func (e *Engine) mergeFuzzy(records []internal.TransactionRecord) ([]internal.TransactionRecord, []internal.ReconciliationAmbiguity) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].RecordID < records[j].RecordID })

	groups := map[int64][]int{}
	for i, rec := range records {
		groups[rec.AmountCents] = append(groups[rec.AmountCents], i)
	}

	absorbed := make([]bool, len(records))
	var ambiguities []internal.ReconciliationAmbiguity

	for i := range records {
		if absorbed[i] {
			continue
		}
		best := e.bestMatches(records, absorbed, groups[records[i].AmountCents], i)

		switch {
		case len(best) == 1:
			j := best[0]
			back := e.bestMatches(records, absorbed, groups[records[j].AmountCents], j)
			if len(back) != 1 || back[0] != i {
				// j has an equally good or better match elsewhere; leave
				// both for j's own probe to merge or flag.
				continue
			}
			canonical, other := i, j
			if tierRank(records[j].ProvenanceConfidence) > tierRank(records[i].ProvenanceConfidence) {
				canonical, other = j, i
			}
			records[canonical].CorroboratingDocumentIDs = appendDoc(
				records[canonical].CorroboratingDocumentIDs,
				records[other].SourceDocumentID,
				records[canonical].SourceDocumentID,
			)
			for _, doc := range records[other].CorroboratingDocumentIDs {
				records[canonical].CorroboratingDocumentIDs = appendDoc(records[canonical].CorroboratingDocumentIDs, doc, records[canonical].SourceDocumentID)
			}
			sort.Strings(records[canonical].CorroboratingDocumentIDs)
			absorbed[other] = true
		case len(best) > 1:
			candidateIDs := make([]string, 0, len(best))
			for _, j := range best {
				candidateIDs = append(candidateIDs, records[j].RecordID)
			}
			sort.Strings(candidateIDs)
			ambiguities = append(ambiguities, internal.ReconciliationAmbiguity{
				RecordID:   records[i].RecordID,
				Candidates: candidateIDs,
				Reason:     fmt.Sprintf("%d equally close duplicate candidates within %d days", len(best), e.cfg.DedupWindowDays),
			})
		}
	}

	out := make([]internal.TransactionRecord, 0, len(records))
	for i, rec := range records {
		if !absorbed[i] {
			out = append(out, rec)
		}
	}
	return out, ambiguities
}

// bestMatches returns the indices of i's closest duplicate candidates among
// peers: different document, payee similarity over the threshold, dates
// within the window. Closeness is day gap first, payee similarity second;
// every candidate tied on both is returned.
func (e *Engine) bestMatches(records []internal.TransactionRecord, absorbed []bool, peers []int, i int) []int {
	windowDays := e.cfg.DedupWindowDays
	bestGap := windowDays + 1
	bestSim := 0.0
	var best []int
	for _, j := range peers {
		if j == i || absorbed[j] {
			continue
		}
		if records[j].SourceDocumentID == records[i].SourceDocumentID {
			continue
		}
		sim := payeeSimilarity(records[i].PayeeNormalized, records[j].PayeeNormalized)
		if sim < payeeMatchThreshold {
			continue
		}
		gap := dayGap(records[i].TransactionDate, records[j].TransactionDate)
		if gap > windowDays {
			continue
		}
		switch {
		case gap < bestGap || (gap == bestGap && sim > bestSim):
			bestGap, bestSim = gap, sim
			best = []int{j}
		case gap == bestGap && sim == bestSim:
			best = append(best, j)
		}
	}
	return best
}

// payeeSimilarity blends bigram overlap with whole-token overlap so that a
// single mangled character does not sink an otherwise identical name.
func payeeSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	dice := util.DiceCoefficient(a, b)
	aTokens, bTokens := util.Tokenize(a), util.Tokenize(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range bTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range aTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	return 0.65*dice + 0.35*float64(overlap)/float64(len(aTokens))
}

func tierRank(tier internal.ConfidenceTier) int {
	switch tier {
	case internal.ConfidenceHigh:
		return 3
	case internal.ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

func dayGap(a, b internal.Day) int {
	d := int(a.Sub(b.Time).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

func appendDoc(docs []string, doc, canonical string) []string {
	if doc == canonical {
		return docs
	}
	for _, existing := range docs {
		if existing == doc {
			return docs
		}
	}
	return append(docs, doc)
}
