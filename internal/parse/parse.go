package parse

import (
	"strings"
	"time"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
	"ledgerproof/internal/util"
)

// CodeSpace answers whether an account code belongs to the known code space.
// Unknown codes are retained but flagged, never dropped.
type CodeSpace interface {
	Known(code string) bool
}

// Candidate is a parsed transaction not yet validated or canonicalized.
type Candidate struct {
	Payee         string
	AmountCents   int64
	Date          time.Time
	DatePrecision internal.DatePrecision
	WarrantNumber *string
	AccountCode   *string
	AccountKnown  bool
	Cancelled     bool
	Confidence    float64
	Ambiguity     float64
	Page          int
	RowText       string

	expensedSum  int64
	amountCell   int
	checkTotal   bool
}

// Run parses the candidate rows of one document in order. It carries the
// per-page running total used for subtotal rejection, the last seen date
// (registers only print dates when they change), and the currently open
// record that sub-lines may still extend.
type Run struct {
	cfg   config.Config
	doc   internal.Document
	codes CodeSpace

	pageTotals map[int]int64
	lastDate   time.Time
	current    *Candidate

	candidates []Candidate
	failures   []internal.ParseFailure
}

func NewRun(cfg config.Config, doc internal.Document, codes CodeSpace) *Run {
	return &Run{cfg: cfg, doc: doc, codes: codes, pageTotals: map[int]int64{}}
}

// Header, footer, and summary-section markers. A matching row produces no
// record and no failure.
var skipMarkers = []string{
	"cancelled on",
	"pay to the order",
	"fd-objt",
	"checks dated",
	"board report",
	"reqpay12a",
	"preceding checks",
	"board of trustees",
	"erp for california",
	"generated for",
	"number date",
	"vendor name",
	"check number",
	"expensed amount",
	"check amount",
}

// Markers that start the trailing summary section.
var summaryMarkers = []string{
	"total number",
	"fund recap",
	"net issue",
}

func (r *Run) Row(row internal.CandidateRow) {
	rowText := row.Text()
	lower := strings.ToLower(rowText)

	for _, marker := range skipMarkers {
		if strings.Contains(lower, marker) {
			return
		}
	}
	for _, marker := range summaryMarkers {
		if strings.Contains(lower, marker) {
			return
		}
	}
	if isPageNumber(lower) {
		return
	}

	tokens := tokenize(row)
	if len(tokens) == 0 {
		return
	}

	cancelled := extractCancelled(tokens)
	amount := extractAmount(tokens, row.Degraded)
	warrant := extractWarrant(tokens)
	date, hasDate := extractDate(tokens)
	account, accountFound := extractAccount(tokens)
	payee := remainingPayee(tokens)

	// A row whose only numeric content restates the running page total is a
	// printed subtotal, not a transaction.
	isTotalLabel := strings.Contains(strings.ToUpper(payee), "TOTAL")
	if amount.found && !amount.ambiguous && warrant == nil && (payee == "" || isTotalLabel) &&
		amount.cents == r.pageTotals[row.Page] && r.pageTotals[row.Page] != 0 {
		return
	}
	if amount.found && isTotalLabel && warrant == nil {
		// A total row that does not match the running total is worth a look.
		r.fail(row, rowText, "page total does not match running total")
		return
	}

	// Sub-line of a multi-line check: account code and amount under an open
	// record, with no payee or warrant number of its own.
	if r.current != nil && warrant == nil && payee == "" && amount.found && !amount.ambiguous {
		r.extendCurrent(amount, account, accountFound)
		return
	}

	if !amount.found {
		if payee != "" || util.HasDigit(rowText) {
			r.fail(row, rowText, "no currency-shaped amount token")
		}
		return
	}
	if amount.ambiguous {
		r.fail(row, rowText, "multiple equally plausible amount tokens")
		return
	}

	r.flush()

	cand := Candidate{
		Payee:       payee,
		AmountCents: amount.cents,
		Cancelled:   cancelled || amount.negative,
		Confidence:  row.Confidence,
		Ambiguity:   1.0,
		Page:        row.Page,
		RowText:     rowText,
		amountCell:  amount.cellIdx,
		checkTotal:  amount.rightmost,
	}
	if cand.Cancelled && cand.AmountCents > 0 {
		cand.AmountCents = -cand.AmountCents
	}

	if warrant != nil {
		cand.WarrantNumber = warrant
	}
	if accountFound {
		code := account
		cand.AccountCode = &code
		cand.AccountKnown = r.codes != nil && r.codes.Known(code)
		if !cand.AccountKnown {
			cand.Ambiguity -= 0.1
		}
	}

	switch {
	case hasDate:
		cand.Date = date
		cand.DatePrecision = internal.PrecisionDay
		r.lastDate = date
	case !r.lastDate.IsZero():
		// Dates are only printed when they change.
		cand.Date = r.lastDate
		cand.DatePrecision = internal.PrecisionDay
	default:
		cand.Date = r.doc.PeriodStart.Time
		cand.DatePrecision = internal.PrecisionPeriod
		cand.Ambiguity -= 0.2
	}

	if row.Degraded {
		cand.Ambiguity -= 0.3
	}
	if payee == "" {
		cand.Ambiguity -= 0.3
	}

	r.pageTotals[row.Page] += cand.AmountCents
	r.current = &cand
}

// extendCurrent folds a fund-object sub-line into the open record. The check
// total printed on the last sub-line replaces the amount; expensed component
// amounts are summed as a fallback for records whose total never printed.
func (r *Run) extendCurrent(amount amountResult, account string, accountFound bool) {
	cur := r.current
	if accountFound && cur.AccountCode == nil {
		code := account
		cur.AccountCode = &code
		cur.AccountKnown = r.codes != nil && r.codes.Known(code)
	}

	if amount.cellIdx > cur.amountCell || (amount.rightmost && !cur.checkTotal) {
		r.pageTotals[cur.Page] += amount.cents - cur.AmountCents
		cur.AmountCents = amount.cents
		cur.amountCell = amount.cellIdx
		cur.checkTotal = amount.rightmost
		return
	}
	cur.expensedSum += amount.cents
}

func (r *Run) fail(row internal.CandidateRow, rowText, reason string) {
	r.flush()
	r.failures = append(r.failures, internal.ParseFailure{
		DocumentID: r.doc.ID,
		Page:       row.Page,
		RowText:    rowText,
		Reason:     reason,
		Confidence: row.Confidence,
	})
}

func (r *Run) flush() {
	if r.current == nil {
		return
	}
	cand := *r.current
	if cand.AmountCents == 0 && cand.expensedSum != 0 {
		cand.AmountCents = cand.expensedSum
		r.pageTotals[cand.Page] += cand.expensedSum
	}
	r.candidates = append(r.candidates, cand)
	r.current = nil
}

// Finish closes the open record and returns everything parsed so far.
func (r *Run) Finish() ([]Candidate, []internal.ParseFailure) {
	r.flush()
	return r.candidates, r.failures
}
