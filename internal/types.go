package internal

import (
	"fmt"
	"time"
)

type DocumentKind string

const (
	KindRegister DocumentKind = "register"
	KindSummary  DocumentKind = "summary"
)

type SourceType string

const (
	SourceOCR     SourceType = "ocr"
	SourcePDFText SourceType = "pdf_text"
	SourceHTML    SourceType = "html"
)

// Document describes one input file plus the metadata its batch manifest
// declares about it.
type Document struct {
	ID                string       `json:"id"`
	Path              string       `json:"path"`
	Kind              DocumentKind `json:"kind"`
	Source            SourceType   `json:"source"`
	FiscalYear        int          `json:"fiscal_year"`
	PeriodStart       Day          `json:"period_start"`
	PeriodEnd         Day          `json:"period_end"`
	ControlTotalCents *int64       `json:"control_total_cents,omitempty"`
}

// Day is a calendar date serialized as YYYY-MM-DD.
type Day struct {
	time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDay(value string) (Day, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Day{}, err
	}
	return Day{t}, nil
}

func (d Day) String() string { return d.Format("2006-01-02") }

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Day) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == `""` || s == "null" {
		*d = Day{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid day: %s", s)
	}
	parsed, err := ParseDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// RawLine is one physical text line as reported by a page source.
// Ephemeral: produced and consumed within a single document pass.
type RawLine struct {
	Page       int
	Line       int
	Text       string
	Box        BoundingBox
	Confidence float64
	Words      []Word
}

// Word carries sub-line geometry when the source reports word boxes.
type Word struct {
	Text       string
	Box        BoundingBox
	Confidence float64
}

// CandidateRow is a group of raw lines the segmenter judged to form one
// logical record. Cells holds the text per inferred column in x order.
type CandidateRow struct {
	Page         int
	Lines        []RawLine
	Cells        []string
	Confidence   float64
	Continuation bool
	Degraded     bool
}

func (r CandidateRow) Text() string {
	out := ""
	for i, c := range r.Cells {
		if i > 0 {
			out += " | "
		}
		out += c
	}
	return out
}

type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

type DatePrecision string

const (
	PrecisionDay    DatePrecision = "day"
	PrecisionPeriod DatePrecision = "period"
)

// TransactionRecord is the canonical ledger entity. AmountCents is signed:
// negative means void/reversal.
type TransactionRecord struct {
	RecordID                 string         `json:"record_id"`
	SourceDocumentID         string         `json:"source_document_id"`
	CorroboratingDocumentIDs []string       `json:"corroborating_document_ids,omitempty"`
	FiscalYear               int            `json:"fiscal_year"`
	TransactionDate          Day            `json:"transaction_date"`
	DatePrecision            DatePrecision  `json:"date_precision"`
	PayeeName                string         `json:"payee_name"`
	PayeeNormalized          string         `json:"payee_normalized"`
	AmountCents              int64          `json:"amount_cents"`
	WarrantNumber            *string        `json:"warrant_or_check_number,omitempty"`
	AccountCode              *string        `json:"account_code,omitempty"`
	AccountCodeKnown         bool           `json:"account_code_known"`
	Cancelled                bool           `json:"cancelled"`
	ProvenanceConfidence     ConfidenceTier `json:"provenance_confidence"`
	Page                     int            `json:"page"`
}

// ParseFailure is a row that could not yield a valid record. Retained on the
// side channel for manual review, never discarded.
type ParseFailure struct {
	DocumentID string  `json:"document_id"`
	Page       int     `json:"page"`
	RowText    string  `json:"row_text"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// ValidationRejection is a parsed candidate that violated a data invariant.
type ValidationRejection struct {
	DocumentID string `json:"document_id"`
	RowText    string `json:"row_text"`
	Reason     string `json:"reason"`
}

// ReconciliationAmbiguity records a fuzzy-duplicate tie left unmerged for
// manual resolution.
type ReconciliationAmbiguity struct {
	RecordID   string   `json:"record_id"`
	Candidates []string `json:"candidate_record_ids"`
	Reason     string   `json:"reason"`
}

// DocumentError records a document-scoped failure (e.g. acquisition) that
// removed that document from the batch without aborting siblings.
type DocumentError struct {
	DocumentID string `json:"document_id"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

// AcquisitionError wraps a page-source failure. Document-scoped and
// retryable; the pipeline retries a bounded number of times before recording
// a DocumentError.
type AcquisitionError struct {
	DocumentID string
	Err        error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire pages for %s: %v", e.DocumentID, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

type BucketKind string

const (
	BucketPayee   BucketKind = "payee"
	BucketAccount BucketKind = "account"
	BucketPeriod  BucketKind = "period"
)

// AggregateBucket is a deterministic rollup over the canonical record set.
// Low-confidence records are summed separately so totals stay auditable.
type AggregateBucket struct {
	Kind               BucketKind `json:"kind"`
	Key                string     `json:"key"`
	TotalCents         int64      `json:"total_cents"`
	LowConfidenceCents int64      `json:"low_confidence_cents"`
	Count              int        `json:"count"`
	RecordIDs          []string   `json:"record_ids"`
	MinDate            Day        `json:"min_date"`
	MaxDate            Day        `json:"max_date"`
}

type ClaimUnit string

const (
	UnitUSD   ClaimUnit = "usd"
	UnitCount ClaimUnit = "count"
)

type ToleranceKind string

const (
	ToleranceAbsolute ToleranceKind = "absolute"
	TolerancePercent  ToleranceKind = "percent"
)

// Tolerance is claim-specified: absolute dollars (or units) or a percentage
// of the asserted value.
type Tolerance struct {
	Kind  ToleranceKind `json:"kind"`
	Value float64       `json:"value"`
}

// Claim is a numeric assertion from a narrative document. Owned by the
// report-authoring process, read-only here.
type Claim struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Value     float64   `json:"value"`
	Unit      ClaimUnit `json:"unit"`
	Source    string    `json:"source"`
	Tolerance Tolerance `json:"tolerance"`
}

type Verdict string

const (
	VerdictVerified     Verdict = "verified"
	VerdictMismatch     Verdict = "mismatch"
	VerdictUnverifiable Verdict = "unverifiable"
)

// VerificationResult is appended to the audit log, one per claim, in claim
// order. Matched and Delta are minor units for usd claims, raw counts for
// count claims.
type VerificationResult struct {
	ClaimID        string    `json:"claim_id"`
	Verdict        Verdict   `json:"verdict"`
	Unit           ClaimUnit `json:"unit"`
	Asserted       int64     `json:"asserted"`
	Matched        int64     `json:"matched"`
	Delta          int64     `json:"delta"`
	ToleranceUsed  Tolerance `json:"tolerance_used"`
	EvidenceIDs    []string  `json:"evidence_record_ids"`
	EvidenceSource string    `json:"evidence_source"`
	Note           string    `json:"note,omitempty"`
}

// DocumentSummary reconciles one document's extracted total against its
// stated control total, when the manifest declares one.
type DocumentSummary struct {
	DocumentID        string   `json:"document_id"`
	Pages             int      `json:"pages"`
	Rows              int      `json:"rows"`
	Records           int      `json:"records"`
	Cancelled         int      `json:"cancelled"`
	Unparsed          int      `json:"unparsed"`
	Rejected          int      `json:"rejected"`
	NetTotalCents     int64    `json:"net_total_cents"`
	ControlTotalCents *int64   `json:"control_total_cents,omitempty"`
	ControlDeltaCents *int64   `json:"control_delta_cents,omitempty"`
	ControlDeltaPct   *float64 `json:"control_delta_pct,omitempty"`
	MissingWarrants   []string `json:"missing_warrant_numbers,omitempty"`
}

// BatchResult is the full outcome of one pipeline run: every success,
// failure, and ambiguity. The run always completes.
type BatchResult struct {
	Records        []TransactionRecord       `json:"records"`
	Unparsed       []ParseFailure            `json:"unparsed"`
	Rejected       []ValidationRejection     `json:"rejected"`
	Ambiguities    []ReconciliationAmbiguity `json:"ambiguities"`
	DocumentErrors []DocumentError           `json:"document_errors"`
	Summaries      []DocumentSummary         `json:"summaries"`
}

func StringPtr(v string) *string { return &v }

func Int64Ptr(v int64) *int64 { return &v }
