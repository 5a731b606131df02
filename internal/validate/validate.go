package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
	"ledgerproof/internal/parse"
	"ledgerproof/internal/refdata"
	"ledgerproof/internal/util"
)

// Validator enforces the record invariants and canonicalizes parsed
// candidates. Violations become retained rejections, never fatal errors.
type Validator struct {
	cfg config.Config
}

func New(cfg config.Config) *Validator {
	return &Validator{cfg: cfg}
}

func (v *Validator) Canonicalize(doc internal.Document, candidates []parse.Candidate) ([]internal.TransactionRecord, []internal.ValidationRejection) {
	records := make([]internal.TransactionRecord, 0, len(candidates))
	var rejected []internal.ValidationRejection

	reject := func(c parse.Candidate, reason string) {
		rejected = append(rejected, internal.ValidationRejection{
			DocumentID: doc.ID,
			RowText:    c.RowText,
			Reason:     reason,
		})
	}

	windowStart, windowEnd := refdata.FiscalWindow(doc.FiscalYear)
	windowStart = windowStart.AddDate(0, 0, -v.cfg.FiscalSlackDays)
	windowEnd = windowEnd.AddDate(0, 0, v.cfg.FiscalSlackDays)

	for _, c := range candidates {
		normalized := util.NormalizePayee(c.Payee)
		if normalized == "" {
			reject(c, "empty payee after normalization")
			continue
		}
		if c.AmountCents == 0 {
			reject(c, "zero amount")
			continue
		}
		if c.Date.Before(windowStart) || c.Date.After(windowEnd) {
			reject(c, fmt.Sprintf("date %s outside fiscal year %d window", c.Date.Format("2006-01-02"), doc.FiscalYear))
			continue
		}

		rec := internal.TransactionRecord{
			SourceDocumentID:     doc.ID,
			FiscalYear:           doc.FiscalYear,
			TransactionDate:      internal.Day{Time: c.Date},
			DatePrecision:        c.DatePrecision,
			PayeeName:            c.Payee,
			PayeeNormalized:      normalized,
			AmountCents:          c.AmountCents,
			WarrantNumber:        c.WarrantNumber,
			AccountCode:          c.AccountCode,
			AccountCodeKnown:     c.AccountKnown,
			Cancelled:            c.Cancelled,
			ProvenanceConfidence: v.tier(c),
			Page:                 c.Page,
		}
		rec.RecordID = RecordID(rec)
		records = append(records, rec)
	}

	return records, rejected
}

// tier combines the row's OCR confidence with the parser's ambiguity signal.
func (v *Validator) tier(c parse.Candidate) internal.ConfidenceTier {
	ambiguity := c.Ambiguity
	if ambiguity < 0 {
		ambiguity = 0
	}
	if ambiguity > 1 {
		ambiguity = 1
	}
	score := c.Confidence * ambiguity

	switch {
	case score >= v.cfg.HighConfThreshold:
		return internal.ConfidenceHigh
	case score >= v.cfg.LowConfThreshold:
		return internal.ConfidenceMedium
	default:
		return internal.ConfidenceLow
	}
}

// RecordID derives the content-addressed dedup key. Run-independent by
// construction, so re-running acquisition can never duplicate records.
func RecordID(rec internal.TransactionRecord) string {
	warrant := ""
	if rec.WarrantNumber != nil {
		warrant = *rec.WarrantNumber
	}
	payload := fmt.Sprintf("%d|%s|%d|%s|%s",
		rec.FiscalYear,
		rec.PayeeNormalized,
		rec.AmountCents,
		rec.TransactionDate.String(),
		warrant,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}
