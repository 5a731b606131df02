package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"ledgerproof/internal"
	"ledgerproof/internal/util"
)

// WriteLedgerJSON writes the canonical ledger. Records arrive sorted by
// record id, so the file is byte-identical across reruns of the same inputs.
func WriteLedgerJSON(result internal.BatchResult, outputPath string) error {
	return writeJSON(result, outputPath)
}

func WriteVerificationJSON(results []internal.VerificationResult, outputPath string) error {
	return writeJSON(results, outputPath)
}

func writeJSON(v any, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append(blob, '\n'), 0o644)
}

// ExportLedgerToXLSX writes the review workbook: one sheet per channel so an
// auditor can work the exceptions without touching the canonical ledger.
func ExportLedgerToXLSX(result internal.BatchResult, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetName(sheet, "Ledger")

	headers := []string{
		"record_id", "source_document_id", "corroborating_document_ids", "fiscal_year",
		"transaction_date", "date_precision", "payee_name", "payee_normalized",
		"amount", "warrant_number", "account_code", "account_code_known",
		"cancelled", "confidence", "page",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue("Ledger", cell, h)
	}

	for i, rec := range result.Records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue("Ledger", cell, value)
		}

		set(1, rec.RecordID)
		set(2, rec.SourceDocumentID)
		set(3, strings.Join(rec.CorroboratingDocumentIDs, ","))
		set(4, rec.FiscalYear)
		set(5, rec.TransactionDate.String())
		set(6, string(rec.DatePrecision))
		set(7, rec.PayeeName)
		set(8, rec.PayeeNormalized)
		set(9, util.FormatCents(rec.AmountCents))
		set(10, derefString(rec.WarrantNumber))
		set(11, derefString(rec.AccountCode))
		set(12, rec.AccountCodeKnown)
		set(13, rec.Cancelled)
		set(14, string(rec.ProvenanceConfidence))
		set(15, rec.Page)
	}

	if _, err := f.NewSheet("Unparsed"); err != nil {
		return err
	}
	writeHeader(f, "Unparsed", []string{"document_id", "page", "row_text", "reason", "confidence"})
	for i, u := range result.Unparsed {
		writeRow(f, "Unparsed", i+2, u.DocumentID, u.Page, u.RowText, u.Reason, u.Confidence)
	}

	if _, err := f.NewSheet("Rejected"); err != nil {
		return err
	}
	writeHeader(f, "Rejected", []string{"document_id", "row_text", "reason"})
	for i, r := range result.Rejected {
		writeRow(f, "Rejected", i+2, r.DocumentID, r.RowText, r.Reason)
	}

	if _, err := f.NewSheet("Ambiguities"); err != nil {
		return err
	}
	writeHeader(f, "Ambiguities", []string{"record_id", "candidate_record_ids", "reason"})
	for i, a := range result.Ambiguities {
		writeRow(f, "Ambiguities", i+2, a.RecordID, strings.Join(a.Candidates, ","), a.Reason)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
