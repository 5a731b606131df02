package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"ledgerproof/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  source TEXT NOT NULL,
  fiscalYear INTEGER NOT NULL,
  periodStart TEXT NOT NULL,
  periodEnd TEXT NOT NULL,
  controlTotalCents INTEGER,
  path TEXT NOT NULL,
  ingestedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS records (
  recordId TEXT PRIMARY KEY,
  sourceDocumentId TEXT NOT NULL,
  corroboratingIds TEXT,
  fiscalYear INTEGER NOT NULL,
  transactionDate TEXT NOT NULL,
  datePrecision TEXT NOT NULL,
  payeeName TEXT NOT NULL,
  payeeNormalized TEXT NOT NULL,
  amountCents INTEGER NOT NULL,
  warrantNumber TEXT,
  accountCode TEXT,
  accountCodeKnown INTEGER NOT NULL,
  cancelled INTEGER NOT NULL,
  confidence TEXT NOT NULL,
  page INTEGER NOT NULL,
  FOREIGN KEY(sourceDocumentId) REFERENCES documents(id)
);
CREATE INDEX IF NOT EXISTS idx_records_payee ON records(payeeNormalized);
CREATE INDEX IF NOT EXISTS idx_records_fy ON records(fiscalYear);

CREATE TABLE IF NOT EXISTS unparsed_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId TEXT NOT NULL,
  page INTEGER NOT NULL,
  rowText TEXT NOT NULL,
  reason TEXT NOT NULL,
  confidence REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS rejected_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId TEXT NOT NULL,
  rowText TEXT NOT NULL,
  reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ambiguities (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  recordId TEXT NOT NULL,
  candidateIds TEXT NOT NULL,
  reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document_errors (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId TEXT NOT NULL,
  stage TEXT NOT NULL,
  message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document_summaries (
  documentId TEXT PRIMARY KEY,
  summaryJson TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  documents INTEGER NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS verification_results (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  claimId TEXT NOT NULL,
  verdict TEXT NOT NULL,
  resultJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertDocument(doc internal.Document) error {
	_, err := d.conn.Exec(`
INSERT INTO documents (id, kind, source, fiscalYear, periodStart, periodEnd, controlTotalCents, path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  kind=excluded.kind,
  source=excluded.source,
  fiscalYear=excluded.fiscalYear,
  periodStart=excluded.periodStart,
  periodEnd=excluded.periodEnd,
  controlTotalCents=excluded.controlTotalCents,
  path=excluded.path,
  ingestedAt=CURRENT_TIMESTAMP
`, doc.ID, string(doc.Kind), string(doc.Source), doc.FiscalYear,
		doc.PeriodStart.String(), doc.PeriodEnd.String(), doc.ControlTotalCents, doc.Path)
	return err
}

// ReplaceLedger swaps the full batch outcome in one transaction. Ingest is a
// whole-batch recompute, so partial updates never make sense here.
func (d *DB) ReplaceLedger(result internal.BatchResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"records", "unparsed_rows", "rejected_records", "ambiguities", "document_errors", "document_summaries"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}

	stmt, err := tx.Prepare(`
INSERT INTO records (
  recordId, sourceDocumentId, corroboratingIds, fiscalYear, transactionDate, datePrecision,
  payeeName, payeeNormalized, amountCents, warrantNumber, accountCode, accountCodeKnown,
  cancelled, confidence, page
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range result.Records {
		if _, err := stmt.Exec(
			rec.RecordID, rec.SourceDocumentID, strings.Join(rec.CorroboratingDocumentIDs, ","),
			rec.FiscalYear, rec.TransactionDate.String(), string(rec.DatePrecision),
			rec.PayeeName, rec.PayeeNormalized, rec.AmountCents,
			rec.WarrantNumber, rec.AccountCode, boolInt(rec.AccountCodeKnown),
			boolInt(rec.Cancelled), string(rec.ProvenanceConfidence), rec.Page,
		); err != nil {
			return err
		}
	}

	for _, u := range result.Unparsed {
		if _, err := tx.Exec(`
INSERT INTO unparsed_rows (documentId, page, rowText, reason, confidence) VALUES (?, ?, ?, ?, ?)
`, u.DocumentID, u.Page, u.RowText, u.Reason, u.Confidence); err != nil {
			return err
		}
	}

	for _, r := range result.Rejected {
		if _, err := tx.Exec(`
INSERT INTO rejected_records (documentId, rowText, reason) VALUES (?, ?, ?)
`, r.DocumentID, r.RowText, r.Reason); err != nil {
			return err
		}
	}

	for _, a := range result.Ambiguities {
		if _, err := tx.Exec(`
INSERT INTO ambiguities (recordId, candidateIds, reason) VALUES (?, ?, ?)
`, a.RecordID, strings.Join(a.Candidates, ","), a.Reason); err != nil {
			return err
		}
	}

	for _, e := range result.DocumentErrors {
		if _, err := tx.Exec(`
INSERT INTO document_errors (documentId, stage, message) VALUES (?, ?, ?)
`, e.DocumentID, e.Stage, e.Message); err != nil {
			return err
		}
	}

	for _, s := range result.Summaries {
		summaryJSON, _ := json.Marshal(s)
		if _, err := tx.Exec(`
INSERT INTO document_summaries (documentId, summaryJson) VALUES (?, ?)
`, s.DocumentID, string(summaryJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListRecords() ([]internal.TransactionRecord, error) {
	rows, err := d.conn.Query(`
SELECT recordId, sourceDocumentId, corroboratingIds, fiscalYear, transactionDate, datePrecision,
       payeeName, payeeNormalized, amountCents, warrantNumber, accountCode, accountCodeKnown,
       cancelled, confidence, page
FROM records ORDER BY recordId ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.TransactionRecord
	for rows.Next() {
		var rec internal.TransactionRecord
		var corroborating, date, precision, confidence string
		var accountKnown, cancelled int
		if err := rows.Scan(
			&rec.RecordID, &rec.SourceDocumentID, &corroborating, &rec.FiscalYear, &date, &precision,
			&rec.PayeeName, &rec.PayeeNormalized, &rec.AmountCents, &rec.WarrantNumber, &rec.AccountCode,
			&accountKnown, &cancelled, &confidence, &rec.Page,
		); err != nil {
			return nil, err
		}
		if corroborating != "" {
			rec.CorroboratingDocumentIDs = strings.Split(corroborating, ",")
		}
		parsed, err := internal.ParseDay(date)
		if err != nil {
			return nil, err
		}
		rec.TransactionDate = parsed
		rec.DatePrecision = internal.DatePrecision(precision)
		rec.AccountCodeKnown = accountKnown != 0
		rec.Cancelled = cancelled != 0
		rec.ProvenanceConfidence = internal.ConfidenceTier(confidence)
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (d *DB) ListUnparsed() ([]internal.ParseFailure, error) {
	rows, err := d.conn.Query(`
SELECT documentId, page, rowText, reason, confidence FROM unparsed_rows ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ParseFailure
	for rows.Next() {
		var f internal.ParseFailure
		if err := rows.Scan(&f.DocumentID, &f.Page, &f.RowText, &f.Reason, &f.Confidence); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (d *DB) ListRejected() ([]internal.ValidationRejection, error) {
	rows, err := d.conn.Query(`
SELECT documentId, rowText, reason FROM rejected_records ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ValidationRejection
	for rows.Next() {
		var r internal.ValidationRejection
		if err := rows.Scan(&r.DocumentID, &r.RowText, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) ListAmbiguities() ([]internal.ReconciliationAmbiguity, error) {
	rows, err := d.conn.Query(`
SELECT recordId, candidateIds, reason FROM ambiguities ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReconciliationAmbiguity
	for rows.Next() {
		var a internal.ReconciliationAmbiguity
		var candidates string
		if err := rows.Scan(&a.RecordID, &candidates, &a.Reason); err != nil {
			return nil, err
		}
		if candidates != "" {
			a.Candidates = strings.Split(candidates, ",")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) ListSummaries() ([]internal.DocumentSummary, error) {
	rows, err := d.conn.Query(`SELECT summaryJson FROM document_summaries ORDER BY documentId ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentSummary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var s internal.DocumentSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AppendVerification logs results append-only so successive audits of the
// same claim stay distinguishable.
func (d *DB) AppendVerification(results []internal.VerificationResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range results {
		resultJSON, _ := json.Marshal(r)
		if _, err := tx.Exec(`
INSERT INTO verification_results (claimId, verdict, resultJson) VALUES (?, ?, ?)
`, r.ClaimID, string(r.Verdict), string(resultJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) InsertRun(traceID string, documents int, counts map[string]int) error {
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, documents, countsJson) VALUES (?, ?, ?)`,
		traceID, documents, string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
