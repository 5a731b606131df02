package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ledgerproof/internal"
)

func TestLoadManifest(t *testing.T) {
	tmp := t.TempDir()
	manifest := `{
  "batch_id": "fy26-july",
  "documents": [
    {"id": "register-1", "path": "scans/july.pdf", "kind": "register", "source": "ocr",
     "fiscal_year": 2026, "period_start": "2025-07-01", "period_end": "2025-07-31",
     "control_total_cents": 180981},
    {"id": "summary-1", "path": "/abs/summary.html", "kind": "summary", "source": "html",
     "fiscal_year": 2026, "period_start": "2025-07-01", "period_end": "2025-07-31"}
  ]
}`
	path := filepath.Join(tmp, "batch.json")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.BatchID != "fy26-july" || len(m.Documents) != 2 {
		t.Fatalf("manifest = %+v", m)
	}

	first := m.Documents[0]
	if first.Path != filepath.Join(tmp, "scans", "july.pdf") {
		t.Fatalf("relative path not resolved: %q", first.Path)
	}
	if first.ControlTotalCents == nil || *first.ControlTotalCents != 180981 {
		t.Fatalf("control total = %v", first.ControlTotalCents)
	}
	if m.Documents[1].Path != "/abs/summary.html" {
		t.Fatalf("absolute path rewritten: %q", m.Documents[1].Path)
	}
}

func TestLoadManifestDuplicateID(t *testing.T) {
	tmp := t.TempDir()
	manifest := `{"documents": [{"id": "d1"}, {"id": "d1"}]}`
	path := filepath.Join(tmp, "batch.json")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadManifest(path); err == nil {
		t.Fatal("duplicate document id accepted")
	}
}

func TestLoadClaims(t *testing.T) {
	tmp := t.TempDir()
	claims := `[
  {"id": "c1", "text": "Zum was paid $38,374,008", "value": 38374008.00,
   "source": "payee:Zum Services, Inc.", "tolerance": {"kind": "absolute", "value": 1.0}},
  {"id": "c2", "value": 42, "unit": "count", "source": "period:2026"}
]`
	path := filepath.Join(tmp, "claims.json")
	if err := os.WriteFile(path, []byte(claims), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadClaims(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d claims", len(loaded))
	}
	if loaded[0].Unit != internal.UnitUSD {
		t.Fatalf("unit default not applied: %v", loaded[0].Unit)
	}
	if loaded[1].Unit != internal.UnitCount {
		t.Fatalf("unit = %v", loaded[1].Unit)
	}
}

func TestLoadClaimsMissingSource(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "claims.json")
	if err := os.WriteFile(path, []byte(`[{"id": "c1", "value": 5}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadClaims(path); err == nil {
		t.Fatal("claim without source accepted")
	}
}

func TestExportLedgerToXLSX(t *testing.T) {
	tmp := t.TempDir()
	result, err := newTestBatch(t, nil, testMemSource()).Run(context.Background(), testDocs())
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(tmp, "ledger.xlsx")
	if err := ExportLedgerToXLSX(result, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}
