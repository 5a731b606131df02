package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
	"ledgerproof/internal/source"
	"ledgerproof/internal/storage"
)

type stubCodes map[string]bool

func (s stubCodes) Known(code string) bool { return s[code] }

func word(text string, x, y int) internal.Word {
	return internal.Word{Text: text, Box: internal.BoundingBox{X: x, Y: y, W: 80, H: 20}, Confidence: 0.95}
}

func line(page, y int, words ...internal.Word) internal.RawLine {
	text := ""
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w.Text
	}
	return internal.RawLine{
		Page:       page,
		Text:       text,
		Box:        internal.BoundingBox{X: words[0].Box.X, Y: y, W: 1800, H: 20},
		Confidence: 0.95,
		Words:      words,
	}
}

func registerPage(entries [][4]string) []internal.RawLine {
	lines := make([]internal.RawLine, 0, len(entries))
	for i, e := range entries {
		y := 100 + i*100
		lines = append(lines, line(1, y,
			word(e[0], 10, y), word(e[1], 300, y), word(e[2], 600, y), word(e[3], 1500, y)))
	}
	return lines
}

func testDocs() []internal.Document {
	return []internal.Document{
		{
			ID: "register-1", Kind: internal.KindRegister, Source: internal.SourceOCR,
			FiscalYear: 2026, PeriodStart: internal.NewDay(2025, time.July, 1), PeriodEnd: internal.NewDay(2025, time.July, 31),
		},
		{
			ID: "register-2", Kind: internal.KindRegister, Source: internal.SourceOCR,
			FiscalYear: 2026, PeriodStart: internal.NewDay(2025, time.July, 1), PeriodEnd: internal.NewDay(2025, time.July, 31),
		},
	}
}

func testMemSource() *source.MemorySource {
	mem := source.NewMemorySource()
	mem.Add("register-1", [][]internal.RawLine{registerPage([][4]string{
		{"0200000001", "07/15/2025", "ZUM", "1,234.56"},
		{"0200000002", "07/15/2025", "ACME", "500.00"},
		{"0200000004", "07/16/2025", "PGE", "75.25"},
	})})
	mem.Add("register-2", [][]internal.RawLine{registerPage([][4]string{
		{"1200000001", "07/20/2025", "CDC", "250.00"},
		{"1200000002", "07/20/2025", "USPS", "35.00"},
		{"1200000003", "07/21/2025", "ATT", "120.00"},
	})})
	return mem
}

func newTestBatch(t *testing.T, db *storage.DB, mem *source.MemorySource) *Batch {
	t.Helper()
	cfg, _ := config.Load()
	batch := NewBatch(cfg, db, stubCodes{})
	batch.SourceFor = func(config.Config, internal.Document) (source.PageSource, error) { return mem, nil }
	return batch
}

func TestBatchSmoke(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	batch := newTestBatch(t, db, testMemSource())
	result, err := batch.Run(context.Background(), testDocs())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(result.Records))
	}
	if len(result.DocumentErrors) != 0 {
		t.Fatalf("unexpected document errors: %+v", result.DocumentErrors)
	}
	if len(result.Summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(result.Summaries))
	}

	stored, err := db.ListRecords()
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != len(result.Records) {
		t.Fatalf("stored %d records, expected %d", len(stored), len(result.Records))
	}
	for i := range stored {
		if stored[i].RecordID != result.Records[i].RecordID {
			t.Fatalf("stored order diverges at %d", i)
		}
	}
}

func TestBatchDeterministic(t *testing.T) {
	docs := testDocs()

	first, err := newTestBatch(t, nil, testMemSource()).Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newTestBatch(t, nil, testMemSource()).Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatal("re-run over identical input produced different output")
	}
}

func TestBatchDocumentFailureIsolated(t *testing.T) {
	mem := testMemSource()
	mem.Fail("register-2", errors.New("scanner jam"))

	result, err := newTestBatch(t, nil, mem).Run(context.Background(), testDocs())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.DocumentErrors) != 1 {
		t.Fatalf("expected 1 document error, got %+v", result.DocumentErrors)
	}
	if result.DocumentErrors[0].DocumentID != "register-2" {
		t.Fatalf("wrong document flagged: %+v", result.DocumentErrors[0])
	}
	if len(result.Records) != 3 {
		t.Fatalf("sibling document should still yield records, got %d", len(result.Records))
	}
}

func TestBatchSummaryControlTotal(t *testing.T) {
	docs := testDocs()[:1]
	docs[0].ControlTotalCents = internal.Int64Ptr(180981)

	result, err := newTestBatch(t, nil, testMemSource()).Run(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}

	s := result.Summaries[0]
	// 1,234.56 + 500.00 + 75.25 = 1,809.81
	if s.NetTotalCents != 180981 {
		t.Fatalf("net total = %d", s.NetTotalCents)
	}
	if s.ControlDeltaCents == nil || *s.ControlDeltaCents != 0 {
		t.Fatalf("control delta = %v", s.ControlDeltaCents)
	}
}

func TestBatchMissingWarrantGap(t *testing.T) {
	result, err := newTestBatch(t, nil, testMemSource()).Run(context.Background(), testDocs()[:1])
	if err != nil {
		t.Fatal(err)
	}

	missing := result.Summaries[0].MissingWarrants
	if len(missing) != 1 || missing[0] != "0200000003" {
		t.Fatalf("missing warrants = %v", missing)
	}
}

func TestMissingWarrantsIgnoresLargeGaps(t *testing.T) {
	missing := missingWarrants([]string{"0200000001", "0200000500"})
	if len(missing) != 0 {
		t.Fatalf("large gap flagged: %v", missing)
	}

	missing = missingWarrants([]string{"DDP-00000001", "DDP-00000003"})
	if len(missing) != 1 || missing[0] != "DDP-00000002" {
		t.Fatalf("ddp gap = %v", missing)
	}
}
