package source

import (
	"context"
	"fmt"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
)

// PageSource produces the raw per-page line sequence for one document.
// Implementations must be restartable: calling Pages again on the same
// document yields the same content, so re-running acquisition is safe.
type PageSource interface {
	Pages(ctx context.Context, doc internal.Document) ([][]internal.RawLine, error)
}

// ForDocument picks the source implementation a manifest entry asks for.
func ForDocument(cfg config.Config, doc internal.Document) (PageSource, error) {
	switch doc.Source {
	case internal.SourceOCR:
		return NewTesseractSource(cfg), nil
	case internal.SourcePDFText:
		return NewPDFTextSource(), nil
	case internal.SourceHTML:
		return NewHTMLTableSource(), nil
	default:
		return nil, fmt.Errorf("unsupported page source: %s", doc.Source)
	}
}

// groupWordsIntoLines clusters word boxes into physical text lines by
// vertical proximity. Words are assumed roughly sorted by position already;
// the cluster pass re-sorts each line left to right.
func groupWordsIntoLines(page int, words []internal.Word, yTolerance int) []internal.RawLine {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]internal.Word, len(words))
	copy(sorted, words)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && less(sorted[j], sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var lines []internal.RawLine
	current := []internal.Word{sorted[0]}
	currentY := sorted[0].Box.Y

	flush := func() {
		lines = append(lines, buildLine(page, len(lines), current))
	}

	for _, w := range sorted[1:] {
		if abs(w.Box.Y-currentY) <= yTolerance {
			current = append(current, w)
			continue
		}
		flush()
		current = []internal.Word{w}
		currentY = w.Box.Y
	}
	flush()
	return lines
}

func buildLine(page, line int, words []internal.Word) internal.RawLine {
	sortByX(words)

	text := ""
	box := words[0].Box
	conf := words[0].Confidence
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w.Text
		box = union(box, w.Box)
		if w.Confidence < conf {
			conf = w.Confidence
		}
	}

	return internal.RawLine{
		Page:       page,
		Line:       line,
		Text:       text,
		Box:        box,
		Confidence: conf,
		Words:      words,
	}
}

func sortByX(words []internal.Word) {
	for i := 1; i < len(words); i++ {
		for j := i; j > 0 && words[j].Box.X < words[j-1].Box.X; j-- {
			words[j], words[j-1] = words[j-1], words[j]
		}
	}
}

func less(a, b internal.Word) bool {
	if a.Box.Y != b.Box.Y {
		return a.Box.Y < b.Box.Y
	}
	return a.Box.X < b.Box.X
}

func union(a, b internal.BoundingBox) internal.BoundingBox {
	minX := min(a.X, b.X)
	minY := min(a.Y, b.Y)
	maxX := max(a.X+a.W, b.X+b.W)
	maxY := max(a.Y+a.H, b.Y+b.H)
	return internal.BoundingBox{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
