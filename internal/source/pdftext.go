package source

import (
	"context"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"ledgerproof/internal"
)

// PDFTextSource reads the embedded text layer of digitally rendered
// registers. Word positions come straight from the content stream, so
// confidence is always 1.0.
type PDFTextSource struct{}

func NewPDFTextSource() *PDFTextSource { return &PDFTextSource{} }

// letterHeightPt flips the PDF bottom-left origin into the top-left pixel
// space the segmenter works in. 72pt-per-inch scaled to 300 DPI.
const (
	letterHeightPt = 792.0
	ptToPx         = 300.0 / 72.0
)

func (s *PDFTextSource) Pages(ctx context.Context, doc internal.Document) ([][]internal.RawLine, error) {
	f, r, err := pdf.Open(doc.Path)
	if err != nil {
		return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: err}
	}
	defer f.Close()

	pages := make([][]internal.RawLine, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		select {
		case <-ctx.Done():
			return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: ctx.Err()}
		default:
		}

		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			pages = append(pages, nil)
			continue
		}

		lines := make([]internal.RawLine, 0, len(rows))
		for _, row := range rows {
			words := make([]internal.Word, 0, len(row.Content))
			for _, t := range row.Content {
				text := strings.TrimSpace(t.S)
				if text == "" {
					continue
				}
				words = append(words, internal.Word{
					Text: text,
					Box: internal.BoundingBox{
						X: int(t.X * ptToPx),
						Y: int((letterHeightPt - t.Y) * ptToPx),
						W: int(t.W * ptToPx),
						H: int(t.FontSize * ptToPx),
					},
					Confidence: 1.0,
				})
			}
			if len(words) == 0 {
				continue
			}
			lines = append(lines, buildLine(i, len(lines), words))
		}
		pages = append(pages, lines)
	}

	return pages, nil
}
