package source

import (
	"context"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ledgerproof/internal"
	"ledgerproof/internal/util"
)

// HTMLTableSource reads vendor-payment summary pages published as HTML
// tables. Cell geometry is synthesized: each table row becomes one line and
// each cell a word at a fixed column offset, wide enough apart that the
// segmenter recovers the table columns exactly.
type HTMLTableSource struct{}

func NewHTMLTableSource() *HTMLTableSource { return &HTMLTableSource{} }

const (
	htmlCellStride = 400
	htmlRowStride  = 100
)

func (s *HTMLTableSource) Pages(ctx context.Context, doc internal.Document) ([][]internal.RawLine, error) {
	blob, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: err}
	}

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(string(blob)))
	if err != nil {
		return nil, &internal.AcquisitionError{DocumentID: doc.ID, Err: err}
	}

	var lines []internal.RawLine
	y := 0
	gq.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var words []internal.Word
			row.Find("th,td").Each(func(cellIdx int, cell *goquery.Selection) {
				text := util.NormalizeSpaces(cell.Text())
				if text == "" {
					return
				}
				words = append(words, internal.Word{
					Text: text,
					Box: internal.BoundingBox{
						X: cellIdx * htmlCellStride,
						Y: y,
						W: htmlCellStride / 2,
						H: htmlRowStride / 2,
					},
					Confidence: 1.0,
				})
			})
			if len(words) > 0 {
				lines = append(lines, buildLine(1, len(lines), words))
			}
			y += htmlRowStride
		})
	})

	return [][]internal.RawLine{lines}, nil
}
