package segment

import (
	"sort"
	"strings"

	"ledgerproof/internal"
	"ledgerproof/internal/config"
	"ledgerproof/internal/util"
)

// Segmenter groups raw page lines into logical table rows. Column boundaries
// are re-estimated per page from word x-offsets, so scan skew on one page
// does not poison the next.
type Segmenter struct {
	cfg config.Config
}

func New(cfg config.Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// degradedPenalty is applied to every row on a page where no column
// structure could be inferred.
const degradedPenalty = 0.5

// Rows segments all pages of one document.
func (s *Segmenter) Rows(pages [][]internal.RawLine) []internal.CandidateRow {
	var out []internal.CandidateRow
	for _, lines := range pages {
		out = append(out, s.segmentPage(lines)...)
	}
	return s.resolveContinuations(out)
}

func (s *Segmenter) segmentPage(lines []internal.RawLine) []internal.CandidateRow {
	// Lines below the confidence floor are scanner garbage; keeping them
	// would skew column inference for the whole page.
	kept := make([]internal.RawLine, 0, len(lines))
	for _, line := range lines {
		if line.Confidence >= s.cfg.SegmentMinConf {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	columns := s.inferColumns(kept)
	degraded := len(columns) < 2

	grouped := s.groupLines(kept)
	rows := make([]internal.CandidateRow, 0, len(grouped))
	for _, group := range grouped {
		row := s.buildRow(group, columns, degraded)
		rows = append(rows, row)
	}
	return rows
}

// inferColumns clusters word start offsets across the whole page. A cluster
// only counts as a column when enough words align to it; sparse clusters are
// noise from skew or stray marks.
func (s *Segmenter) inferColumns(lines []internal.RawLine) []int {
	var xs []int
	for _, line := range lines {
		for _, w := range line.Words {
			xs = append(xs, w.Box.X)
		}
	}
	if len(xs) == 0 {
		return nil
	}
	sort.Ints(xs)

	type cluster struct {
		start, end, count int
	}
	clusters := []cluster{{start: xs[0], end: xs[0], count: 1}}
	for _, x := range xs[1:] {
		last := &clusters[len(clusters)-1]
		if x-last.end <= s.cfg.ColumnGapPx {
			last.end = x
			last.count++
			continue
		}
		clusters = append(clusters, cluster{start: x, end: x, count: 1})
	}

	var columns []int
	for _, c := range clusters {
		if c.count >= s.cfg.ColumnMinWords {
			columns = append(columns, c.start)
		}
	}
	return columns
}

// groupLines merges lines whose vertical positions fall within the row gap.
// Page sources emit one line per y-cluster of words already, so this mostly
// passes lines through and only re-joins lines split by skew.
func (s *Segmenter) groupLines(lines []internal.RawLine) [][]internal.RawLine {
	sorted := make([]internal.RawLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Box.Y < sorted[j].Box.Y })

	var groups [][]internal.RawLine
	current := []internal.RawLine{sorted[0]}
	currentY := sorted[0].Box.Y
	for _, line := range sorted[1:] {
		if line.Box.Y-currentY <= s.cfg.RowGapPx/2 {
			current = append(current, line)
			continue
		}
		groups = append(groups, current)
		current = []internal.RawLine{line}
		currentY = line.Box.Y
	}
	groups = append(groups, current)
	return groups
}

func (s *Segmenter) buildRow(group []internal.RawLine, columns []int, degraded bool) internal.CandidateRow {
	row := internal.CandidateRow{
		Page:       group[0].Page,
		Lines:      group,
		Confidence: group[0].Confidence,
		Degraded:   degraded,
	}
	for _, line := range group {
		if line.Confidence < row.Confidence {
			row.Confidence = line.Confidence
		}
	}

	if degraded {
		texts := make([]string, 0, len(group))
		for _, line := range group {
			texts = append(texts, line.Text)
		}
		row.Cells = []string{util.NormalizeSpaces(strings.Join(texts, " "))}
		row.Confidence *= degradedPenalty
		return row
	}

	cells := make([][]string, len(columns))
	for _, line := range group {
		for _, w := range line.Words {
			idx := columnFor(columns, w.Box.X)
			cells[idx] = append(cells[idx], w.Text)
		}
	}
	row.Cells = make([]string, len(columns))
	for i, parts := range cells {
		row.Cells[i] = util.NormalizeSpaces(strings.Join(parts, " "))
	}
	return row
}

func columnFor(columns []int, x int) int {
	idx := 0
	for i, start := range columns {
		if x >= start-1 {
			idx = i
		}
	}
	return idx
}

// resolveContinuations folds payee-wrap rows into the row above them. A row
// is only a continuation candidate when it carries text without any amount
// or date shape; the merge is confirmed by the next row carrying a plausible
// amount or date, otherwise the stray row is kept standalone for the parser
// to fail and side-channel.
func (s *Segmenter) resolveContinuations(rows []internal.CandidateRow) []internal.CandidateRow {
	out := make([]internal.CandidateRow, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		row := rows[i]
		if len(out) == 0 || !isContinuationShape(row) {
			out = append(out, row)
			continue
		}

		confirmed := i+1 < len(rows) && hasValueShape(rows[i+1])
		prev := &out[len(out)-1]
		if !confirmed || !hasValueShape(*prev) {
			out = append(out, row)
			continue
		}

		mergePayeeContinuation(prev, row)
	}
	return out
}

func isContinuationShape(row internal.CandidateRow) bool {
	if hasValueShape(row) {
		return false
	}
	text := util.NormalizeSpaces(strings.Join(row.Cells, " "))
	if text == "" || util.IsZebraNoise(text) {
		return false
	}
	return strings.IndexFunc(text, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	}) >= 0
}

func hasValueShape(row internal.CandidateRow) bool {
	for _, cell := range row.Cells {
		for _, token := range strings.Fields(cell) {
			cleaned := util.CleanOCRText(token)
			if util.LooksLikeAmount(cleaned) || util.LooksLikeDate(cleaned) {
				return true
			}
		}
	}
	return false
}

func mergePayeeContinuation(prev *internal.CandidateRow, row internal.CandidateRow) {
	extra := util.NormalizeSpaces(strings.Join(row.Cells, " "))

	// Append to the widest populated text cell: that is the payee column.
	target := 0
	best := -1
	for i, cell := range prev.Cells {
		if util.HasDigit(cell) {
			continue
		}
		if len(cell) > best {
			best = len(cell)
			target = i
		}
	}
	if prev.Cells[target] == "" {
		prev.Cells[target] = extra
	} else {
		prev.Cells[target] += " " + extra
	}

	prev.Lines = append(prev.Lines, row.Lines...)
	prev.Continuation = true
	if row.Confidence < prev.Confidence {
		prev.Confidence = row.Confidence
	}
}
