package parse

import (
	"regexp"
	"strings"
	"time"

	"ledgerproof/internal"
	"ledgerproof/internal/util"
)

// Each extractor consumes matching tokens and marks them used; the payee is
// whatever remains. Keeping the strategies separate makes every extraction
// failure attributable to a single field.

type token struct {
	cellIdx int
	text    string
	cleaned string
	used    bool
}

var (
	reWarrant    = regexp.MustCompile(`^(020\d{7}|120\d{7}|DDP-\d{8})$`)
	reWarrantDDP = regexp.MustCompile(`^DDP-(\d{1,8})$`)
	reAccount    = regexp.MustCompile(`^\d{2}-\d{4}$`)
	rePageNum    = regexp.MustCompile(`^page \d+ of \d+$`)
)

func tokenize(row internal.CandidateRow) []token {
	var out []token
	for cellIdx, cell := range row.Cells {
		for _, raw := range strings.Fields(cell) {
			cleaned := util.CleanOCRText(raw)
			if cleaned == "" || util.IsZebraNoise(cleaned) {
				continue
			}
			out = append(out, token{cellIdx: cellIdx, text: raw, cleaned: cleaned})
		}
	}
	return out
}

func isPageNumber(lower string) bool {
	return rePageNum.MatchString(strings.TrimSpace(strings.ReplaceAll(lower, " | ", " ")))
}

type amountResult struct {
	cents     int64
	cellIdx   int
	found     bool
	ambiguous bool
	negative  bool
	rightmost bool
}

// extractAmount locates the record amount: the rightmost currency-shaped
// token, resolved by cell position. Registers legitimately carry an expensed
// amount and a check amount in separate columns, so multiple matches across
// cells pick the rightmost cell; multiple matches inside one cell (or in a
// degraded single-cell row) are genuinely ambiguous and rejected rather than
// guessed.
func extractAmount(tokens []token, degraded bool) amountResult {
	type match struct{ idx, cellIdx int }
	var matches []match
	for i, t := range tokens {
		if util.LooksLikeAmount(t.cleaned) {
			matches = append(matches, match{idx: i, cellIdx: t.cellIdx})
		}
	}
	if len(matches) == 0 {
		return amountResult{}
	}

	if degraded && len(matches) > 1 {
		return amountResult{found: true, ambiguous: true}
	}

	best := matches[len(matches)-1]
	sameCell := 0
	for _, m := range matches {
		if m.cellIdx == best.cellIdx {
			sameCell++
		}
	}
	if sameCell > 1 {
		return amountResult{found: true, ambiguous: true}
	}

	t := &tokens[best.idx]
	cents, err := util.ParseAmountCents(t.cleaned)
	if err != nil {
		return amountResult{}
	}
	t.used = true

	// Mark non-selected amount tokens used so they do not leak into the
	// payee; their values stay recoverable from the raw row text.
	for _, m := range matches {
		tokens[m.idx].used = true
	}

	lastCell := 0
	for _, tok := range tokens {
		if tok.cellIdx > lastCell {
			lastCell = tok.cellIdx
		}
	}

	return amountResult{
		cents:     cents,
		cellIdx:   best.cellIdx,
		found:     true,
		negative:  cents < 0,
		rightmost: best.cellIdx == lastCell,
	}
}

func extractDate(tokens []token) (time.Time, bool) {
	for i := range tokens {
		t := &tokens[i]
		if t.used {
			continue
		}
		if parsed, ok := util.ParseDateToken(t.cleaned); ok {
			t.used = true
			return parsed, true
		}
	}
	// Written-out dates span three tokens: "July" "15," "2025".
	for i := 0; i+2 < len(tokens); i++ {
		a, b, c := &tokens[i], &tokens[i+1], &tokens[i+2]
		if a.used || b.used || c.used || a.cellIdx != c.cellIdx {
			continue
		}
		if parsed, ok := util.ParseLongDate(a.cleaned + " " + b.cleaned + " " + c.cleaned); ok {
			a.used, b.used, c.used = true, true, true
			return parsed, true
		}
	}
	return time.Time{}, false
}

func extractWarrant(tokens []token) *string {
	for i := range tokens {
		t := &tokens[i]
		if t.used {
			continue
		}
		compact := strings.ReplaceAll(t.cleaned, " ", "")
		if reWarrant.MatchString(compact) {
			t.used = true
			return internal.StringPtr(compact)
		}
		// OCR drops leading zeros on direct-deposit numbers; repad.
		if m := reWarrantDDP.FindStringSubmatch(compact); m != nil {
			padded := "DDP-" + strings.Repeat("0", 8-len(m[1])) + m[1]
			t.used = true
			return internal.StringPtr(padded)
		}
	}
	return nil
}

func extractAccount(tokens []token) (string, bool) {
	for i := range tokens {
		t := &tokens[i]
		if t.used {
			continue
		}
		if reAccount.MatchString(t.cleaned) {
			t.used = true
			return t.cleaned, true
		}
	}
	return "", false
}

var cancelWords = map[string]bool{
	"cancel": true, "cancelled": true, "canceled": true, "void": true, "voided": true,
}

func extractCancelled(tokens []token) bool {
	for i := range tokens {
		t := &tokens[i]
		word := strings.ToLower(strings.Trim(t.cleaned, ".*"))
		if cancelWords[word] {
			t.used = true
			return true
		}
	}
	return false
}

// remainingPayee joins the unconsumed tokens in reading order, dropping
// stray artifacts that survived cleaning.
func remainingPayee(tokens []token) string {
	var parts []string
	for _, t := range tokens {
		if t.used {
			continue
		}
		text := strings.TrimPrefix(t.cleaned, "+")
		if text == "" || util.IsZebraNoise(text) {
			continue
		}
		parts = append(parts, text)
	}
	return util.NormalizeSpaces(strings.Join(parts, " "))
}
