package util

import (
	"regexp"
	"strings"
)

var (
	reZebraNoise  = regexp.MustCompile(`^[=:+~}{|3\d]*$`)
	reLeadNoise   = regexp.MustCompile(`^[=:+~}{|]+`)
	reDigitNoise  = regexp.MustCompile(`^\d[=:+~}{|]+`)
	reBraces      = regexp.MustCompile(`[{}~]`)
	rePunctuation = regexp.MustCompile(`[.,;:"'()&]`)
	reSpaces      = regexp.MustCompile(`\s+`)
)

// Corporate suffixes stripped for matching; order matters so that longer
// forms are removed before their substrings.
var payeeSuffixes = []string{
	", INC.", " INC.", ", INC", " INC",
	", LLC.", " LLC.", ", LLC", " LLC",
	", L.L.C.", " L.L.C.",
	", PBC", " PBC",
	", L.P.", " L.P.", ", LP", " LP",
	", LTD.", " LTD.", ", LTD", " LTD",
	" CORPORATION", " CORP.", " CORP",
	" COMPANY", " CO.",
	" HOLDINGS",
}

// NormalizePayee folds a payee name for matching: uppercase, corporate
// suffixes and punctuation removed, whitespace collapsed. The original
// string is retained elsewhere for display.
func NormalizePayee(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range payeeSuffixes {
			if strings.HasSuffix(s, suffix) {
				s = strings.TrimSuffix(s, suffix)
				stripped = true
			}
		}
	}
	s = rePunctuation.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanOCRText strips zebra-stripe scan artifacts that bleed into tokens:
// "=07/15/2025" -> "07/15/2025", "0200000005}" -> "0200000005".
func CleanOCRText(input string) string {
	s := reLeadNoise.ReplaceAllString(input, "")
	s = reDigitNoise.ReplaceAllString(s, "")
	s = reBraces.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// IsZebraNoise reports whether a token is purely stripe artifact.
func IsZebraNoise(token string) bool {
	return reZebraNoise.MatchString(strings.TrimSpace(token))
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func Tokenize(input string) []string {
	parts := strings.Split(NormalizePayee(input), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// DiceCoefficient scores bigram overlap between two strings in [0,1].
func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}
