// Package normalize holds the pure parsing rules applied to raw extracted
// invoice text: numeric cleanup, billed+free quantity math, pack sizes,
// batch tokens and HSN codes. Everything here is deterministic and
// side-effect free so each rule is testable on its own.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Currency markers and the "/-" suffix vendors print after totals.
	reCurrencyMark = regexp.MustCompile(`(?i)(rs\.?|inr|mrp)|/-`)
	// Keeps digits, sign, separators; drops remaining OCR noise.
	reNumericNoise = regexp.MustCompile(`[^0-9+.\-]`)
	reMultiDot     = regexp.MustCompile(`\.{2,}`)
	reSpaces       = regexp.MustCompile(`\s+`)
	rePunct        = regexp.MustCompile(`[^a-z0-9 ]`)
)

// ParseAmount parses a money-ish cell: strips currency symbols, thousands
// separators and stray OCR characters, then parses the remainder. Returns 0
// when nothing numeric survives.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// "1,234.50", "Rs. 1234/-", "₹1234.5" all reduce to the same digits.
	s = strings.ReplaceAll(s, ",", "")
	s = reCurrencyMark.ReplaceAllString(s, "")
	s = reNumericNoise.ReplaceAllString(s, "")
	s = reMultiDot.ReplaceAllString(s, ".")
	s = strings.TrimLeft(s, "+")
	s = strings.TrimRight(s, "+.-")
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseQuantity parses a quantity cell that may carry a billed+free split
// ("10+2") or a fractional strip count ("2.75+.250"). The parts are summed
// and rounded up to a whole unit: a fraction of a strip still occupies one.
func ParseQuantity(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var total float64
	for _, part := range strings.Split(s, "+") {
		total += ParseAmount(part)
	}
	if total <= 0 {
		return 0
	}
	return int(math.Ceil(total - 1e-9))
}

// NormalizeName lowercases, strips punctuation and collapses whitespace for
// use as a dedup key. It is lossy on purpose.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = rePunct.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SimilarityRatio returns a 0..1 similarity between two strings based on
// edit distance over the longer length. 1 means identical.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	longer := la
	if lb > longer {
		longer = lb
	}
	return 1 - float64(dist)/float64(longer)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
