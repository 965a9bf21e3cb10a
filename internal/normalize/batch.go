package normalize

import (
	"regexp"
	"strings"
)

var (
	// Common batch-column prefixes vendors print before the code itself.
	batchPrefixes = []string{"batch no", "batch", "b.no", "b no", "bno", "lot no", "lot", "bt"}

	// A batch-like token: 1-3 letters, then a digit, then 2+ alphanumerics.
	reBatchToken = regexp.MustCompile(`\b[A-Za-z]{1,3}\d[A-Za-z0-9]{2,}\b`)

	// Values that mean "no batch was printed".
	unknownBatch = map[string]struct{}{
		"": {}, "-": {}, "--": {}, "na": {}, "n/a": {}, "nil": {}, "none": {}, "unknown": {},
	}

	// Words that look batch-like inside scheme/offer rows but are not codes.
	offerStoplist = map[string]struct{}{
		"free": {}, "offer": {}, "scheme": {}, "deal": {}, "gift": {}, "bonus": {}, "qty": {},
	}

	reHSNDigits = regexp.MustCompile(`\d+`)
)

// CleanBatch strips vendor prefixes and separators from a batch cell and
// collapses unknown variants to the empty string.
func CleanBatch(s string) string {
	s = strings.TrimSpace(s)
	low := strings.ToLower(s)
	for _, p := range batchPrefixes {
		if strings.HasPrefix(low, p) {
			s = strings.TrimSpace(s[len(p):])
			low = strings.ToLower(s)
			break
		}
	}
	s = strings.Trim(s, ":.- ")
	if _, ok := unknownBatch[strings.ToLower(s)]; ok {
		return ""
	}
	return strings.ToUpper(s)
}

// BatchKey returns the dedup key for a batch: cleaned, or "?" for all
// unknown variants so they land in one bucket.
func BatchKey(s string) string {
	c := CleanBatch(s)
	if c == "" {
		return "?"
	}
	return c
}

// ExtractBatchToken scans free text for the first batch-like token that is
// not an offer keyword. Used to self-heal fragments whose description
// swallowed the batch column, and to scavenge batches from scheme rows.
func ExtractBatchToken(text string) string {
	for _, tok := range reBatchToken.FindAllString(text, -1) {
		if _, ok := offerStoplist[strings.ToLower(tok)]; ok {
			continue
		}
		return strings.ToUpper(tok)
	}
	return ""
}

// NormalizeHSN keeps only the digit run of an HSN cell. HSN codes are
// numeric; anything else is OCR bleed from a neighboring column.
func NormalizeHSN(s string) string {
	m := reHSNDigits.FindAllString(s, -1)
	if len(m) == 0 {
		return ""
	}
	return strings.Join(m, "")
}
