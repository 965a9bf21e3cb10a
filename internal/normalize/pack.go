package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	rePackXbyY = regexp.MustCompile(`(?i)(\d+)\s*[x*]\s*(\d+(?:\.\d+)?)\s*([a-z]*)`)
	rePackUnit = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(tab|tabs|cap|caps|ml|mg|gm|g|kg|strip|strips|pcs|s)\b`)
)

// ParsePack structures a free-form pack cell into a canonical "NxM UNIT"
// form where possible, else returns the trimmed input. Examples:
// "10X10 TAB" -> "10x10 TAB", "200ml" -> "200 ML".
func ParsePack(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := rePackXbyY.FindStringSubmatch(s); m != nil {
		unit := strings.ToUpper(strings.TrimSpace(m[3]))
		if unit == "" {
			return fmt.Sprintf("%sx%s", m[1], m[2])
		}
		return fmt.Sprintf("%sx%s %s", m[1], m[2], unit)
	}
	if m := rePackUnit.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s %s", m[1], strings.ToUpper(m[2]))
	}
	return s
}
