package normalize

import (
	"math"
	"testing"
)

func TestParseQuantity_BilledPlusFree(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"10+2", 12},
		{"2.75+.250", 3},
		{"1.86", 2},
		{"5", 5},
		{"", 0},
		{"0", 0},
		{" 3 + 1 ", 4},
		{"abc", 0},
	}
	for _, tc := range cases {
		if got := ParseQuantity(tc.in); got != tc.want {
			t.Errorf("ParseQuantity(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmount_StripsCurrencyNoise(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1,234.50", 1234.50},
		{"Rs. 1234/-", 1234},
		{"₹1234.5", 1234.5},
		{"  45.00 ", 45},
		{"-12.5", -12.5},
		{"", 0},
		{"N/A", 0},
		{"12..50", 12.50},
	}
	for _, tc := range cases {
		if got := ParseAmount(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseAmount(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Dolo-650  TAB. "); got != "dolo 650 tab" {
		t.Errorf("NormalizeName = %q", got)
	}
}

func TestSimilarityRatio(t *testing.T) {
	if got := SimilarityRatio("paracetamol 500", "paracetamol 500"); got != 1 {
		t.Errorf("identical strings ratio = %v, want 1", got)
	}
	if got := SimilarityRatio("paracetamol 500mg", "paracetamol 500mg."); got <= 0.94 {
		t.Errorf("near-identical ratio = %v, want > 0.94", got)
	}
	if got := SimilarityRatio("amoxicillin", "cetirizine"); got > 0.5 {
		t.Errorf("dissimilar ratio = %v, want <= 0.5", got)
	}
	if got := SimilarityRatio("", "anything"); got != 0 {
		t.Errorf("empty ratio = %v, want 0", got)
	}
}

func TestParsePack(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10X10 TAB", "10x10 TAB"},
		{"10 x 15", "10x15"},
		{"200ml", "200 ML"},
		{"", ""},
		{"bottle", "bottle"},
	}
	for _, tc := range cases {
		if got := ParsePack(tc.in); got != tc.want {
			t.Errorf("ParsePack(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
