package normalize

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// localeSuffixRe matches Indonesian magnitude words written after a number.
	localeSuffixRe = regexp.MustCompile(`(?i)(\d)\s*(rb|ribu|jt|juta|mlyr|miliar)\b`)
	// suffixWordRe matches a suffix letter glued to a label, as in "32Klikes".
	suffixWordRe  = regexp.MustCompile(`(\d)([KMBkmb])(\p{L}+)`)
	wordRe        = regexp.MustCompile(`\p{L}{2,}`)
	numberCharsRe = regexp.MustCompile(`[^0-9KMB.,]`)
)

var localeSuffixes = map[string]string{
	"rb": "K", "ribu": "K",
	"jt": "M", "juta": "M",
	"mlyr": "B", "miliar": "B",
}

var multipliers = map[rune]int64{
	'K': 1_000,
	'M': 1_000_000,
	'B': 1_000_000_000,
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// Number converts count text such as "32K", "1.5M views" or "12,345" to an
// integer. A number carries at most one suffix letter, the literal is read
// with thousands separators removed and the result is
// floor(value * multiplier). It returns false when no number can be read.
func Number(text string) (int64, bool) {
	s := CleanText(text)
	if s == "" {
		return 0, false
	}

	// Indonesian magnitudes use a decimal comma: "1,2 rb" is 1200.
	decimalComma := false
	s = localeSuffixRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := localeSuffixRe.FindStringSubmatch(m)
		word := strings.ToLower(sub[2])
		decimalComma = true
		return sub[1] + localeSuffixes[word]
	})

	// Label words ("views", "komentar") must not contribute suffix letters.
	s = suffixWordRe.ReplaceAllString(s, "$1$2 $3")
	s = wordRe.ReplaceAllString(s, " ")
	s = numberCharsRe.ReplaceAllString(strings.ToUpper(s), "")
	if !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}

	mult := int64(1)
	var suffixes int
	for r, m := range multipliers {
		if n := strings.Count(s, string(r)); n > 0 {
			suffixes += n
			mult = m
			s = strings.ReplaceAll(s, string(r), "")
		}
	}
	if suffixes > 1 {
		return 0, false
	}

	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	if strings.Count(s, ".") > 1 {
		// "1.234.567" uses dots as thousands separators.
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.TrimRight(s, ".")
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	v := d.Mul(decimal.NewFromInt(mult)).Floor()
	if v.IsNegative() || v.GreaterThan(maxInt64) {
		return 0, false
	}
	return v.IntPart(), true
}

// NumberPtr is Number returning nil for unreadable text.
func NumberPtr(text string) *int64 {
	v, ok := Number(text)
	if !ok {
		return nil
	}
	return &v
}
