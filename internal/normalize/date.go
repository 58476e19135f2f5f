package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateBranch names the rule that produced a normalized date.
type DateBranch string

const (
	BranchRelative DateBranch = "relative"
	BranchISO      DateBranch = "iso"
	BranchLayout   DateBranch = "layout"
	BranchManual   DateBranch = "manual"
	BranchRaw      DateBranch = "raw"
)

// DateResult is the outcome of ParseDate. Canonical is false when Value is
// the trimmed input kept because it looked like a date but could not be
// parsed.
type DateResult struct {
	Value     string
	Canonical bool
	Branch    DateBranch
}

var (
	englishRelRe = regexp.MustCompile(`(?i)\b(\d+|an?)\s+(second|minute|hour|day|week|month|year)s?\s+ago\b`)
	indoRelRe    = regexp.MustCompile(`(?i)\b(\d+)\s+(detik|menit|jam|hari|minggu|bulan|tahun)\s+(?:yang\s+)?lalu\b`)
	shortRelRe   = regexp.MustCompile(`(?i)\b(\d+)\s*([smhdwy])\s+ago\b`)
	yesterdayRe  = regexp.MustCompile(`(?i)\b(yesterday|kemarin)\b`)

	isoOffsetRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})T\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})$`)

	dayMonthYearRe = regexp.MustCompile(`\b(\d{1,2})\s+(\p{L}+)\.?,?\s+(\d{4})\b`)
	monthDayYearRe = regexp.MustCompile(`\b(\p{L}+)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)

	yearRe      = regexp.MustCompile(`\b\d{4}\b`)
	wordTokenRe = regexp.MustCompile(`\p{L}+`)
	relativeRe  = regexp.MustCompile(`(?i)\b(ago|lalu|yesterday|kemarin|today|hari ini|just now|baru saja)\b`)
)

// FormatCanonical renders t in the canonical "January 02, 2006" form.
func FormatCanonical(t time.Time) string {
	return t.Format(CanonicalLayout)
}

// IsCanonical reports whether s is already a canonical date.
func IsCanonical(s string) bool {
	t, err := time.Parse(CanonicalLayout, s)
	return err == nil && FormatCanonical(t) == s
}

// Date normalizes date text relative to now. It returns the canonical date,
// the trimmed input when it looks like a date but cannot be parsed, or false.
func Date(text string, now time.Time) (string, bool) {
	res, ok := ParseDate(text, now)
	return res.Value, ok
}

// ParseDate evaluates the date rules in priority order: relative phrases,
// ISO-8601 timestamps with an offset, the fixed layout list, month-name
// search in free text, and finally a raw fallback for date-shaped text.
// now is the only time reference; the wall clock is never read.
func ParseDate(text string, now time.Time) (DateResult, bool) {
	s := CleanText(text)
	if s == "" {
		return DateResult{}, false
	}

	if t, ok := parseRelative(s, now); ok {
		return DateResult{Value: FormatCanonical(t), Canonical: true, Branch: BranchRelative}, true
	}

	if m := isoOffsetRe.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]); err == nil {
			return DateResult{Value: FormatCanonical(t), Canonical: true, Branch: BranchISO}, true
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateResult{Value: FormatCanonical(t), Canonical: true, Branch: BranchLayout}, true
		}
	}

	if t, ok := searchMonthName(s); ok {
		return DateResult{Value: FormatCanonical(t), Canonical: true, Branch: BranchManual}, true
	}

	if looksLikeDate(s) {
		return DateResult{Value: s, Branch: BranchRaw}, true
	}
	return DateResult{}, false
}

// EpochDate converts a Unix timestamp in seconds (or milliseconds, for
// values past the year 33658) to a canonical UTC date.
func EpochDate(text string) (string, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || n <= 0 {
		return "", false
	}
	if n > 1e12 {
		return FormatCanonical(time.UnixMilli(n).UTC()), true
	}
	return FormatCanonical(time.Unix(n, 0).UTC()), true
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	if m := englishRelRe.FindStringSubmatch(s); m != nil {
		return subtract(now, m[1], englishUnits[strings.ToLower(m[2])])
	}
	if m := indoRelRe.FindStringSubmatch(s); m != nil {
		return subtract(now, m[1], indonesianUnits[strings.ToLower(m[2])])
	}
	if m := shortRelRe.FindStringSubmatch(s); m != nil {
		return subtract(now, m[1], shortUnits[strings.ToLower(m[2])])
	}
	if yesterdayRe.MatchString(s) {
		return now.Add(-UnitDay.Duration()), true
	}
	return time.Time{}, false
}

func subtract(now time.Time, amount string, u Unit) (time.Time, bool) {
	n := int64(1)
	switch strings.ToLower(amount) {
	case "a", "an":
	default:
		v, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		n = v
	}
	d := u.Duration()
	const day = 24 * time.Hour
	if d >= day {
		days := int64(d / day)
		if n > math.MaxInt32/days {
			return time.Time{}, false
		}
		return now.AddDate(0, 0, -int(n*days)), true
	}
	if n > math.MaxInt64/int64(d) {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(n) * d), true
}

func searchMonthName(s string) (time.Time, bool) {
	for _, m := range dayMonthYearRe.FindAllStringSubmatch(s, -1) {
		if t, ok := buildDate(m[3], m[2], m[1]); ok {
			return t, true
		}
	}
	for _, m := range monthDayYearRe.FindAllStringSubmatch(s, -1) {
		if t, ok := buildDate(m[3], m[1], m[2]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildDate(year, month, day string) (time.Time, bool) {
	mon, ok := monthNames[strings.ToLower(month)]
	if !ok {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, mon, d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func looksLikeDate(s string) bool {
	if yearRe.MatchString(s) || relativeRe.MatchString(s) {
		return true
	}
	for _, w := range wordTokenRe.FindAllString(s, -1) {
		if _, ok := monthNames[strings.ToLower(w)]; ok {
			return true
		}
	}
	return false
}
