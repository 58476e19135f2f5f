package normalize

import (
	"fmt"
	"time"
)

// Unit is a relative-time unit.
type Unit int

const (
	UnitSecond Unit = iota
	UnitMinute
	UnitHour
	UnitDay
	UnitWeek
	UnitMonth
	UnitYear
)

// unitDurations approximates a month as 30 days and a year as 365 days.
var unitDurations = map[Unit]time.Duration{
	UnitSecond: time.Second,
	UnitMinute: time.Minute,
	UnitHour:   time.Hour,
	UnitDay:    24 * time.Hour,
	UnitWeek:   7 * 24 * time.Hour,
	UnitMonth:  30 * 24 * time.Hour,
	UnitYear:   365 * 24 * time.Hour,
}

// Duration returns the fixed length of one unit.
func (u Unit) Duration() time.Duration {
	return unitDurations[u]
}

// englishUnits maps singular English unit words.
var englishUnits = map[string]Unit{
	"second": UnitSecond,
	"minute": UnitMinute,
	"hour":   UnitHour,
	"day":    UnitDay,
	"week":   UnitWeek,
	"month":  UnitMonth,
	"year":   UnitYear,
}

// indonesianUnits maps Indonesian unit words.
var indonesianUnits = map[string]Unit{
	"detik":  UnitSecond,
	"menit":  UnitMinute,
	"jam":    UnitHour,
	"hari":   UnitDay,
	"minggu": UnitWeek,
	"bulan":  UnitMonth,
	"tahun":  UnitYear,
}

// shortUnits maps compact suffixes such as "3h ago" or "2d ago".
var shortUnits = map[string]Unit{
	"s": UnitSecond,
	"m": UnitMinute,
	"h": UnitHour,
	"d": UnitDay,
	"w": UnitWeek,
	"y": UnitYear,
}

// monthNames maps lowercase English and Indonesian month names and
// abbreviations to months.
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January, "januari": time.January,
	"february": time.February, "feb": time.February, "februari": time.February, "peb": time.February,
	"march": time.March, "mar": time.March, "maret": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May, "mei": time.May,
	"june": time.June, "jun": time.June, "juni": time.June,
	"july": time.July, "jul": time.July, "juli": time.July,
	"august": time.August, "aug": time.August, "agustus": time.August, "agu": time.August, "agt": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October, "oktober": time.October, "okt": time.October,
	"november": time.November, "nov": time.November, "nop": time.November,
	"december": time.December, "dec": time.December, "desember": time.December, "des": time.December,
}

// dateLayouts is the ordered list of absolute formats. Month-first numeric
// layouts precede day-first ones, so "03/04/2024" reads as March 4.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"1/2/2006",
	"2/1/2006",
	"1-2-2006",
	"2-1-2006",
}

// CanonicalLayout is the layout of every normalized date.
const CanonicalLayout = "January 02, 2006"

func init() {
	if err := validateTables(); err != nil {
		panic(err)
	}
}

func validateTables() error {
	for _, table := range []map[string]Unit{englishUnits, indonesianUnits, shortUnits} {
		for word, u := range table {
			if u.Duration() <= 0 {
				return fmt.Errorf("normalize: unit %q has no duration", word)
			}
		}
	}
	seen := make(map[time.Month]bool, 12)
	for _, m := range monthNames {
		seen[m] = true
	}
	if len(seen) != 12 {
		return fmt.Errorf("normalize: month table covers %d months", len(seen))
	}
	return nil
}
