package common

import (
	"fmt"
	"strings"
	"time"
)

// Report periods are quarter-end dates. The canonical form is "2024-09-30";
// the compact form "20240930" is accepted on every inbound surface and
// normalized before use.

const periodLayout = "2006-01-02"

var quarterEndDay = map[time.Month]int{
	time.March:     31,
	time.June:      30,
	time.September: 30,
	time.December:  31,
}

// NormalizePeriod converts a period in either accepted form to the canonical
// dashed form and validates it is a real date.
func NormalizePeriod(period string) (string, error) {
	s := strings.TrimSpace(period)
	if len(s) == 8 && !strings.Contains(s, "-") {
		s = s[:4] + "-" + s[4:6] + "-" + s[6:]
	}
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return "", E(KindInvalidInput, "period.normalize", fmt.Sprintf("invalid report period %q", period))
	}
	return t.Format(periodLayout), nil
}

var quarterEndDate = map[string]string{
	"Q1": "03-31",
	"Q2": "06-30",
	"Q3": "09-30",
	"Q4": "12-31",
}

// ResolvePeriod accepts the canonical form, the compact form, or the quarter
// shorthand "2024Q3" and returns the canonical quarter-end date.
func ResolvePeriod(period string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(period))
	if len(s) == 6 && s[4] == 'Q' {
		day, ok := quarterEndDate[s[4:]]
		if !ok {
			return "", E(KindInvalidInput, "period.resolve", fmt.Sprintf("invalid report period %q", period))
		}
		return NormalizePeriod(s[:4] + "-" + day)
	}
	return NormalizePeriod(s)
}

// CompactPeriod returns the period without separators, e.g. "20240930".
// The input must already be canonical.
func CompactPeriod(period string) string {
	return strings.ReplaceAll(period, "-", "")
}

// PeriodMonth returns the month number of a canonical period, or 0 when the
// period does not parse.
func PeriodMonth(period string) int {
	t, err := time.Parse(periodLayout, period)
	if err != nil {
		return 0
	}
	return int(t.Month())
}

// IsQuarterly reports whether the period ends a non-final quarter. Unparseable
// periods are treated as annual so downstream math degrades to factor 1.0.
func IsQuarterly(period string) bool {
	m := PeriodMonth(period)
	return m != 0 && m != 12
}

// AnnualizationFactor maps a period to the multiplier that scales a
// year-to-date flow up to a full-year equivalent.
func AnnualizationFactor(period string) float64 {
	switch PeriodMonth(period) {
	case 3:
		return 4.0
	case 6:
		return 2.0
	case 9:
		return 4.0 / 3.0
	case 12:
		return 1.0
	default:
		return 1.0
	}
}

// QuarterLabel renders a canonical period as "2024Q3". Non quarter-end
// periods fall back to the raw string.
func QuarterLabel(period string) string {
	t, err := time.Parse(periodLayout, period)
	if err != nil {
		return period
	}
	switch t.Month() {
	case time.March:
		return fmt.Sprintf("%dQ1", t.Year())
	case time.June:
		return fmt.Sprintf("%dQ2", t.Year())
	case time.September:
		return fmt.Sprintf("%dQ3", t.Year())
	case time.December:
		return fmt.Sprintf("%dQ4", t.Year())
	default:
		return period
	}
}

// PreviousYearPeriod returns the same quarter one year earlier, used when the
// data service cannot supply the prior-year figures directly.
func PreviousYearPeriod(period string) string {
	t, err := time.Parse(periodLayout, period)
	if err != nil {
		return ""
	}
	day, ok := quarterEndDay[t.Month()]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", t.Year()-1, int(t.Month()), day)
}

// RecentQuarters lists the latest n quarter-end periods not after ref, newest
// first.
func RecentQuarters(n int, ref time.Time) []string {
	if n <= 0 {
		return nil
	}
	year, month := ref.Year(), ref.Month()
	// Step back to the most recent completed quarter end.
	var q int
	switch {
	case month >= 10:
		q = 3
	case month >= 7:
		q = 2
	case month >= 4:
		q = 1
	default:
		q = 4
		year--
	}
	quarters := make([]string, 0, n)
	for len(quarters) < n {
		var m time.Month
		switch q {
		case 1:
			m = time.March
		case 2:
			m = time.June
		case 3:
			m = time.September
		default:
			m = time.December
		}
		quarters = append(quarters, fmt.Sprintf("%04d-%02d-%02d", year, int(m), quarterEndDay[m]))
		q--
		if q == 0 {
			q = 4
			year--
		}
	}
	return quarters
}
