package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LocalDateLayout is the zone-less local date-time format used in suggestions.
const LocalDateLayout = "2006-01-02T15:04"

var (
	// dateLayouts are tried in order; any time component is discarded.
	dateLayouts = []string{
		"2006-01-02",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/01/02",
	}

	// invariantDecimalRe accepts digits with optional thousands separators and
	// a single '.' decimal point, no sign and no surrounding whitespace.
	invariantDecimalRe = regexp.MustCompile(`^(?:\d[\d,]*(?:\.\d*)?|\.\d+)$`)
)

// buildLocalDate combines the calendar date in value with a fixed wall-clock
// time. Returns "" when value is blank or not a recognizable date.
func buildLocalDate(value string, hour, minute int) string {
	day, ok := parseCalendarDate(value)
	if !ok {
		return ""
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC).Format(LocalDateLayout)
}

func parseCalendarDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDecimal parses an invariant-culture amount such as "1,234.50".
func parseDecimal(s string) (decimal.Decimal, bool) {
	if !invariantDecimalRe.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// slugToTitle turns "the-rose-garden" into "The Rose Garden". Returns "" when
// nothing but separators remain.
func slugToTitle(slug string) string {
	s := strings.TrimSpace(strings.ReplaceAll(slug, "-", " "))
	if s == "" {
		return ""
	}
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(s)
}

// countryName resolves an ISO 3166-1 alpha-2 code to its English name.
// Unknown or non-country codes resolve to "".
func countryName(code string) string {
	if len(code) != 2 {
		return ""
	}
	region, err := language.ParseRegion(strings.ToUpper(code))
	if err != nil || !region.IsCountry() {
		return ""
	}
	return display.English.Regions().Name(region)
}
