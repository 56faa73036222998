package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateAmbiguityPenalty is subtracted from a date field's confidence when the
// day/month order could not be resolved against the financial year.
const DateAmbiguityPenalty = 0.15

var (
	amountCandidate = regexp.MustCompile(`[0-9][0-9,]*(?:\.\d{1,2})?`)
	currencyNoise   = regexp.MustCompile(`[₹,\s]|Rs\.?|INR`)
	numericDate     = regexp.MustCompile(`^(\d{2})([-/])(\d{2})[-/](\d{4})$`)
	monthAbbrevDate = regexp.MustCompile(`^(\d{2})[-/ ]([A-Za-z]{3,9})[-/ ](\d{4})$`)
	yearRange       = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// ParseAmount converts a currency string like "₹ 19,395.00" into a decimal
// rounded to two places. candidates reports how many plausible amount
// substrings the raw token contained; the caller halves confidence when it
// is more than one. ok is false for malformed input - never an error.
func ParseAmount(raw string) (amount float64, candidates int, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, false
	}

	found := amountCandidate.FindAllString(raw, -1)
	if len(found) == 0 {
		return 0, 0, false
	}

	cleaned := currencyNoise.ReplaceAllString(found[0], "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, len(found), false
	}
	return math.Round(v*100) / 100, len(found), true
}

// FormatAmount renders an amount with two-decimal precision.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}

// ParseDate normalizes a challan date to ISO YYYY-MM-DD. Accepted inputs:
// 07-Oct-2025, 07/10/2025, 2025-10-07, 07-10-2025, 07 Oct 2025, 07 October 2025.
//
// For purely numeric dates where both components could be a month, the
// interpretation consistent with the declared financial year wins. If the
// financial year resolves neither reading, the first parse (day-first) is
// kept and penalized reports true so the caller can lower confidence.
func ParseDate(raw, financialYear string) (iso string, penalized, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, false
	}

	// Already normalized.
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("2006-01-02"), false, true
	}

	if m := monthAbbrevDate.FindStringSubmatch(raw); m != nil {
		// Month names from OCR arrive in any casing; time.Parse wants Title case.
		month := strings.ToUpper(m[2][:1]) + strings.ToLower(m[2][1:])
		for _, layout := range []string{"02-Jan-2006", "02-January-2006"} {
			if t, err := time.Parse(layout, m[1]+"-"+month+"-"+m[3]); err == nil {
				return t.Format("2006-01-02"), false, true
			}
		}
		return "", false, false
	}

	m := numericDate.FindStringSubmatch(raw)
	if m == nil {
		return "", false, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[3])
	year, _ := strconv.Atoi(m[4])

	dayFirst, dfErr := calendarDate(year, month, day)
	monthFirst, mfErr := calendarDate(year, day, month)

	switch {
	case dfErr != nil && mfErr != nil:
		return "", false, false
	case dfErr != nil:
		return monthFirst.Format("2006-01-02"), false, true
	case mfErr != nil || day > 12 || month > 12 || day == month:
		return dayFirst.Format("2006-01-02"), false, true
	}

	// Both readings are valid calendar dates: consult the financial year.
	fyStart, fyEnd, fyOK := financialYearBounds(financialYear)
	if fyOK {
		dfIn := !dayFirst.Before(fyStart) && !dayFirst.After(fyEnd)
		mfIn := !monthFirst.Before(fyStart) && !monthFirst.After(fyEnd)
		if dfIn != mfIn {
			if dfIn {
				return dayFirst.Format("2006-01-02"), false, true
			}
			return monthFirst.Format("2006-01-02"), false, true
		}
	}

	// Still ambiguous: keep the first (day-first) parse, lower confidence.
	return dayFirst.Format("2006-01-02"), true, true
}

func calendarDate(year, month, day int) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("out of range: %04d-%02d-%02d", year, month, day)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid calendar date: %04d-%02d-%02d", year, month, day)
	}
	return t, nil
}

// financialYearBounds resolves a year range like "2025-26" into the Indian
// financial year window 01-Apr-2025 .. 31-Mar-2026.
func financialYearBounds(fy string) (start, end time.Time, ok bool) {
	m := yearRange.FindStringSubmatch(strings.TrimSpace(fy))
	if m == nil {
		return time.Time{}, time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	start = time.Date(y, time.April, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(y+1, time.March, 31, 0, 0, 0, 0, time.UTC)
	return start, end, true
}

// NormalizeCode uppercases a code value (TAN, CIN, section code, BSR) and
// strips all whitespace, so "blrs 05586h" becomes "BLRS05586H".
func NormalizeCode(raw string) string {
	return strings.Join(strings.Fields(strings.ToUpper(raw)), "")
}

// NormalizeText trims free-form text and collapses runs of whitespace.
func NormalizeText(raw string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(raw, " "))
}
