package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmountCurrencySymbols(t *testing.T) {
	amount, candidates, ok := ParseAmount("₹ 19,395.00")
	assert.True(t, ok)
	assert.Equal(t, 19395.00, amount)
	assert.Equal(t, 1, candidates)

	amount, _, ok = ParseAmount("Rs. 22,500.00")
	assert.True(t, ok)
	assert.Equal(t, 22500.00, amount)

	amount, _, ok = ParseAmount("40000")
	assert.True(t, ok)
	assert.Equal(t, 40000.00, amount)
}

func TestParseAmountMultipleCandidates(t *testing.T) {
	amount, candidates, ok := ParseAmount("19,395.00 40,000.00")
	assert.True(t, ok)
	assert.Equal(t, 19395.00, amount)
	assert.Equal(t, 2, candidates)
}

func TestParseAmountMalformed(t *testing.T) {
	_, _, ok := ParseAmount("not an amount")
	assert.False(t, ok)

	_, _, ok = ParseAmount("")
	assert.False(t, ok)
}

func TestParseDateFormats(t *testing.T) {
	iso, penalized, ok := ParseDate("07-Oct-2025", "")
	assert.True(t, ok)
	assert.False(t, penalized)
	assert.Equal(t, "2025-10-07", iso)

	iso, penalized, ok = ParseDate("07 October 2025", "")
	assert.True(t, ok)
	assert.False(t, penalized)
	assert.Equal(t, "2025-10-07", iso)

	iso, _, ok = ParseDate("25/12/2025", "")
	assert.True(t, ok)
	assert.Equal(t, "2025-12-25", iso)
}

func TestParseDateIdempotent(t *testing.T) {
	iso, penalized, ok := ParseDate("2025-10-07", "")
	assert.True(t, ok)
	assert.False(t, penalized)
	assert.Equal(t, "2025-10-07", iso)
}

func TestParseDateFinancialYearResolvesAmbiguity(t *testing.T) {
	// 05/01/2026: day-first lands inside FY 2025-26, month-first does not.
	iso, penalized, ok := ParseDate("05/01/2026", "2025-26")
	assert.True(t, ok)
	assert.False(t, penalized)
	assert.Equal(t, "2026-01-05", iso)
}

func TestParseDateAmbiguousKeepsDayFirst(t *testing.T) {
	iso, penalized, ok := ParseDate("07/10/2025", "")
	assert.True(t, ok)
	assert.True(t, penalized)
	assert.Equal(t, "2025-10-07", iso)
}

func TestParseDateInvalid(t *testing.T) {
	_, _, ok := ParseDate("31-02-2025", "")
	assert.False(t, ok)

	_, _, ok = ParseDate("once upon a time", "")
	assert.False(t, ok)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "BLRS05586H", NormalizeCode("blrs 05586h"))
	assert.Equal(t, "25100700517216HDFC", NormalizeCode(" 2510070 0517216 hdfc "))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "ACME INDIA PVT LTD", NormalizeText("  ACME   INDIA\tPVT  LTD  "))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "19395.00", FormatAmount(19395))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "1234.50", FormatAmount(1234.5))
}
