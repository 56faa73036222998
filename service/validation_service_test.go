package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taxops/tds-challan-extractor/dto"
	"github.com/taxops/tds-challan-extractor/utils"
)

func validRecord() *dto.ChallanRecord {
	fields := make(map[string]dto.FieldValue)
	for _, spec := range utils.ChallanFields() {
		fields[spec.Name] = dto.FieldValue{Name: spec.Name, Text: "x", Confidence: 0.95, Source: dto.StrategyText}
	}
	r := &dto.ChallanRecord{
		TAN:           "BLRS05586H",
		CIN:           "25100700517216HDFC",
		ChallanNo:     "51721",
		DateOfDeposit: "2025-10-07",
		TotalAmount:   19395,
		TaxBreakup:    dto.TaxBreakup{TaxA: 19395},
		SourceFile:    "a.pdf",
		RowConfidence: 0.92,
		Fields:        fields,
	}
	r.ComputeHash()
	return r
}

func TestValidateAcceptsConsistentRecord(t *testing.T) {
	v := NewValidationService(testConfig())
	r := validRecord()

	v.Validate(r)
	assert.Equal(t, dto.StatusOK, r.ValidationFlag)
	assert.Empty(t, r.Notes)
}

func TestValidateFlagsSumMismatch(t *testing.T) {
	v := NewValidationService(testConfig())
	r := validRecord()
	r.TaxBreakup.TaxA = 18000

	v.Validate(r)
	assert.Equal(t, dto.StatusFlag, r.ValidationFlag)
	assert.Contains(t, r.Notes, "differs from total")
}

func TestValidateAllowsSumWithinTolerance(t *testing.T) {
	v := NewValidationService(testConfig())
	r := validRecord()
	r.TaxBreakup.TaxA = 19394.50

	v.Validate(r)
	assert.Equal(t, dto.StatusOK, r.ValidationFlag)
}

func TestValidateFlagsBadTAN(t *testing.T) {
	v := NewValidationService(testConfig())
	r := validRecord()
	r.TAN = "BLRS5586H"

	v.Validate(r)
	assert.Equal(t, dto.StatusFlag, r.ValidationFlag)
	assert.Contains(t, r.Notes, "TAN")
}

func TestValidateFlagsMissingMandatoryField(t *testing.T) {
	v := NewValidationService(testConfig())
	r := validRecord()
	delete(r.Fields, dto.FieldCIN)

	v.Validate(r)
	assert.Equal(t, dto.StatusFlag, r.ValidationFlag)
	assert.Contains(t, r.Notes, "missing mandatory field cin")
}

func TestValidateFlagsLowConfidence(t *testing.T) {
	v := NewValidationService(testConfig())
	r := validRecord()
	r.RowConfidence = 0.60

	v.Validate(r)
	assert.Equal(t, dto.StatusFlag, r.ValidationFlag)
	assert.Contains(t, r.Notes, "row confidence")
}

func TestValidateWarnsWithoutFlagging(t *testing.T) {
	v := NewValidationService(testConfig())

	r := validRecord()
	r.CIN = "SHORT123"
	v.Validate(r)
	assert.Equal(t, dto.StatusOK, r.ValidationFlag)
	assert.Contains(t, r.Notes, "shorter than the expected")

	r = validRecord()
	r.TotalAmount = 0
	r.TaxBreakup = dto.TaxBreakup{}
	v.Validate(r)
	assert.Equal(t, dto.StatusOK, r.ValidationFlag)
	assert.Contains(t, r.Notes, "total amount is zero")
}

func TestValidateWarnsOnSuspiciousDates(t *testing.T) {
	v := NewValidationService(testConfig())
	v.now = func() time.Time { return time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC) }

	r := validRecord()
	r.DateOfDeposit = "2026-06-01"
	v.Validate(r)
	assert.Equal(t, dto.StatusOK, r.ValidationFlag)
	assert.Contains(t, r.Notes, "in the future")

	r = validRecord()
	r.DateOfDeposit = "2011-06-01"
	v.Validate(r)
	assert.Equal(t, dto.StatusOK, r.ValidationFlag)
	assert.Contains(t, r.Notes, "more than ten years old")
}

func TestValidateNotesMissingOptionalFields(t *testing.T) {
	v := NewValidationService(testConfig())
	r := validRecord()
	delete(r.Fields, dto.FieldBankName)
	delete(r.Fields, dto.FieldBSRCode)

	v.Validate(r)
	assert.Equal(t, dto.StatusOK, r.ValidationFlag)
	assert.Contains(t, r.Notes, "optional fields not found: bank_name, bsr_code")
}

func TestDeduplicateMarksLaterOccurrences(t *testing.T) {
	v := NewValidationService(testConfig())

	first := validRecord()
	second := validRecord()
	second.SourceFile = "b.pdf"
	third := validRecord()
	third.ChallanNo = "99999"
	third.ComputeHash()
	third.SourceFile = "c.pdf"

	v.Validate(first)
	v.Validate(second)
	v.Validate(third)
	v.Deduplicate([]*dto.ChallanRecord{first, second, third})

	assert.Empty(t, first.Notes)
	assert.Contains(t, second.Notes, "duplicate of a.pdf")
	assert.Equal(t, dto.StatusOK, second.ValidationFlag)
	assert.Empty(t, third.Notes)
}
