package utils

import (
	"regexp"

	"github.com/taxops/tds-challan-extractor/dto"
)

// ValueShape declares what an extracted value must look like. Candidates
// that fail their shape are rejected, not lowered in confidence.
type ValueShape string

const (
	ShapeText     ValueShape = "text"
	ShapeCode     ValueShape = "code"
	ShapeCurrency ValueShape = "currency"
	ShapeDate     ValueShape = "date"
	ShapeYear     ValueShape = "year"
)

// FieldSpec declares one extractable challan field: its label anchors for
// spatial matching, regex patterns in priority order for text matching,
// the expected value shape, its weight in the row confidence, and whether
// its absence triggers escalation.
type FieldSpec struct {
	Name      string
	Labels    []string
	Patterns  []*regexp.Regexp
	Shape     ValueShape
	Weight    float64
	Mandatory bool
}

// TANPattern is the strict TAN format: four letters, five digits, one letter.
var TANPattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{5}[A-Z]$`)

// CINMinLength is the minimum plausible CIN length (BSR code + date + serial + bank code).
const CINMinLength = 15

const amountGroup = `[₹Rs.\s]*([0-9,]+(?:\.\d{2})?)`

// challanFields is the declared field table. Order matters: financial_year
// precedes the date fields so date disambiguation can consult it.
var challanFields = []FieldSpec{
	{
		Name:   dto.FieldTAN,
		Labels: []string{"TAN"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)TAN\s*:?\s*([A-Z]{4}\s?[0-9]{5}\s?[A-Z])`),
		},
		Shape: ShapeCode, Weight: 3.0, Mandatory: true,
	},
	{
		Name:   dto.FieldCIN,
		Labels: []string{"CIN"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)CIN\s*:?\s*([A-Z0-9]{10,})`),
		},
		Shape: ShapeCode, Weight: 3.0, Mandatory: true,
	},
	{
		Name:   dto.FieldTotalAmount,
		Labels: []string{"Amount (in Rs.)", "Amount(in Rs.)", "Total Amount"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Amount\s*\(in\s*Rs\.?\)\s*:?\s*` + amountGroup),
			regexp.MustCompile(`(?i)Total\s*Amount\s*:?\s*` + amountGroup),
		},
		Shape: ShapeCurrency, Weight: 3.0, Mandatory: true,
	},
	{
		Name:   dto.FieldFinancialYear,
		Labels: []string{"Financial Year"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Financial\s*Year\s*:?\s*(\d{4}-\d{2})`),
		},
		Shape: ShapeYear, Weight: 1.0,
	},
	{
		Name:   dto.FieldDateOfDeposit,
		Labels: []string{"Date of Deposit"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Date\s*of\s*Deposit\s*:?\s*(\d{2}[-/][A-Za-z]{3}[-/]\d{4}|\d{2}[-/]\d{2}[-/]\d{4}|\d{4}-\d{2}-\d{2})`),
		},
		Shape: ShapeDate, Weight: 2.0, Mandatory: true,
	},
	{
		Name:   dto.FieldChallanNo,
		Labels: []string{"Challan No", "Challan No."},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Challan\s*No\.?\s*:?\s*(\d+)`),
		},
		Shape: ShapeCode, Weight: 2.0, Mandatory: true,
	},
	{
		Name:   dto.FieldDeductorName,
		Labels: []string{"Name"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?mi)^\s*Name\s*:?\s*([A-Z][A-Za-z0-9 &.,()\-]+?)\s*$`),
		},
		Shape: ShapeText, Weight: 1.0,
	},
	{
		Name:   dto.FieldAssessmentYear,
		Labels: []string{"Assessment Year"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Assessment\s*Year\s*:?\s*(\d{4}-\d{2})`),
		},
		Shape: ShapeYear, Weight: 1.0,
	},
	{
		Name:   dto.FieldMajorHead,
		Labels: []string{"Major Head"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?mi)Major\s*Head\s*:?\s*([^\n]+?)\s*$`),
		},
		Shape: ShapeText, Weight: 1.0,
	},
	{
		Name:   dto.FieldMinorHead,
		Labels: []string{"Minor Head"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?mi)Minor\s*Head\s*:?\s*([^\n]+?)\s*$`),
		},
		Shape: ShapeText, Weight: 1.0,
	},
	{
		Name:   dto.FieldNatureOfPayment,
		Labels: []string{"Nature of Payment"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Nature\s*of\s*Payment\s*:?\s*(\d{2,3}[A-Z]?)`),
		},
		Shape: ShapeCode, Weight: 1.0,
	},
	{
		Name:   dto.FieldAmountInWords,
		Labels: []string{"Amount (in words)", "Amount(in words)"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?mi)Amount\s*\(in\s*words\)\s*:?\s*([^\n]+?)\s*$`),
		},
		Shape: ShapeText, Weight: 1.0,
	},
	{
		Name:   dto.FieldBSRCode,
		Labels: []string{"BSR code", "BSR Code"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)BSR\s*Code\s*:?\s*(\d+)`),
		},
		Shape: ShapeCode, Weight: 1.0,
	},
	{
		Name:   dto.FieldTenderDate,
		Labels: []string{"Tender Date"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Tender\s*Date\s*:?\s*(\d{2}[-/][A-Za-z]{3}[-/]\d{4}|\d{2}[-/]\d{2}[-/]\d{4}|\d{4}-\d{2}-\d{2})`),
		},
		Shape: ShapeDate, Weight: 1.0,
	},
	{
		Name:   dto.FieldBankName,
		Labels: []string{"Bank Name"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Bank\s*Name\s*:?\s*([A-Za-z][A-Za-z ]*Bank)`),
			regexp.MustCompile(`(?mi)Bank\s*Name\s*:?\s*([^\n]+?)\s*$`),
		},
		Shape: ShapeText, Weight: 1.0,
	},
	{
		Name:   dto.FieldBankRefNo,
		Labels: []string{"Bank Reference Number", "Bank Ref No"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)Bank\s*Reference\s*(?:Number|No\.?)\s*:?\s*([A-Z0-9]+)`),
		},
		Shape: ShapeCode, Weight: 1.0,
	},
	{
		Name:   dto.FieldModeOfPayment,
		Labels: []string{"Mode of Payment"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?mi)Mode\s*of\s*Payment\s*:?\s*([A-Za-z ]+?)\s*$`),
		},
		Shape: ShapeText, Weight: 1.0,
	},
	{
		Name:   dto.FieldTaxA,
		Labels: []string{"Tax"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bA\s+Tax\s+` + amountGroup),
		},
		Shape: ShapeCurrency, Weight: 1.0,
	},
	{
		Name:   dto.FieldTaxB,
		Labels: []string{"Surcharge"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bB\s+Surcharge\s+` + amountGroup),
		},
		Shape: ShapeCurrency, Weight: 1.0,
	},
	{
		Name:   dto.FieldTaxC,
		Labels: []string{"Cess"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bC\s+Cess\s+` + amountGroup),
		},
		Shape: ShapeCurrency, Weight: 1.0,
	},
	{
		Name:   dto.FieldTaxD,
		Labels: []string{"Interest"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bD\s+Interest\s+` + amountGroup),
		},
		Shape: ShapeCurrency, Weight: 1.0,
	},
	{
		Name:   dto.FieldTaxE,
		Labels: []string{"Penalty"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bE\s+Penalty\s+` + amountGroup),
		},
		Shape: ShapeCurrency, Weight: 1.0,
	},
	{
		Name:   dto.FieldTaxF,
		Labels: []string{"Fee under section 234E", "Fee"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bF\s+Fee\s+under\s+section\s+234E\s+` + amountGroup),
			regexp.MustCompile(`(?i)\bF\s+Fee\s+` + amountGroup),
		},
		Shape: ShapeCurrency, Weight: 1.0,
	},
}

// ChallanFields returns the declared field specs in extraction order.
func ChallanFields() []FieldSpec {
	return challanFields
}

// FieldByName looks up a spec by its canonical field name.
func FieldByName(name string) (FieldSpec, bool) {
	for _, fs := range challanFields {
		if fs.Name == name {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// MandatoryFields returns the field names whose absence triggers escalation
// to the next extraction strategy.
func MandatoryFields() []string {
	var out []string
	for _, fs := range challanFields {
		if fs.Mandatory {
			out = append(out, fs.Name)
		}
	}
	return out
}

// TotalWeight is the denominator of the row confidence: every declared
// field contributes its weight whether or not it was extracted.
func TotalWeight() float64 {
	var w float64
	for _, fs := range challanFields {
		w += fs.Weight
	}
	return w
}
