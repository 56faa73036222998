package dto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Extraction strategy identifiers, in escalation order.
const (
	StrategyText    = "text"
	StrategyLayout  = "layout"
	StrategyOptical = "optical"
)

// ValidationStatus is the accept/flag decision for a record.
type ValidationStatus string

const (
	StatusPending ValidationStatus = "PENDING"
	StatusOK      ValidationStatus = "OK"
	StatusFlag    ValidationStatus = "FLAG"
)

// Canonical field names shared by the recognizer, pipeline, validator and exporter.
const (
	FieldTAN             = "tan"
	FieldDeductorName    = "deductor_name"
	FieldAssessmentYear  = "assessment_year"
	FieldFinancialYear   = "financial_year"
	FieldMajorHead       = "major_head"
	FieldMinorHead       = "minor_head"
	FieldNatureOfPayment = "nature_of_payment"
	FieldTotalAmount     = "total_amount"
	FieldAmountInWords   = "amount_in_words"
	FieldCIN             = "cin"
	FieldBSRCode         = "bsr_code"
	FieldChallanNo       = "challan_no"
	FieldDateOfDeposit   = "date_of_deposit"
	FieldTenderDate      = "tender_date"
	FieldBankName        = "bank_name"
	FieldBankRefNo       = "bank_ref_no"
	FieldModeOfPayment   = "mode_of_payment"
	FieldTaxA            = "tax_a"
	FieldTaxB            = "tax_b"
	FieldTaxC            = "tax_c"
	FieldTaxD            = "tax_d"
	FieldTaxE            = "tax_e"
	FieldTaxF            = "tax_f"
)

// TaxFields lists the six tax breakup components (A-F).
var TaxFields = []string{FieldTaxA, FieldTaxB, FieldTaxC, FieldTaxD, FieldTaxE, FieldTaxF}

// RawDocument is an opaque document payload owned by the caller.
type RawDocument struct {
	Filename string
	Data     []byte
}

// PositionedToken is a recognized text fragment with its bounding box.
// Produced by the layout and optical extractors, never exposed downstream.
type PositionedToken struct {
	Text       string
	X0, Y0     float64
	X1, Y1     float64
	Page       int
	Confidence float64
}

func (t PositionedToken) CenterX() float64 { return (t.X0 + t.X1) / 2 }
func (t PositionedToken) CenterY() float64 { return (t.Y0 + t.Y1) / 2 }

// FieldValue is one extracted field candidate. Immutable once produced;
// the pipeline replaces a FieldValue wholesale when a better one is found.
type FieldValue struct {
	Name       string  `json:"name"`
	RawText    string  `json:"raw_text,omitempty"`
	Text       string  `json:"value"`
	Number     float64 `json:"number,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// TaxBreakup holds the six tax components whose sum must reconcile with
// the challan's total amount.
type TaxBreakup struct {
	TaxA float64 `json:"tax_a"` // Tax
	TaxB float64 `json:"tax_b"` // Surcharge
	TaxC float64 `json:"tax_c"` // Cess
	TaxD float64 `json:"tax_d"` // Interest
	TaxE float64 `json:"tax_e"` // Penalty
	TaxF float64 `json:"tax_f"` // Fee u/s 234E
}

// Total returns the sum of all six components.
func (t TaxBreakup) Total() float64 {
	return t.TaxA + t.TaxB + t.TaxC + t.TaxD + t.TaxE + t.TaxF
}

// ChallanRecord is the structured result of extracting one challan PDF.
type ChallanRecord struct {
	TAN             string `json:"tan"`
	DeductorName    string `json:"deductor_name"`
	AssessmentYear  string `json:"assessment_year"`
	FinancialYear   string `json:"financial_year"`
	MajorHead       string `json:"major_head"`
	MinorHead       string `json:"minor_head"`
	NatureOfPayment string `json:"nature_of_payment"`

	TotalAmount   float64 `json:"total_amount"`
	AmountInWords string  `json:"amount_in_words"`

	CIN           string `json:"cin"`
	BSRCode       string `json:"bsr_code"`
	ChallanNo     string `json:"challan_no"`
	DateOfDeposit string `json:"date_of_deposit"` // ISO YYYY-MM-DD
	TenderDate    string `json:"tender_date"`

	BankName      string `json:"bank_name"`
	BankRefNo     string `json:"bank_ref_no"`
	ModeOfPayment string `json:"mode_of_payment"`

	TaxBreakup TaxBreakup `json:"tax_breakup"`

	SourceFile     string           `json:"source_file"`
	RowConfidence  float64          `json:"row_confidence"`
	ValidationFlag ValidationStatus `json:"validation_flag"`
	Notes          string           `json:"notes"`
	RecordHash     string           `json:"record_hash"`

	// Per-field confidence detail for review UIs.
	Fields map[string]FieldValue `json:"fields,omitempty"`
}

// ComputeHash computes the deduplication hash over CIN + ChallanNo + DateOfDeposit
// and stores it on the record.
func (r *ChallanRecord) ComputeHash() string {
	sum := sha256.Sum256([]byte(r.CIN + r.ChallanNo + r.DateOfDeposit))
	r.RecordHash = hex.EncodeToString(sum[:])[:16]
	return r.RecordHash
}

// FieldConfidence returns the confidence recorded for a named field, 0 if absent.
func (r *ChallanRecord) FieldConfidence(name string) float64 {
	if fv, ok := r.Fields[name]; ok {
		return fv.Confidence
	}
	return 0
}

// ExtractionResult is the per-document outcome: a record or a failure.
type ExtractionResult struct {
	Success      bool           `json:"success"`
	Record       *ChallanRecord `json:"record,omitempty"`
	SourceFile   string         `json:"source_file"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Method       string         `json:"extraction_method"`
	ProcessingMS float64        `json:"processing_time_ms"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// Failure builds a failed result for one document.
func Failure(sourceFile, format string, args ...any) ExtractionResult {
	return ExtractionResult{
		Success:      false,
		SourceFile:   sourceFile,
		ErrorMessage: fmt.Sprintf(format, args...),
		Method:       "failed",
	}
}

// BatchResult summarizes one processed batch.
type BatchResult struct {
	BatchID     string            `json:"batch_id"`
	TotalFiles  int               `json:"total_files"`
	Successful  int               `json:"successful"`
	Failed      int               `json:"failed"`
	Flagged     int               `json:"flagged"`
	TotalAmount float64           `json:"total_amount"`
	Records     []*ChallanRecord  `json:"records"`
	Errors      map[string]string `json:"errors,omitempty"`
}
