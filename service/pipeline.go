package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taxops/tds-challan-extractor/config"
	"github.com/taxops/tds-challan-extractor/dto"
	"github.com/taxops/tds-challan-extractor/utils"
)

// Extractor is one extraction pass. A nil error with an empty map means the
// pass ran and found nothing; an error means the pass could not run.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc dto.RawDocument) (map[string]dto.FieldValue, error)
}

// strategyPriority breaks confidence ties during the merge: a text-layer
// value beats a layout value beats an optical value at equal confidence.
var strategyPriority = map[string]int{
	dto.StrategyText:    3,
	dto.StrategyLayout:  2,
	dto.StrategyOptical: 1,
}

// MergeFields folds a pass's results into the accumulated field set. The
// reduction is order-independent: for each field the winner is decided by
// confidence, then strategy priority, then lexicographic value.
func MergeFields(into, from map[string]dto.FieldValue) map[string]dto.FieldValue {
	if into == nil {
		into = make(map[string]dto.FieldValue)
	}
	for name, fv := range from {
		cur, ok := into[name]
		if !ok || betterField(fv, cur) {
			into[name] = fv
		}
	}
	return into
}

func betterField(a, b dto.FieldValue) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if pa, pb := strategyPriority[a.Source], strategyPriority[b.Source]; pa != pb {
		return pa > pb
	}
	return a.Text < b.Text
}

// RowConfidence is the weighted aggregate over the declared field table.
// The denominator covers every declared field, so missing fields drag the
// score down instead of being ignored.
func RowConfidence(fields map[string]dto.FieldValue) float64 {
	var sum float64
	for _, spec := range utils.ChallanFields() {
		if fv, ok := fields[spec.Name]; ok {
			sum += spec.Weight * fv.Confidence
		}
	}
	return sum / utils.TotalWeight()
}

// Pipeline runs the extraction cascade over challan documents and assembles
// validated records.
type Pipeline struct {
	cfg        *config.Config
	extractors []Extractor
	validator  *ValidationService
}

// NewPipeline wires the cascade. Extractors run in the given order; each
// later pass only runs when the accumulated fields are still unsatisfying.
func NewPipeline(cfg *config.Config, validator *ValidationService, extractors ...Extractor) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		extractors: extractors,
		validator:  validator,
	}
}

// ProcessDocument runs the cascade for one document. It fails only when no
// pass recognized a single mandatory field; partial recognition yields a
// record and leaves the verdict to validation.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc dto.RawDocument) dto.ExtractionResult {
	start := time.Now()

	merged := make(map[string]dto.FieldValue)
	var warnings []string
	method := ""

	for _, ex := range p.extractors {
		exCtx := ctx
		cancel := context.CancelFunc(nil)
		if ex.Name() == dto.StrategyOptical && p.cfg.OCRTimeout > 0 {
			exCtx, cancel = context.WithTimeout(ctx, p.cfg.OCRTimeout)
		}

		fields, err := ex.Extract(exCtx, doc)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				warnings = append(warnings, fmt.Sprintf("%s pass timed out after %s", ex.Name(), p.cfg.OCRTimeout))
			} else {
				log.Printf("%s pass failed for %s: %v", ex.Name(), doc.Filename, err)
				warnings = append(warnings, fmt.Sprintf("%s pass failed: %v", ex.Name(), err))
			}
		}

		merged = MergeFields(merged, fields)
		method = ex.Name()

		if p.satisfied(merged) {
			break
		}
	}

	if countMandatory(merged) == 0 {
		return dto.Failure(doc.Filename, "no pass recognized any mandatory field: missing %s",
			strings.Join(utils.MandatoryFields(), ", "))
	}

	record := p.buildRecord(doc.Filename, merged)
	p.validator.Validate(record)

	return dto.ExtractionResult{
		Success:      true,
		Record:       record,
		SourceFile:   doc.Filename,
		Method:       method,
		ProcessingMS: float64(time.Since(start).Microseconds()) / 1000,
		Warnings:     warnings,
	}
}

// satisfied reports whether escalation can stop: every mandatory field is
// present and the aggregate confidence clears the review threshold.
func (p *Pipeline) satisfied(fields map[string]dto.FieldValue) bool {
	if countMandatory(fields) < len(utils.MandatoryFields()) {
		return false
	}
	return RowConfidence(fields) >= p.cfg.MinRowConfidence
}

func countMandatory(fields map[string]dto.FieldValue) int {
	n := 0
	for _, name := range utils.MandatoryFields() {
		if _, ok := fields[name]; ok {
			n++
		}
	}
	return n
}

// buildRecord maps the merged field set onto a record. Missing tax breakup
// components default to zero at reduced confidence; a challan that omits a
// component line means the component was not paid.
func (p *Pipeline) buildRecord(sourceFile string, fields map[string]dto.FieldValue) *dto.ChallanRecord {
	for _, name := range dto.TaxFields {
		if _, ok := fields[name]; !ok {
			fields[name] = dto.FieldValue{
				Name:       name,
				Text:       "0.00",
				Number:     0,
				Confidence: 0.8,
				Source:     "default",
			}
		}
	}

	text := func(name string) string { return fields[name].Text }
	num := func(name string) float64 { return fields[name].Number }

	record := &dto.ChallanRecord{
		TAN:             text(dto.FieldTAN),
		DeductorName:    text(dto.FieldDeductorName),
		AssessmentYear:  text(dto.FieldAssessmentYear),
		FinancialYear:   text(dto.FieldFinancialYear),
		MajorHead:       text(dto.FieldMajorHead),
		MinorHead:       text(dto.FieldMinorHead),
		NatureOfPayment: text(dto.FieldNatureOfPayment),

		TotalAmount:   num(dto.FieldTotalAmount),
		AmountInWords: text(dto.FieldAmountInWords),

		CIN:           text(dto.FieldCIN),
		BSRCode:       text(dto.FieldBSRCode),
		ChallanNo:     text(dto.FieldChallanNo),
		DateOfDeposit: text(dto.FieldDateOfDeposit),
		TenderDate:    text(dto.FieldTenderDate),

		BankName:      text(dto.FieldBankName),
		BankRefNo:     text(dto.FieldBankRefNo),
		ModeOfPayment: text(dto.FieldModeOfPayment),

		TaxBreakup: dto.TaxBreakup{
			TaxA: num(dto.FieldTaxA),
			TaxB: num(dto.FieldTaxB),
			TaxC: num(dto.FieldTaxC),
			TaxD: num(dto.FieldTaxD),
			TaxE: num(dto.FieldTaxE),
			TaxF: num(dto.FieldTaxF),
		},

		SourceFile:     sourceFile,
		RowConfidence:  RowConfidence(fields),
		ValidationFlag: dto.StatusPending,
		Fields:         fields,
	}
	record.ComputeHash()
	return record
}

// ProcessBatch extracts every document concurrently, then runs the
// batch-level steps that need all records in hand: deduplication and totals.
func (p *Pipeline) ProcessBatch(ctx context.Context, docs []dto.RawDocument) dto.BatchResult {
	results := make([]dto.ExtractionResult, len(docs))

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			results[i] = p.ProcessDocument(gctx, doc)
			return nil
		})
	}
	g.Wait()

	batch := dto.BatchResult{
		BatchID:    uuid.NewString(),
		TotalFiles: len(docs),
		Errors:     make(map[string]string),
	}

	var records []*dto.ChallanRecord
	for _, res := range results {
		if !res.Success {
			batch.Failed++
			batch.Errors[res.SourceFile] = res.ErrorMessage
			continue
		}
		batch.Successful++
		batch.TotalAmount += res.Record.TotalAmount
		records = append(records, res.Record)
	}

	p.validator.Deduplicate(records)

	for _, r := range records {
		if r.ValidationFlag == dto.StatusFlag {
			batch.Flagged++
		}
	}
	batch.Records = records
	if len(batch.Errors) == 0 {
		batch.Errors = nil
	}
	return batch
}
