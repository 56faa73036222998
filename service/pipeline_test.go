package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taxops/tds-challan-extractor/config"
	"github.com/taxops/tds-challan-extractor/dto"
	"github.com/taxops/tds-challan-extractor/utils"
)

type stubExtractor struct {
	name   string
	byFile map[string]map[string]dto.FieldValue
	err    error
	calls  int
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(_ context.Context, doc dto.RawDocument) (map[string]dto.FieldValue, error) {
	s.calls++
	return s.byFile[doc.Filename], s.err
}

func testConfig() *config.Config {
	return &config.Config{
		MinRowConfidence:  0.85,
		SumCheckTolerance: 1.0,
		OCRTimeout:        time.Second,
		Workers:           2,
	}
}

func field(name, text string, number, confidence float64, source string) dto.FieldValue {
	return dto.FieldValue{Name: name, Text: text, Number: number, Confidence: confidence, Source: source}
}

// fullFields builds a complete, internally consistent field set: every
// declared field present, tax A carrying the whole total.
func fullFields(cin, challanNo string, total float64, source string) map[string]dto.FieldValue {
	fields := make(map[string]dto.FieldValue)
	for _, spec := range utils.ChallanFields() {
		fv := dto.FieldValue{Name: spec.Name, Confidence: 0.95, Source: source}
		switch spec.Name {
		case dto.FieldTAN:
			fv.Text = "BLRS05586H"
		case dto.FieldCIN:
			fv.Text = cin
		case dto.FieldChallanNo:
			fv.Text = challanNo
		case dto.FieldTotalAmount:
			fv.Text = utils.FormatAmount(total)
			fv.Number = total
		case dto.FieldTaxA:
			fv.Text = utils.FormatAmount(total)
			fv.Number = total
		case dto.FieldTaxB, dto.FieldTaxC, dto.FieldTaxD, dto.FieldTaxE, dto.FieldTaxF:
			fv.Text = "0.00"
		case dto.FieldDateOfDeposit:
			fv.Text = "2025-10-07"
		case dto.FieldTenderDate:
			fv.Text = "2025-10-07"
		case dto.FieldFinancialYear, dto.FieldAssessmentYear:
			fv.Text = "2025-26"
		case dto.FieldNatureOfPayment:
			fv.Text = "94J"
		default:
			fv.Text = "SAMPLE"
		}
		fields[spec.Name] = fv
	}
	return fields
}

func mandatoryOnly(confidence float64) map[string]dto.FieldValue {
	return map[string]dto.FieldValue{
		dto.FieldTAN:           field(dto.FieldTAN, "BLRS05586H", 0, confidence, dto.StrategyText),
		dto.FieldCIN:           field(dto.FieldCIN, "25100700517216HDFC", 0, confidence, dto.StrategyText),
		dto.FieldTotalAmount:   field(dto.FieldTotalAmount, "19395.00", 19395, confidence, dto.StrategyText),
		dto.FieldDateOfDeposit: field(dto.FieldDateOfDeposit, "2025-10-07", 0, confidence, dto.StrategyText),
		dto.FieldChallanNo:     field(dto.FieldChallanNo, "51721", 0, confidence, dto.StrategyText),
	}
}

func TestMergeFieldsHigherConfidenceWins(t *testing.T) {
	a := map[string]dto.FieldValue{
		dto.FieldTAN: field(dto.FieldTAN, "BLRS05586H", 0, 0.98, dto.StrategyText),
	}
	b := map[string]dto.FieldValue{
		dto.FieldTAN: field(dto.FieldTAN, "BLRS0SS86H", 0, 0.60, dto.StrategyOptical),
		dto.FieldCIN: field(dto.FieldCIN, "25100700517216HDFC", 0, 0.80, dto.StrategyOptical),
	}

	merged := MergeFields(MergeFields(nil, a), b)
	assert.Equal(t, "BLRS05586H", merged[dto.FieldTAN].Text)
	assert.Equal(t, "25100700517216HDFC", merged[dto.FieldCIN].Text)
}

func TestMergeFieldsOrderIndependent(t *testing.T) {
	a := map[string]dto.FieldValue{
		dto.FieldTAN: field(dto.FieldTAN, "AAAA11111A", 0, 0.90, dto.StrategyOptical),
	}
	b := map[string]dto.FieldValue{
		dto.FieldTAN: field(dto.FieldTAN, "BBBB22222B", 0, 0.90, dto.StrategyText),
	}

	ab := MergeFields(MergeFields(nil, a), b)
	ba := MergeFields(MergeFields(nil, b), a)

	// Equal confidence: the text-layer value wins in both orders.
	assert.Equal(t, ab[dto.FieldTAN], ba[dto.FieldTAN])
	assert.Equal(t, "BBBB22222B", ab[dto.FieldTAN].Text)
}

func TestCascadeStopsWhenSatisfied(t *testing.T) {
	text := &stubExtractor{name: dto.StrategyText, byFile: map[string]map[string]dto.FieldValue{
		"a.pdf": fullFields("25100700517216HDFC", "51721", 19395, dto.StrategyText),
	}}
	layout := &stubExtractor{name: dto.StrategyLayout}
	optical := &stubExtractor{name: dto.StrategyOptical}

	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg), text, layout, optical)

	res := p.ProcessDocument(context.Background(), dto.RawDocument{Filename: "a.pdf"})
	assert.True(t, res.Success)
	assert.Equal(t, dto.StrategyText, res.Method)
	assert.Equal(t, 1, text.calls)
	assert.Equal(t, 0, layout.calls)
	assert.Equal(t, 0, optical.calls)
}

func TestCascadeEscalatesOnLowConfidence(t *testing.T) {
	text := &stubExtractor{name: dto.StrategyText, byFile: map[string]map[string]dto.FieldValue{
		"a.pdf": mandatoryOnly(0.95),
	}}
	layout := &stubExtractor{name: dto.StrategyLayout}
	optical := &stubExtractor{name: dto.StrategyOptical}

	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg), text, layout, optical)

	res := p.ProcessDocument(context.Background(), dto.RawDocument{Filename: "a.pdf"})
	assert.True(t, res.Success)
	assert.Equal(t, dto.StrategyOptical, res.Method)
	assert.Equal(t, 1, layout.calls)
	assert.Equal(t, 1, optical.calls)
}

func TestOpticalTimeoutKeepsPartialFields(t *testing.T) {
	text := &stubExtractor{name: dto.StrategyText}
	layout := &stubExtractor{name: dto.StrategyLayout}
	optical := &stubExtractor{
		name: dto.StrategyOptical,
		byFile: map[string]map[string]dto.FieldValue{
			"scan.pdf": mandatoryOnly(0.80),
		},
		err: context.DeadlineExceeded,
	}

	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg), text, layout, optical)

	res := p.ProcessDocument(context.Background(), dto.RawDocument{Filename: "scan.pdf"})
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Warnings)
	assert.Equal(t, "BLRS05586H", res.Record.TAN)
}

func TestProcessDocumentFailsWithNoMandatoryFields(t *testing.T) {
	text := &stubExtractor{name: dto.StrategyText}
	layout := &stubExtractor{name: dto.StrategyLayout}
	optical := &stubExtractor{name: dto.StrategyOptical}

	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg), text, layout, optical)

	res := p.ProcessDocument(context.Background(), dto.RawDocument{Filename: "blank.pdf"})
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "missing tan, cin, total_amount, date_of_deposit, challan_no")
}

func TestMissingTANStillSucceedsFlagged(t *testing.T) {
	fields := mandatoryOnly(0.95)
	delete(fields, dto.FieldTAN)
	text := &stubExtractor{name: dto.StrategyText, byFile: map[string]map[string]dto.FieldValue{
		"scan.pdf": fields,
	}}
	layout := &stubExtractor{name: dto.StrategyLayout}
	optical := &stubExtractor{name: dto.StrategyOptical}

	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg), text, layout, optical)

	res := p.ProcessDocument(context.Background(), dto.RawDocument{Filename: "scan.pdf"})
	assert.True(t, res.Success)
	assert.Equal(t, dto.StatusFlag, res.Record.ValidationFlag)
	assert.Contains(t, res.Record.Notes, "missing mandatory field tan")
	assert.Empty(t, res.Record.TAN)
}

func TestEndToEndBatchScenario(t *testing.T) {
	text := &stubExtractor{name: dto.StrategyText, byFile: map[string]map[string]dto.FieldValue{
		"challan1.pdf": fullFields("25100700517216HDFC", "51721", 19395, dto.StrategyText),
		"challan2.pdf": fullFields("25100700523936HDFC", "52393", 22500, dto.StrategyText),
		"challan3.pdf": fullFields("25100700528930HDFC", "52893", 40000, dto.StrategyText),
	}}

	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg), text)

	batch := p.ProcessBatch(context.Background(), []dto.RawDocument{
		{Filename: "challan1.pdf"}, {Filename: "challan2.pdf"}, {Filename: "challan3.pdf"},
	})

	assert.Equal(t, 3, batch.Successful)
	assert.Equal(t, 0, batch.Failed)
	assert.Equal(t, 0, batch.Flagged)
	assert.InDelta(t, 81895.00, batch.TotalAmount, 0.01)
	for _, r := range batch.Records {
		assert.Equal(t, dto.StatusOK, r.ValidationFlag)
		assert.GreaterOrEqual(t, r.RowConfidence, 0.85)
	}
}

func TestBuildRecordDefaultsMissingTaxComponents(t *testing.T) {
	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg))

	record := p.buildRecord("a.pdf", mandatoryOnly(0.95))
	assert.Equal(t, 0.0, record.TaxBreakup.TaxB)
	assert.Equal(t, "default", record.Fields[dto.FieldTaxB].Source)
	assert.InDelta(t, 0.8, record.Fields[dto.FieldTaxB].Confidence, 0.001)
	assert.NotEmpty(t, record.RecordHash)
}

func TestProcessBatchTotalsAndDedup(t *testing.T) {
	text := &stubExtractor{name: dto.StrategyText, byFile: map[string]map[string]dto.FieldValue{
		"a.pdf": fullFields("25100700517216HDFC", "51721", 19395, dto.StrategyText),
		"b.pdf": fullFields("25100700523936HDFC", "52393", 22500, dto.StrategyText),
		"c.pdf": fullFields("25100700528930HDFC", "52893", 40000, dto.StrategyText),
		"d.pdf": fullFields("25100700517216HDFC", "51721", 19395, dto.StrategyText),
	}}

	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg), text)

	batch := p.ProcessBatch(context.Background(), []dto.RawDocument{
		{Filename: "a.pdf"}, {Filename: "b.pdf"}, {Filename: "c.pdf"}, {Filename: "d.pdf"},
	})

	assert.Equal(t, 4, batch.TotalFiles)
	assert.Equal(t, 4, batch.Successful)
	assert.Equal(t, 0, batch.Failed)
	assert.InDelta(t, 101290.00, batch.TotalAmount, 0.01)

	var duplicate *dto.ChallanRecord
	for _, r := range batch.Records {
		if r.SourceFile == "d.pdf" {
			duplicate = r
		}
	}
	assert.NotNil(t, duplicate)
	assert.Contains(t, duplicate.Notes, "duplicate of a.pdf")
	assert.Equal(t, dto.StatusOK, duplicate.ValidationFlag)
}

func TestProcessBatchReportsFailures(t *testing.T) {
	text := &stubExtractor{name: dto.StrategyText, byFile: map[string]map[string]dto.FieldValue{
		"good.pdf": fullFields("25100700517216HDFC", "51721", 19395, dto.StrategyText),
	}}

	cfg := testConfig()
	p := NewPipeline(cfg, NewValidationService(cfg), text)

	batch := p.ProcessBatch(context.Background(), []dto.RawDocument{
		{Filename: "good.pdf"}, {Filename: "blank.pdf"},
	})

	assert.Equal(t, 1, batch.Successful)
	assert.Equal(t, 1, batch.Failed)
	assert.Contains(t, batch.Errors["blank.pdf"], "missing")
	assert.NotEmpty(t, batch.BatchID)
}

func TestRowConfidenceDenominatorCoversAllFields(t *testing.T) {
	fields := mandatoryOnly(1.0)
	// 13 of 31 weight units present at full confidence.
	assert.InDelta(t, 13.0/31.0, RowConfidence(fields), 0.001)
}
