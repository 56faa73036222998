package service

import (
	"context"
	"fmt"

	"github.com/taxops/tds-challan-extractor/dto"
	"github.com/taxops/tds-challan-extractor/utils"
)

// lineYTolerance groups positioned words into visual lines; values within
// this many points share a baseline.
const lineYTolerance = 5

// LayoutExtractor resolves fields spatially from the PDF's positioned words.
// It recovers values the pattern pass misses when a label and its value sit
// in separate table cells.
type LayoutExtractor struct {
	pdf        PDFProcessor
	recognizer *utils.Recognizer
}

func NewLayoutExtractor(pdf PDFProcessor, recognizer *utils.Recognizer) *LayoutExtractor {
	return &LayoutExtractor{pdf: pdf, recognizer: recognizer}
}

func (e *LayoutExtractor) Name() string {
	return dto.StrategyLayout
}

func (e *LayoutExtractor) Extract(ctx context.Context, doc dto.RawDocument) (map[string]dto.FieldValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens, err := e.pdf.ExtractTokens(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("token layer of %s: %w", doc.Filename, err)
	}
	if len(tokens) == 0 {
		return map[string]dto.FieldValue{}, nil
	}

	lines := utils.GroupIntoLines(tokens, lineYTolerance)

	fields := make(map[string]dto.FieldValue)
	financialYear := ""
	for _, spec := range utils.ChallanFields() {
		fv, ok := e.recognizer.FromTokens(spec, lines, dto.StrategyLayout, financialYear)
		if !ok {
			continue
		}
		fields[spec.Name] = fv
		if spec.Name == dto.FieldFinancialYear {
			financialYear = fv.Text
		}
	}
	return fields, nil
}
