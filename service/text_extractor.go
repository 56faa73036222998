package service

import (
	"context"
	"fmt"

	"github.com/taxops/tds-challan-extractor/dto"
	"github.com/taxops/tds-challan-extractor/utils"
)

// TextExtractor is the first-choice pass: it reads the PDF's embedded text
// layer and matches the declared field patterns against it.
type TextExtractor struct {
	pdf        PDFProcessor
	recognizer *utils.Recognizer
}

func NewTextExtractor(pdf PDFProcessor, recognizer *utils.Recognizer) *TextExtractor {
	return &TextExtractor{pdf: pdf, recognizer: recognizer}
}

func (e *TextExtractor) Name() string {
	return dto.StrategyText
}

func (e *TextExtractor) Extract(ctx context.Context, doc dto.RawDocument) (map[string]dto.FieldValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := e.pdf.ExtractText(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("text layer of %s: %w", doc.Filename, err)
	}

	fields := make(map[string]dto.FieldValue)
	financialYear := ""
	for _, spec := range utils.ChallanFields() {
		fv, ok := e.recognizer.FromText(spec, text, dto.StrategyText, financialYear)
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
