package service

import (
	"context"
	"fmt"
	"image"
	"regexp"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/taxops/tds-challan-extractor/client"
	"github.com/taxops/tds-challan-extractor/dto"
	"github.com/taxops/tds-challan-extractor/utils"
)

var qrCINPattern = regexp.MustCompile(`(?i)CIN[=:\s]*([A-Z0-9]{15,})`)

// OpticalExtractor is the last-resort pass for scanned challans: page images
// are preprocessed, run through Tesseract, and the recognized words resolved
// spatially. Net-banking receipts usually carry a QR code embedding the CIN,
// which is read as a high-confidence candidate.
type OpticalExtractor struct {
	pdf          PDFProcessor
	tesseract    *client.TesseractClient
	preprocessor *Preprocessor
	recognizer   *utils.Recognizer
}

func NewOpticalExtractor(pdf PDFProcessor, tesseract *client.TesseractClient, preprocessor *Preprocessor, recognizer *utils.Recognizer) *OpticalExtractor {
	return &OpticalExtractor{
		pdf:          pdf,
		tesseract:    tesseract,
		preprocessor: preprocessor,
		recognizer:   recognizer,
	}
}

func (e *OpticalExtractor) Name() string {
	return dto.StrategyOptical
}

// Extract returns whatever it resolved before the context expired; a context
// error alongside a partial map means the pass ran out of time, not that the
// document is unreadable.
func (e *OpticalExtractor) Extract(ctx context.Context, doc dto.RawDocument) (map[string]dto.FieldValue, error) {
	images, err := e.pdf.ExtractImages(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("page images of %s: %w", doc.Filename, err)
	}

	fields := make(map[string]dto.FieldValue)
	var tokens []dto.PositionedToken

	for page, img := range images {
		if err := ctx.Err(); err != nil {
			return fields, err
		}

		if cin, ok := e.readQRCIN(img); ok {
			e.keepBest(fields, cin)
		}

		prepared := e.preprocessor.Prepare(img)
		words, err := e.recognizePage(ctx, prepared, page+1)
		if err != nil {
			if ctx.Err() != nil {
				return fields, ctx.Err()
			}
			continue
		}
		tokens = append(tokens, words...)
	}

	if len(tokens) == 0 {
		return fields, nil
	}

	lines := utils.GroupIntoLines(tokens, lineYTolerance)
	financialYear := ""
	for _, spec := range utils.ChallanFields() {
		fv, ok := e.recognizer.FromTokens(spec, lines, dto.StrategyOptical, financialYear)
		if !ok {
			continue
		}
		e.keepBest(fields, fv)
		if spec.Name == dto.FieldFinancialYear {
			financialYear = fields[dto.FieldFinancialYear].Text
		}
	}
	return fields, nil
}

// recognizePage runs one page through Tesseract off the calling goroutine so
// the pass can abandon a hung recognition when the deadline hits.
func (e *OpticalExtractor) recognizePage(ctx context.Context, img image.Image, page int) ([]dto.PositionedToken, error) {
	type result struct {
		tokens []dto.PositionedToken
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		tokens, err := e.tesseract.RecognizeWords(img, page)
		ch <- result{tokens: tokens, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.tokens, r.err
	}
}

// readQRCIN decodes a QR code on the page, if any, and pulls a CIN out of
// its payload.
func (e *OpticalExtractor) readQRCIN(img image.Image) (dto.FieldValue, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return dto.FieldValue{}, false
	}

	qrReader := qrcode.NewQRCodeReader()
	decoded, err := qrReader.Decode(bmp, nil)
	if err != nil {
		return dto.FieldValue{}, false
	}

	m := qrCINPattern.FindStringSubmatch(decoded.GetText())
	if m == nil {
		return dto.FieldValue{}, false
	}

	cin := utils.NormalizeCode(m[1])
	return dto.FieldValue{
		Name:       dto.FieldCIN,
		RawText:    m[1],
		Text:       cin,
		Confidence: 0.95,
		Source:     dto.StrategyOptical,
	}, true
}

func (e *OpticalExtractor) keepBest(fields map[string]dto.FieldValue, fv dto.FieldValue) {
	if cur, ok := fields[fv.Name]; ok && cur.Confidence >= fv.Confidence {
		return
	}
	fields[fv.Name] = fv
}
