package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/taxops/tds-challan-extractor/dto"
)

// PDFProcessor exposes the three raw views of a challan PDF the extraction
// passes work from: the embedded text layer, positioned words, and page images.
type PDFProcessor interface {
	ExtractText(pdfData []byte) (string, error)
	ExtractTokens(pdfData []byte) ([]dto.PositionedToken, error)
	ExtractImages(pdfData []byte) ([]image.Image, error)
}

type pdfProcessor struct{}

func NewPDFProcessor() PDFProcessor {
	return &pdfProcessor{}
}

func (p *pdfProcessor) ExtractText(pdfData []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(pdfData), int64(len(pdfData)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var line []string
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					line = append(line, s)
				}
			}
			if len(line) > 0 {
				textBuilder.WriteString(strings.Join(line, " "))
				textBuilder.WriteString("\n")
			}
		}
	}
	return textBuilder.String(), nil
}

// ExtractTokens returns the text layer as positioned words with a top-left
// origin, so the layout pass can reason about "right of" and "below".
func (p *pdfProcessor) ExtractTokens(pdfData []byte) ([]dto.PositionedToken, error) {
	r, err := pdf.NewReader(bytes.NewReader(pdfData), int64(len(pdfData)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var tokens []dto.PositionedToken
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}

		var pageTokens []dto.PositionedToken
		maxY := 0.0
		for _, row := range rows {
			for _, word := range row.Content {
				s := strings.TrimSpace(word.S)
				if s == "" {
					continue
				}
				height := word.FontSize
				if height <= 0 {
					height = 10
				}
				pageTokens = append(pageTokens, dto.PositionedToken{
					Text:       s,
					X0:         word.X,
					X1:         word.X + word.W,
					Y0:         word.Y,
					Y1:         word.Y + height,
					Page:       pageIndex,
					Confidence: 1.0,
				})
				if word.Y+height > maxY {
					maxY = word.Y + height
				}
			}
		}

		// PDF coordinates grow upwards; flip to a top-left origin.
		for i := range pageTokens {
			y0, y1 := pageTokens[i].Y0, pageTokens[i].Y1
			pageTokens[i].Y0 = maxY - y1
			pageTokens[i].Y1 = maxY - y0
		}
		tokens = append(tokens, pageTokens...)
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].Page != tokens[j].Page {
			return tokens[i].Page < tokens[j].Page
		}
		if tokens[i].Y0 != tokens[j].Y0 {
			return tokens[i].Y0 < tokens[j].Y0
		}
		return tokens[i].X0 < tokens[j].X0
	})
	return tokens, nil
}

// ExtractImages pulls the embedded page images out of a scanned challan PDF.
func (p *pdfProcessor) ExtractImages(pdfData []byte) ([]image.Image, error) {
	tempDir, err := os.MkdirTemp("", "challan_images")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempFile, err := os.CreateTemp("", "challan-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(pdfData); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("failed to write pdf data: %w", err)
	}
	tempFile.Close()

	conf := model.NewDefaultConfiguration()

	// nil selects all pages; challans are single-page but scans sometimes
	// carry a trailing acknowledgement page.
	if err := api.ExtractImagesFile(tempFile.Name(), tempDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	files, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %w", err)
	}

	var images []image.Image
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		imgPath := filepath.Join(tempDir, file.Name())
		imgFile, err := os.Open(imgPath)
		if err != nil {
			continue
		}

		img, _, err := image.Decode(imgFile)
		imgFile.Close()
		if err != nil {
			continue
		}
		images = append(images, img)
	}

	return images, nil
}
