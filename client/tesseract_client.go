package client

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/taxops/tds-challan-extractor/dto"
)

type TesseractClient struct {
	dataPath string
	language string
}

func NewTesseractClient(dataPath, language string) *TesseractClient {
	if language == "" {
		language = "eng"
	}
	return &TesseractClient{
		dataPath: dataPath,
		language: language,
	}
}

// RecognizeText runs Tesseract over a page image and returns the raw text.
func (tc *TesseractClient) RecognizeText(img image.Image) (string, error) {
	tempFile, err := tc.writeTempPNG(img)
	if err != nil {
		return "", err
	}
	defer os.Remove(tempFile)

	client := gosseract.NewClient()
	defer client.Close()

	if err := tc.configure(client, tempFile); err != nil {
		return "", err
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

// RecognizeWords runs Tesseract over a page image and returns each recognized
// word with its bounding box and Tesseract's word confidence scaled to [0,1].
func (tc *TesseractClient) RecognizeWords(img image.Image, page int) ([]dto.PositionedToken, error) {
	tempFile, err := tc.writeTempPNG(img)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempFile)

	client := gosseract.NewClient()
	defer client.Close()

	if err := tc.configure(client, tempFile); err != nil {
		return nil, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get bounding boxes: %w", err)
	}

	var tokens []dto.PositionedToken
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		conf := box.Confidence / 100
		if conf < 0 {
			conf = 0
		}
		tokens = append(tokens, dto.PositionedToken{
			Text:       word,
			X0:         float64(box.Box.Min.X),
			Y0:         float64(box.Box.Min.Y),
			X1:         float64(box.Box.Max.X),
			Y1:         float64(box.Box.Max.Y),
			Page:       page,
			Confidence: conf,
		})
	}
	return tokens, nil
}

func (tc *TesseractClient) configure(client *gosseract.Client, imagePath string) error {
	if tc.dataPath != "" {
		client.SetTessdataPrefix(tc.dataPath)
	}
	if err := client.SetLanguage(tc.language); err != nil {
		return fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return fmt.Errorf("failed to set image: %w", err)
	}
	return nil
}

func (tc *TesseractClient) writeTempPNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	tempFile, err := os.CreateTemp("", "ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := tempFile.Write(buf.Bytes()); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return tempFile.Name(), nil
}

// Close performs cleanup
func (tc *TesseractClient) Close() {
	log.Println("Tesseract client closed")
}
