package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries all tunable parameters. It is built once at startup and
// never mutated afterwards.
type Config struct {
	ServerPort        string
	TesseractDataPath string
	MaxFileSize       int64

	// Confidence thresholds. Rows below MinRowConfidence are forced into
	// review; the same threshold gates escalation between extraction passes.
	MinRowConfidence float64

	// Max allowed difference between the Tax A-F sum and the total amount.
	SumCheckTolerance float64

	// Optical recognition settings.
	OCRDPI      int
	OCRLanguage string
	OCRTimeout  time.Duration

	// Bounding-box proximity limits for layout-aware label/value matching,
	// in PDF points / pixels.
	LabelValueMaxDX float64
	LabelValueMaxDY float64

	// Batch processing.
	Workers int
}

func LoadConfig() *Config {
	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	tesseractDataPath := os.Getenv("TESSDATA_PREFIX")
	if tesseractDataPath == "" {
		tesseractDataPath = "/usr/share/tesseract-ocr/5/tessdata"
	}

	return &Config{
		ServerPort:        serverPort,
		TesseractDataPath: tesseractDataPath,
		MaxFileSize:       50 * 1024 * 1024, // 50 MB

		MinRowConfidence:  envFloat("TDS_MIN_ROW_CONFIDENCE", 0.85),
		SumCheckTolerance: envFloat("TDS_SUM_CHECK_TOLERANCE", 1.0),

		OCRDPI:      envInt("TDS_OCR_DPI", 300),
		OCRLanguage: envString("TDS_OCR_LANGUAGE", "eng"),
		OCRTimeout:  envDuration("TDS_OCR_TIMEOUT", 30*time.Second),

		LabelValueMaxDX: envFloat("TDS_LABEL_VALUE_MAX_DX", 300),
		LabelValueMaxDY: envFloat("TDS_LABEL_VALUE_MAX_DY", 50),

		Workers: envInt("TDS_WORKERS", 4),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
