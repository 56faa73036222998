package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/taxops/tds-challan-extractor/client"
	"github.com/taxops/tds-challan-extractor/config"
	"github.com/taxops/tds-challan-extractor/handler"
	"github.com/taxops/tds-challan-extractor/service"
	"github.com/taxops/tds-challan-extractor/utils"
)

func main() {
	cfg := config.LoadConfig()

	// Tesseract v5 reads the tessdata path from the environment as well.
	os.Setenv("TESSDATA_PREFIX", cfg.TesseractDataPath)
	log.Println("TESSDATA_PREFIX set to:", os.Getenv("TESSDATA_PREFIX"))

	tesseractClient := client.NewTesseractClient(cfg.TesseractDataPath, cfg.OCRLanguage)
	defer tesseractClient.Close()

	pdfProcessor := service.NewPDFProcessor()
	recognizer := utils.NewRecognizer(cfg.LabelValueMaxDX, cfg.LabelValueMaxDY)
	preprocessor := service.NewPreprocessor(cfg.OCRDPI)

	validator := service.NewValidationService(cfg)
	pipeline := service.NewPipeline(cfg, validator,
		service.NewTextExtractor(pdfProcessor, recognizer),
		service.NewLayoutExtractor(pdfProcessor, recognizer),
		service.NewOpticalExtractor(pdfProcessor, tesseractClient, preprocessor, recognizer),
	)
	exporter := service.NewExportService()

	challanHandler := handler.NewChallanHandler(pipeline, exporter, cfg)

	router := gin.Default()
	router.MaxMultipartMemory = 32 << 20

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "TDS Challan Extractor",
		})
	})

	api := router.Group("/api/v1")
	{
		challans := api.Group("/challans")
		{
			challans.POST("/process", challanHandler.ProcessChallans)
			challans.POST("/export", challanHandler.ExportChallans)
		}
	}

	log.Printf("Starting TDS Challan Extractor on port %s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
