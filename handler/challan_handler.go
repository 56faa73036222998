package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taxops/tds-challan-extractor/config"
	"github.com/taxops/tds-challan-extractor/dto"
	"github.com/taxops/tds-challan-extractor/service"
)

type ChallanHandler struct {
	pipeline *service.Pipeline
	exporter *service.ExportService
	cfg      *config.Config
}

func NewChallanHandler(pipeline *service.Pipeline, exporter *service.ExportService, cfg *config.Config) *ChallanHandler {
	return &ChallanHandler{
		pipeline: pipeline,
		exporter: exporter,
		cfg:      cfg,
	}
}

// ProcessChallans accepts multipart challan PDFs and returns the batch result as JSON.
func (h *ChallanHandler) ProcessChallans(c *gin.Context) {
	docs, ok := h.readDocuments(c)
	if !ok {
		return
	}

	batch := h.pipeline.ProcessBatch(c.Request.Context(), docs)
	c.JSON(http.StatusOK, dto.ProcessResponse{
		Batch:       batch,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// ExportChallans accepts multipart challan PDFs and returns the processed
// batch as an XLSX attachment.
func (h *ChallanHandler) ExportChallans(c *gin.Context) {
	docs, ok := h.readDocuments(c)
	if !ok {
		return
	}

	batch := h.pipeline.ProcessBatch(c.Request.Context(), docs)
	workbook, err := h.exporter.WriteXLSX(batch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "export failed",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	filename := fmt.Sprintf("tds_challans_%s.xlsx", batch.BatchID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

func (h *ChallanHandler) readDocuments(c *gin.Context) ([]dto.RawDocument, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid multipart form",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return nil, false
	}

	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	req := dto.ProcessRequest{Files: files}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return nil, false
	}

	var docs []dto.RawDocument
	for _, fh := range files {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "unsupported file type",
				Message: fh.Filename + " is not a PDF",
				Code:    http.StatusBadRequest,
			})
			return nil, false
		}
		if fh.Size > h.cfg.MaxFileSize {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "file too large",
				Message: fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, h.cfg.MaxFileSize),
				Code:    http.StatusBadRequest,
			})
			return nil, false
		}

		data, err := readFile(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "unreadable upload",
				Message: err.Error(),
				Code:    http.StatusBadRequest,
			})
			return nil, false
		}
		docs = append(docs, dto.RawDocument{Filename: fh.Filename, Data: data})
	}
	return docs, true
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}
