package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/taxops/tds-challan-extractor/dto"
)

const (
	dataSheet    = "TDS Challans"
	summarySheet = "Summary"
	flaggedSheet = "Flagged Records"
)

// exportColumns is the workbook column schema, in order.
var exportColumns = []string{
	"TAN",
	"Deductor Name",
	"Assessment Year",
	"Financial Year",
	"Major Head",
	"Minor Head",
	"Nature of Payment",
	"Total Amount",
	"Amount in Words",
	"CIN",
	"BSR Code",
	"Challan No",
	"Date of Deposit",
	"Bank Name",
	"Bank Ref No",
	"Tax_A",
	"Tax_B",
	"Tax_C",
	"Tax_D",
	"Tax_E",
	"Tax_F",
	"Source File",
	"Row Confidence",
	"Validation Flag",
	"Notes",
}

// ExportService renders a processed batch as an XLSX workbook with the data
// sheet, a summary sheet, and a sheet repeating only the flagged records.
type ExportService struct {
	now func() time.Time
}

func NewExportService() *ExportService {
	return &ExportService{now: time.Now}
}

// WriteXLSX returns the workbook bytes for a batch.
func (s *ExportService) WriteXLSX(batch dto.BatchResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return nil, fmt.Errorf("rename data sheet: %w", err)
	}
	if err := s.writeDataSheet(f, dataSheet, batch.Records); err != nil {
		return nil, err
	}

	if len(batch.Records) > 0 {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return nil, fmt.Errorf("create summary sheet: %w", err)
		}
		if err := s.writeSummarySheet(f, batch); err != nil {
			return nil, err
		}
	}

	var flagged []*dto.ChallanRecord
	for _, r := range batch.Records {
		if r.ValidationFlag == dto.StatusFlag {
			flagged = append(flagged, r)
		}
	}
	if len(flagged) > 0 {
		if _, err := f.NewSheet(flaggedSheet); err != nil {
			return nil, fmt.Errorf("create flagged sheet: %w", err)
		}
		if err := s.writeDataSheet(f, flaggedSheet, flagged); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ExportService) writeDataSheet(f *excelize.File, sheet string, records []*dto.ChallanRecord) error {
	for i, h := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", h, err)
		}
	}

	for rowIdx, r := range records {
		row := rowIdx + 2
		values := []any{
			r.TAN,
			r.DeductorName,
			r.AssessmentYear,
			r.FinancialYear,
			r.MajorHead,
			r.MinorHead,
			r.NatureOfPayment,
			r.TotalAmount,
			r.AmountInWords,
			r.CIN,
			r.BSRCode,
			r.ChallanNo,
			r.DateOfDeposit,
			r.BankName,
			r.BankRefNo,
			r.TaxBreakup.TaxA,
			r.TaxBreakup.TaxB,
			r.TaxBreakup.TaxC,
			r.TaxBreakup.TaxD,
			r.TaxBreakup.TaxE,
			r.TaxBreakup.TaxF,
			r.SourceFile,
			r.RowConfidence,
			string(r.ValidationFlag),
			r.Notes,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "J", "J", 22)
	_ = f.SetColWidth(sheet, "V", "V", 30)
	_ = f.SetColWidth(sheet, "Y", "Y", 50)
	return nil
}

func (s *ExportService) writeSummarySheet(f *excelize.File, batch dto.BatchResult) error {
	set := func(cell string, v any) {
		_ = f.SetCellValue(summarySheet, cell, v)
	}

	set("A1", "TDS Challan Processing Summary")
	set("A2", "Generated: "+s.now().Format("2006-01-02 15:04:05"))

	okCount := 0
	var confidenceSum float64
	for _, r := range batch.Records {
		if r.ValidationFlag == dto.StatusOK {
			okCount++
		}
		confidenceSum += r.RowConfidence
	}
	avgConfidence := 0.0
	if len(batch.Records) > 0 {
		avgConfidence = confidenceSum / float64(len(batch.Records))
	}

	set("A4", "Overall Statistics")
	stats := []struct {
		label string
		value any
	}{
		{"Total Files", batch.TotalFiles},
		{"Total Records", len(batch.Records)},
		{"OK Records", okCount},
		{"Flagged Records", batch.Flagged},
		{"Failed Files", batch.Failed},
		{"Total Amount (Sum)", batch.TotalAmount},
		{"Average Confidence", avgConfidence},
	}
	for i, st := range stats {
		set(fmt.Sprintf("A%d", i+5), st.label)
		set(fmt.Sprintf("B%d", i+5), st.value)
	}

	// Per-TAN rollup.
	type tanStats struct {
		count   int
		amount  float64
		flagged int
	}
	rollup := make(map[string]*tanStats)
	for _, r := range batch.Records {
		tan := r.TAN
		if tan == "" {
			tan = "Unknown"
		}
		ts, ok := rollup[tan]
		if !ok {
			ts = &tanStats{}
			rollup[tan] = ts
		}
		ts.count++
		ts.amount += r.TotalAmount
		if r.ValidationFlag == dto.StatusFlag {
			ts.flagged++
		}
	}
	tans := make([]string, 0, len(rollup))
	for tan := range rollup {
		tans = append(tans, tan)
	}
	sort.Strings(tans)

	base := len(stats) + 6
	set(fmt.Sprintf("A%d", base), "Summary by TAN")
	set(fmt.Sprintf("A%d", base+1), "TAN")
	set(fmt.Sprintf("B%d", base+1), "Record Count")
	set(fmt.Sprintf("C%d", base+1), "Total Amount")
	set(fmt.Sprintf("D%d", base+1), "Flagged")
	for i, tan := range tans {
		row := base + 2 + i
		ts := rollup[tan]
		set(fmt.Sprintf("A%d", row), tan)
		set(fmt.Sprintf("B%d", row), ts.count)
		set(fmt.Sprintf("C%d", row), ts.amount)
		set(fmt.Sprintf("D%d", row), ts.flagged)
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 24)
	_ = f.SetColWidth(summarySheet, "B", "D", 16)
	return nil
}
