package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	anomalies "opsboard/internal/anomalies/domain"
	masterdata "opsboard/internal/masterdata/domain"
	rollups "opsboard/internal/rollups/domain"
)

var rollupHeader = []string{"Date", "Location", "Region", "Metric Type", "Value", "7-Day Avg", "Prior 7-Day Avg"}

// BuildRollupsCSV renders rollup rows as a CSV download.
func BuildRollupsCSV(rows []rollups.DailyRollup, locations map[string]masterdata.Location) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(rollupHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		loc := locations[row.LocationID]
		name := loc.Name
		if name == "" {
			name = row.LocationID
		}
		record := []string{
			row.Date.Format("2006-01-02"),
			name,
			loc.Region,
			string(row.MetricType),
			strconv.FormatFloat(row.Value, 'f', 2, 64),
			strconv.FormatFloat(row.Avg7, 'f', 2, 64),
			strconv.FormatFloat(row.Prior7Avg, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRollupsXLSX renders rollup rows as an XLSX download.
func BuildRollupsXLSX(rows []rollups.DailyRollup, locations map[string]masterdata.Location) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "rollups"
	f.SetSheetName("Sheet1", sheet)

	for i, title := range rollupHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i, row := range rows {
		loc := locations[row.LocationID]
		name := loc.Name
		if name == "" {
			name = row.LocationID
		}
		rowNum := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", rowNum), row.Date.Format("2006-01-02"))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", rowNum), name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", rowNum), loc.Region)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", rowNum), string(row.MetricType))
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", rowNum), row.Value)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", rowNum), row.Avg7)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", rowNum), row.Prior7Avg)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAnomaliesPDF renders an anomaly report as a PDF download.
func BuildAnomaliesPDF(orgID string, items []anomalies.Anomaly, locations map[string]masterdata.Location, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Anomaly Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Organization: %s", orgID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Anomalies: %d", len(items)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(35, 6, "Detected", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Location", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Metric", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Rule", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Baseline", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		name := item.LocationID
		if loc, ok := locations[item.LocationID]; ok && loc.Name != "" {
			name = loc.Name
		}
		pdf.CellFormat(35, 6, item.DetectedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, string(item.MetricType), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, item.Rule, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, string(item.Severity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.2f", item.Value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.2f", item.Threshold), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, string(item.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
