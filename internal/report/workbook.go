// Package report renders dispatch reconciliations as xlsx workbooks and archives
// them to object storage.
package report

import (
	"bytes"
	"fmt"

	"go-dispatch-ws/internal/service"

	"github.com/xuri/excelize/v2"
)

const (
	sheetLines   = "Reconciliation"
	sheetSummary = "Summary"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var lineHeaders = []string{
	"SKU", "Product", "Batch", "Requested", "Scanned",
	"Received", "Damaged", "Missing", "Unit Cost", "Loss Value",
}

// BuildWorkbook lays out one row per dispatch item followed by a totals row, and
// a summary sheet with the dispatch header.
func BuildWorkbook(sum *service.ReconciliationSummary) (*excelize.File, string, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetLines); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range lineHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheetLines, cell, h)
		f.SetCellStyle(sheetLines, cell, cell, headerStyle)
	}

	for idx, line := range sum.Lines {
		row := idx + 2
		unitCost, _ := line.UnitCost.Float64()
		loss, _ := line.LossValue.Float64()
		f.SetCellValue(sheetLines, fmt.Sprintf("A%d", row), line.SKU)
		f.SetCellValue(sheetLines, fmt.Sprintf("B%d", row), line.Name)
		f.SetCellValue(sheetLines, fmt.Sprintf("C%d", row), line.BatchCode)
		f.SetCellValue(sheetLines, fmt.Sprintf("D%d", row), line.Requested)
		f.SetCellValue(sheetLines, fmt.Sprintf("E%d", row), line.Scanned)
		f.SetCellValue(sheetLines, fmt.Sprintf("F%d", row), line.Received)
		f.SetCellValue(sheetLines, fmt.Sprintf("G%d", row), line.Damaged)
		f.SetCellValue(sheetLines, fmt.Sprintf("H%d", row), line.Missing)
		f.SetCellValue(sheetLines, fmt.Sprintf("I%d", row), unitCost)
		f.SetCellValue(sheetLines, fmt.Sprintf("J%d", row), loss)
	}

	totalRow := len(sum.Lines) + 2
	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	totalLoss, _ := sum.LossValue.Float64()
	f.SetCellValue(sheetLines, fmt.Sprintf("A%d", totalRow), "Total")
	f.SetCellValue(sheetLines, fmt.Sprintf("D%d", totalRow), sum.Requested)
	f.SetCellValue(sheetLines, fmt.Sprintf("F%d", totalRow), sum.Received)
	f.SetCellValue(sheetLines, fmt.Sprintf("G%d", totalRow), sum.Damaged)
	f.SetCellValue(sheetLines, fmt.Sprintf("H%d", totalRow), sum.Missing)
	f.SetCellValue(sheetLines, fmt.Sprintf("J%d", totalRow), totalLoss)
	f.SetCellStyle(sheetLines, fmt.Sprintf("A%d", totalRow), fmt.Sprintf("J%d", totalRow), totalStyle)

	widths := []float64{14, 28, 14, 10, 10, 10, 10, 10, 12, 12}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetLines, col, col, w)
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("add summary sheet: %w", err)
	}
	value, _ := sum.Value.Float64()
	rows := [][2]interface{}{
		{"Dispatch", sum.Number},
		{"Status", string(sum.Status)},
		{"Source store", sum.SourceStoreID.String()},
		{"Destination store", sum.DestinationStoreID.String()},
		{"Dispatched value", value},
		{"Loss value", totalLoss},
	}
	for i, r := range rows {
		f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", i+1), r[0])
		f.SetCellValue(sheetSummary, fmt.Sprintf("B%d", i+1), r[1])
	}
	f.SetColWidth(sheetSummary, "A", "A", 20)
	f.SetColWidth(sheetSummary, "B", "B", 40)

	return f, Filename(sum), nil
}

// Render returns the workbook as bytes.
func Render(sum *service.ReconciliationSummary) ([]byte, string, error) {
	f, name, err := BuildWorkbook(sum)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), name, nil
}

func Filename(sum *service.ReconciliationSummary) string {
	return fmt.Sprintf("reconciliation_%s.xlsx", sum.Number)
}
