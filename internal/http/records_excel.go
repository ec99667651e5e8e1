package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/akvo/ai-logbook/internal/domain"
)

// RecordsExportHeader 记录导出表头
var RecordsExportHeader = []string{
	"Record ID",
	"Farmer ID",
	"Record Type",
	"Occurred At",
	"Confirmed",
	"Needs Followup",
	"Missing Fields",
	"Confidence",
	"Data",
	"Created At",
}

// GenerateRecordsExport 生成记录导出 Excel 文件
func GenerateRecordsExport(records []*domain.Record) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Records"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range RecordsExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 写入数据行
	for rowIdx, record := range records {
		occurredAt := ""
		if record.OccurredAt != nil {
			occurredAt = record.OccurredAt.Format("2006-01-02")
		}
		dataJSON, _ := json.Marshal(record.Data)

		values := []any{
			record.RecordID,
			record.FarmerID,
			string(record.RecordType),
			occurredAt,
			record.Confirmed,
			record.NeedsFollowup,
			strings.Join(record.MissingFields, ", "),
			record.Confidence,
			string(dataJSON),
			record.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}
	return buf.Bytes(), nil
}
