package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

var xlsxHeader = []any{
	"Course Code", "Course Name", "Delivery", "Days",
	"Start Date", "End Date", "Start Time", "End Time", "Link",
}

var xlsxWidths = []float64{12, 40, 14, 26, 12, 12, 11, 11, 50}

// XLSXWriter writes one worksheet with a row per course schedule.
type XLSXWriter struct {
	w       io.Writer
	sheet   string
	rows    []ScheduleRow
	flushed bool
}

// NewXLSXWriter creates an Excel writer with the given sheet name.
func NewXLSXWriter(w io.Writer, sheet string) *XLSXWriter {
	if sheet == "" {
		sheet = "Courses"
	}
	return &XLSXWriter{w: w, sheet: sheet}
}

// Write flattens data into rows.
func (w *XLSXWriter) Write(data any) error {
	rows, err := Rows(data)
	if err != nil {
		return err
	}
	w.rows = append(w.rows, rows...)
	return nil
}

// WriteAll flattens every item.
func (w *XLSXWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush renders the workbook. Later calls are no-ops.
func (w *XLSXWriter) Flush() error {
	if w.flushed {
		return nil
	}
	w.flushed = true

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetSheetRow(w.sheet, "A1", &xlsxHeader); err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(xlsxHeader))
	if err := f.SetCellStyle(w.sheet, "A1", last+"1", header); err != nil {
		return err
	}
	for i, width := range xlsxWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(w.sheet, col, col, width); err != nil {
			return err
		}
	}

	for i, r := range w.rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{
			r.CourseCode, r.CourseName, r.DeliveryType, r.Days,
			formatDate(r), formatEndDate(r), "", "", r.Link,
		}
		if r.HasTimes {
			values[6], values[7] = r.StartTime.Kitchen(), r.EndTime.Kitchen()
		}
		if err := f.SetSheetRow(w.sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(w.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w.w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Close flushes the writer.
func (w *XLSXWriter) Close() error {
	return w.Flush()
}

func formatDate(r ScheduleRow) string {
	if r.StartDate.IsZero() {
		return ""
	}
	return r.StartDate.Format(timeparse.DateLayout)
}

func formatEndDate(r ScheduleRow) string {
	if r.EndDate.IsZero() {
		return ""
	}
	return r.EndDate.Format(timeparse.DateLayout)
}
