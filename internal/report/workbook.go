package report

import (
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// Workbook collects one sheet per row set and saves them as a single XLSX file
type Workbook struct {
	file        *excelize.File
	sheets      int
	usesDefault bool
}

// NewWorkbook creates an empty workbook
func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// sheetWriter feeds gocsv rows into consecutive spreadsheet rows
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
	err   error
}

func (w *sheetWriter) Write(record []string) error {
	if w.err != nil {
		return w.err
	}
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		w.err = err
		return err
	}
	values := make([]interface{}, len(record))
	for i, v := range record {
		values[i] = v
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("failed to write row %d of sheet %s: %w", w.row, w.sheet, err)
	}
	return w.err
}

func (w *sheetWriter) Flush() {}

func (w *sheetWriter) Error() error {
	return w.err
}

// AddSheet writes rows, a slice of tagged structs, to a new sheet with a header row
func (wb *Workbook) AddSheet(name string, rows interface{}) error {
	index, err := wb.file.NewSheet(name)
	if err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	if wb.sheets == 0 {
		wb.file.SetActiveSheet(index)
	}
	if name == defaultSheet {
		wb.usesDefault = true
	}
	wb.sheets++

	w := &sheetWriter{file: wb.file, sheet: name}
	if err := gocsv.MarshalCSV(rows, w); err != nil {
		return fmt.Errorf("failed to fill sheet %s: %w", name, err)
	}
	if err := wb.file.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header of sheet %s: %w", name, err)
	}
	return nil
}

// SaveAs writes the workbook to path and releases it
func (wb *Workbook) SaveAs(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if wb.sheets > 0 && !wb.usesDefault {
		if err := wb.file.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to remove default sheet: %w", err)
		}
	}
	if err := wb.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return wb.file.Close()
}
