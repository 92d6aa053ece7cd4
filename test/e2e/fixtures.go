package e2e

import (
	"encoding/csv"
	"os"

	"github.com/xuri/excelize/v2"
)

// StatementHeader is the header row written by the statement fixtures.
var StatementHeader = []string{"Date", "Amount", "Description", "Category", "Merchant", "Payment Method"}

// WriteStatementCSV writes rows under StatementHeader to path.
func WriteStatementCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(StatementHeader); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteStatementXLSX writes rows under StatementHeader to the first sheet of a workbook at path.
func WriteStatementXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	all := append([][]string{StatementHeader}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func mkdir(path string) error {
	return os.MkdirAll(path, 0755)
}
