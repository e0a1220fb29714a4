package clinical

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// titleRows precede the header row, as in the published spreadsheets.
var titleRows = [][]string{
	{"Clinical data"},
	{"", "", "", "", "Refractive error"},
}

var headerRow = []string{
	"ID", "Age", "Gender", "Diagnosis", "dioptre_1", "dioptre_2", "astigmatism",
	"Phakic/Pseudophakic", "Pneumatic", "Perkins", "Pachymetry", "Axial_Length", "VF_MD",
}

func dataRow(id, age, diagnosis string) []string {
	return []string{id, age, "1", diagnosis, "-1.25", "-0.5", "0.75", "0", "14", "15", "540", "23.5", "-1.2"}
}

func sheet(data ...[]string) [][]string {
	rows := append([][]string{}, titleRows...)
	rows = append(rows, headerRow)
	return append(rows, data...)
}

// writeWorkbook saves rows to the first sheet of a new .xlsx file.
func writeWorkbook(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	name := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs %s: %v", filepath.Base(path), err)
	}
}
