package importer

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX parses measurement records from the first sheet of an XLSX
// workbook. The first row must be the header.
func ReadXLSX(path string) ([]Record, int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "importer: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, 0, eris.Errorf("importer: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, 0, eris.Errorf("importer: sheet %q is empty", sheet.Name)
	}

	pos, err := mapHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, 0, err
	}

	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, rowToStrings(row))
	}

	records, skipped := parseRows(rows, pos)
	return records, skipped, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
