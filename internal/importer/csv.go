package importer

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// ReadCSV parses measurement records from a CSV file. The first row must
// be a header naming the region, year, and four indicator columns.
func ReadCSV(path string) ([]Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "importer: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]Record, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, eris.Wrap(err, "importer: read csv header")
	}
	pos, err := mapHeader(header)
	if err != nil {
		return nil, 0, err
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, eris.Wrap(err, "importer: read csv row")
		}
		rows = append(rows, row)
	}

	records, skipped := parseRows(rows, pos)
	return records, skipped, nil
}
