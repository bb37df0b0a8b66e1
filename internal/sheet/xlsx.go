package sheet

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var zipMagic = []byte("PK\x03\x04")

// IsXLSX reports whether the upload looks like an XLSX workbook, by file
// extension or by the zip signature.
func IsXLSX(name string, data []byte) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".xlsx" {
		return true
	}
	if ext == ".csv" {
		return false
	}
	return bytes.HasPrefix(data, zipMagic)
}

// Parse reads an uploaded file as XLSX or CSV and returns its rows.
func Parse(name string, data []byte) ([][]string, error) {
	if IsXLSX(name, data) {
		return ReadXLSX(data)
	}
	return ReadCSV(bytes.NewReader(data))
}

// ReadXLSX returns every row of the first sheet of a workbook.
func ReadXLSX(data []byte) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
