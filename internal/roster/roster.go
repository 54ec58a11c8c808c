// Package roster loads the list of institutions to process.
package roster

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/campus-cli/internal/model"
)

// Column is the required input column, matched case-insensitively.
const Column = "university"

// Load reads institutions from a CSV or XLSX file (by extension). The whole
// file is read before returning.
func Load(path string) ([]model.Institution, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		return FromRows(rows)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "roster: open csv")
		}
		defer f.Close()
		return ReadCSV(f)
	}
}

// ReadCSV reads institutions from CSV data with a header row.
func ReadCSV(r io.Reader) ([]model.Institution, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "roster: read csv")
	}
	return FromRows(records)
}

// FromRows converts a header row plus data rows. Blank names are skipped;
// duplicates are kept, so every input row is processed.
func FromRows(rows [][]string) ([]model.Institution, error) {
	if len(rows) == 0 {
		return nil, eris.New("roster: input is empty")
	}

	idx := ColumnIndex(rows[0], Column)
	if idx < 0 {
		return nil, eris.Errorf("roster: missing required column %q", Column)
	}

	var out []model.Institution
	for _, row := range rows[1:] {
		if idx >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[idx])
		if name == "" {
			continue
		}
		out = append(out, model.Institution{Name: name})
	}
	return out, nil
}

// ColumnIndex finds a header column by trimmed, case-insensitive name.
func ColumnIndex(header []string, name string) int {
	for i, col := range header {
		col = strings.TrimPrefix(col, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i
		}
	}
	return -1
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("roster: xlsx has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
