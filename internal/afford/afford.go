// Package afford filters extracted cost rows against a budget.
package afford

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campus-cli/internal/output"
	"github.com/sells-group/campus-cli/internal/pipeline"
	"github.com/sells-group/campus-cli/internal/roster"
)

// Columns is the header of the affordable-institutions file.
var Columns = []string{"university", "label", "value", "year"}

// Row is one cost row with a numeric amount.
type Row struct {
	University string
	Label      string
	Year       string
	Amount     float64
}

// Record renders the row for CSV output.
func (r Row) Record() []string {
	return []string{r.University, r.Label, FormatAmount(r.Amount), r.Year}
}

// FormatAmount writes an amount without grouping or exponent.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadBudget reads the budget from a file whose first row holds either the
// amount alone or a label followed by the amount.
func ReadBudget(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrap(err, "afford: open budget")
	}
	defer f.Close()
	return ParseBudget(f)
}

// ParseBudget parses budget data. Fields are whitespace separated; the
// second field is used when there is more than one.
func ParseBudget(r io.Reader) (float64, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		raw := fields[0]
		if len(fields) > 1 {
			raw = fields[1]
		}
		v, ok := pipeline.ParseAmount(raw)
		if !ok {
			return 0, eris.Errorf("afford: budget %q is not numeric", raw)
		}
		return v, nil
	}
	if err := sc.Err(); err != nil {
		return 0, eris.Wrap(err, "afford: read budget")
	}
	return 0, eris.New("afford: no data found in budget file")
}

// LoadRows reads a cost output file. Rows whose value is not numeric are
// dropped and counted.
func LoadRows(path string) ([]Row, int, error) {
	records, err := output.ReadCSV(path)
	if err != nil {
		return nil, 0, err
	}
	return FromRecords(records)
}

// FromRecords converts a header row plus data rows.
func FromRecords(records [][]string) ([]Row, int, error) {
	if len(records) == 0 {
		return nil, 0, eris.New("afford: cost file is empty")
	}

	header := records[0]
	idx := make(map[string]int, len(Columns))
	for _, col := range Columns {
		idx[col] = roster.ColumnIndex(header, col)
	}
	for _, required := range []string{"university", "value"} {
		if idx[required] < 0 {
			return nil, 0, eris.Errorf("afford: missing required column %q", required)
		}
	}

	get := func(rec []string, col string) string {
		i := idx[col]
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		rows    []Row
		dropped int
	)
	for _, rec := range records[1:] {
		v, ok := pipeline.ParseAmount(get(rec, "value"))
		if !ok {
			dropped++
			continue
		}
		rows = append(rows, Row{
			University: get(rec, "university"),
			Label:      get(rec, "label"),
			Year:       get(rec, "year"),
			Amount:     v,
		})
	}
	return rows, dropped, nil
}

// Filter keeps rows at or under budget, in input order.
func Filter(rows []Row, budget float64) []Row {
	var out []Row
	for _, r := range rows {
		if r.Amount <= budget {
			out = append(out, r)
		}
	}
	return out
}

// Write saves rows to path, replacing any existing file.
func Write(path string, rows []Row) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = r.Record()
	}
	return output.WriteCSV(path, Columns, records)
}
