// Package output writes result rows to CSV files.
package output

import (
	"encoding/csv"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-cli/internal/model"
)

// CSVWriter appends result rows to a CSV file. The header is written only
// when the file is empty, so an interrupted batch can resume into the same
// file. Rows are flushed after every WriteRows call.
type CSVWriter struct {
	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	columns []string
	rows    int
}

// OpenCSV opens path for appending, creating it if needed.
func OpenCSV(path string, columns []string) (*CSVWriter, error) {
	if len(columns) == 0 {
		return nil, eris.New("output: no columns")
	}

	existing, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	if existing != nil && !slices.Equal(existing, columns) {
		zap.L().Warn("output: existing header differs",
			zap.String("path", path),
			zap.Strings("existing", existing),
			zap.Strings("columns", columns),
		)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "output: open %s", path)
	}

	cw := &CSVWriter{f: f, w: csv.NewWriter(f), columns: columns}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "output: stat")
	}
	if info.Size() == 0 {
		if err := cw.w.Write(columns); err != nil {
			_ = f.Close()
			return nil, eris.Wrap(err, "output: write header")
		}
		if err := cw.flush(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return cw, nil
}

// WriteRows appends rows and flushes them to the file.
func (c *CSVWriter) WriteRows(rows []model.ResultRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := make([]string, len(c.columns))
	for _, row := range rows {
		for i, col := range c.columns {
			record[i] = row.Field(col)
		}
		if err := c.w.Write(record); err != nil {
			return eris.Wrap(err, "output: write row")
		}
	}
	if err := c.flush(); err != nil {
		return err
	}
	c.rows += len(rows)
	return nil
}

// Rows returns the number of data rows written through this writer.
func (c *CSVWriter) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// Close flushes and closes the file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return nil
	}
	flushErr := c.flush()
	closeErr := c.f.Close()
	c.f = nil
	if flushErr != nil {
		return flushErr
	}
	return eris.Wrap(closeErr, "output: close")
}

func (c *CSVWriter) flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return eris.Wrap(err, "output: flush")
	}
	return nil
}

// WriteCSV overwrites path with a header and rows.
func WriteCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "output: write header")
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "output: write rows")
	}
	return eris.Wrap(f.Close(), "output: close")
}

// ReadCSV reads every record of a CSV file, header included.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "output: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "output: read csv")
	}
	return records, nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "output: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "output: read header")
	}
	return header, nil
}
