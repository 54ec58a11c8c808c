package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campus-cli/internal/model"
)

var costColumns = []string{"university", "label", "value", "year", "error"}

func TestCSVWriter_HeaderOnceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.csv")

	w, err := OpenCSV(path, costColumns)
	require.NoError(t, err)
	require.NoError(t, w.WriteRows([]model.ResultRow{
		{University: "Reed College", Label: "Tuition", Value: "$12,000", Year: "2024–2025"},
	}))
	assert.Equal(t, 1, w.Rows())
	require.NoError(t, w.Close())

	w, err = OpenCSV(path, costColumns)
	require.NoError(t, err)
	require.NoError(t, w.WriteRows([]model.ResultRow{
		{University: "Unknown University", Error: "UNIVERSITY NOT FOUND"},
	}))
	require.NoError(t, w.Close())

	records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		costColumns,
		{"Reed College", "Tuition", "$12,000", "2024–2025", ""},
		{"Unknown University", "", "", "", "UNIVERSITY NOT FOUND"},
	}, records)
}

func TestCSVWriter_FlushesEachBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "majors.csv")
	w, err := OpenCSV(path, []string{"university", "major", "error"})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteRows([]model.ResultRow{{University: "Reed College", Label: "Biology"}}))

	// Readable before Close.
	records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"university", "major", "error"},
		{"Reed College", "Biology", ""},
	}, records)
}

func TestCSVWriter_QuotesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := OpenCSV(path, []string{"university", "error"})
	require.NoError(t, err)
	require.NoError(t, w.WriteRows([]model.ResultRow{
		{University: "Evergreen State College, The", Error: "TOTAL ERROR after 2 attempts: \"quoted\""},
	}))
	require.NoError(t, w.Close())

	records, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Evergreen State College, The", records[1][0])
	assert.Equal(t, "TOTAL ERROR after 2 attempts: \"quoted\"", records[1][1])
}

func TestCSVWriter_CloseIdempotent(t *testing.T) {
	w, err := OpenCSV(filepath.Join(t.TempDir(), "out.csv"), costColumns)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestOpenCSV_Errors(t *testing.T) {
	_, err := OpenCSV(filepath.Join(t.TempDir(), "out.csv"), nil)
	assert.Error(t, err)

	_, err = OpenCSV(filepath.Join(t.TempDir(), "missing", "out.csv"), costColumns)
	assert.Error(t, err)
}

func TestWriteCSV_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "affordable.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	require.NoError(t, WriteCSV(path, []string{"university", "value"}, [][]string{{"Reed College", "$9,000"}}))

	records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"university", "value"}, {"Reed College", "$9,000"}}, records)
}
