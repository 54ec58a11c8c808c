package afford

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campus-cli/internal/output"
)

func TestParseBudget(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "single value", input: "25000\n", want: 25000},
		{name: "label and value", input: "budget 30000\n", want: 30000},
		{name: "dollar formatted", input: "max $18,500\n", want: 18500},
		{name: "leading blank lines", input: "\n\n  20000  \n99\n", want: 20000},
		{name: "only first row used", input: "a 1000\nb 2000\n", want: 1000},
		{name: "not numeric", input: "budget lots\n", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBudget(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestFromRecords(t *testing.T) {
	rows, dropped, err := FromRecords([][]string{
		{"university", " label ", "value", "year", "error"},
		{"Reed College", "Total Expenses", "$30,000", "2024–2025", ""},
		{"Whitman College", "Average Annual Cost", "$15,000.00", "", ""},
		{"Unknown University", "", "", "", "UNIVERSITY NOT FOUND"},
		{"Quiet College", "No valid cost values found", "", "", ""},
		{"Odd College", "Tuition", "varies", "", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, dropped)
	assert.Equal(t, []Row{
		{University: "Reed College", Label: "Total Expenses", Year: "2024–2025", Amount: 30000},
		{University: "Whitman College", Label: "Average Annual Cost", Amount: 15000},
	}, rows)
}

func TestFromRecords_Errors(t *testing.T) {
	_, _, err := FromRecords(nil)
	assert.Error(t, err)

	_, _, err = FromRecords([][]string{{"university", "label"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"value"`)
}

func TestFilter(t *testing.T) {
	rows := []Row{
		{University: "A", Amount: 10000},
		{University: "B", Amount: 25000},
		{University: "C", Amount: 20000},
	}
	got := Filter(rows, 20000)
	assert.Equal(t, []Row{{University: "A", Amount: 10000}, {University: "C", Amount: 20000}}, got)
	assert.Empty(t, Filter(rows, 5000))
}

func TestLoadFilterWrite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "latest_expenses.csv")
	require.NoError(t, os.WriteFile(in, []byte(
		"university,label,value,year,error\n"+
			"Reed College,Total Expenses,\"$30,000\",2024–2025,\n"+
			"Gonzaga University,Total Expenses,\"$19,999.50\",2024–2025,\n",
	), 0o644))

	rows, dropped, err := LoadRows(in)
	require.NoError(t, err)
	assert.Zero(t, dropped)

	out := filepath.Join(dir, "affordable_universities.csv")
	require.NoError(t, Write(out, Filter(rows, 20000)))

	records, err := output.ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"university", "label", "value", "year"},
		{"Gonzaga University", "Total Expenses", "19999.5", "2024–2025"},
	}, records)
}

func TestReadBudget_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.csv")
	require.NoError(t, os.WriteFile(path, []byte("budget 22000\n"), 0o644))

	got, err := ReadBudget(path)
	require.NoError(t, err)
	assert.InDelta(t, 22000, got, 0.001)

	_, err = ReadBudget(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
