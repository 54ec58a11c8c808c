package roster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/campus-cli/internal/model"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []model.Institution
		wantErr string
	}{
		{
			name:  "basic",
			input: "university\nReed College\nUniversity of Oregon\n",
			want:  []model.Institution{{Name: "Reed College"}, {Name: "University of Oregon"}},
		},
		{
			name:  "extra columns and header case",
			input: "state, University ,rank\nOR,Reed College,1\nWA,\"Evergreen State College, The\",2\n",
			want:  []model.Institution{{Name: "Reed College"}, {Name: "Evergreen State College, The"}},
		},
		{
			name:  "blank names skipped, duplicates kept",
			input: "university\nReed College\n   \nReed College\n",
			want:  []model.Institution{{Name: "Reed College"}, {Name: "Reed College"}},
		},
		{
			name:  "short rows tolerated",
			input: "id,university\n1\n2,Whitman College\n",
			want:  []model.Institution{{Name: "Whitman College"}},
		},
		{
			name:  "byte order mark",
			input: "\ufeffuniversity\nReed College\n",
			want:  []model.Institution{{Name: "Reed College"}},
		},
		{
			name:    "missing column",
			input:   "name\nReed College\n",
			wantErr: `missing required column "university"`,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: "input is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "us_universities.csv")
	require.NoError(t, os.WriteFile(path, []byte("university\nReed College\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []model.Institution{{Name: "Reed College"}}, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestLoad_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range [][]string{{"University", "State"}, {"Reed College", "OR"}, {"", "WA"}, {"Gonzaga University", "WA"}} {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []model.Institution{{Name: "Reed College"}, {Name: "Gonzaga University"}}, got)
}

func TestColumnIndex(t *testing.T) {
	assert.Equal(t, 1, ColumnIndex([]string{"a", " UNIVERSITY "}, "university"))
	assert.Equal(t, -1, ColumnIndex([]string{"a"}, "university"))
}
