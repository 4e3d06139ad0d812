package csv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readings = `clientCode,clientIndex,clientCode_encoded,delta_time,consumo_horarizado,featureA
C001,0,10,1.5,0.2,1
C002,1,11,2.0,0.3,2
C003,2,12,1.0,0.1,3
`

func TestRead(t *testing.T) {
	r := NewReader(strings.NewReader(readings))
	df, err := r.Read()
	require.NoError(t, err)

	assert.Equal(t, 3, df.Nrow())
	assert.Equal(t, []string{"clientCode", "clientIndex", "clientCode_encoded", "delta_time", "consumo_horarizado", "featureA"}, df.Names())
	assert.Equal(t, series.String, df.Col("clientCode").Type())
	assert.Equal(t, series.Int, df.Col("featureA").Type())
	assert.Equal(t, series.Float, df.Col("delta_time").Type())
	assert.Equal(t, "upload.csv", r.Name())
}

func TestReadDelimiters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  []Option
	}{
		{name: "semicolon sniffed", input: "a;b\n1;2\n"},
		{name: "tab sniffed", input: "a\tb\n1\t2\n"},
		{name: "forced", input: "a|b\n1|2\n", opts: []Option{WithDelimiter('|')}},
		{name: "byte order mark", input: "\xef\xbb\xbfa,b\n1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df, err := NewReader(strings.NewReader(tt.input), tt.opts...).Read()
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, df.Names())
			assert.Equal(t, 1, df.Nrow())
		})
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    []Option
		wantErr error
	}{
		{name: "empty input", input: "", wantErr: ErrEmptyTable},
		{name: "blank input", input: "  \n", wantErr: ErrEmptyTable},
		{name: "row limit", input: "a\n1\n2\n3\n", opts: []Option{WithMaxRows(2)}, wantErr: ErrTooManyRows},
		{name: "ragged rows", input: "a,b\n1,2,3\n", wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tt.input), tt.opts...).Read()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMissingCellsAreNaN(t *testing.T) {
	df, err := NewReader(strings.NewReader("a,b\n1,2\n,3\n")).Read()
	require.NoError(t, err)

	col := df.Col("a")
	assert.True(t, col.Elem(1).IsNA())
	assert.False(t, col.Elem(0).IsNA())
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.csv")
	require.NoError(t, os.WriteFile(path, []byte(readings), 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "readings.csv", r.Name())
	df, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, 3, df.Nrow())

	_, err = Open(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
