// Package csv provides CSV reading of consumption readings into typed tables.
package csv

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

var (
	// ErrEmptyTable is returned when the input has no header or no data rows.
	ErrEmptyTable = errors.New("csv has no data rows")
	// ErrTooManyRows is returned when the input exceeds the configured row limit.
	ErrTooManyRows = errors.New("csv exceeds row limit")
	// ErrMalformed is returned when the input cannot be parsed as CSV.
	ErrMalformed = errors.New("malformed csv")
)

// nanValues are the cell values parsed as missing.
var nanValues = []string{"", "NA", "NaN", "nan", "null", "<nil>"}

// Reader reads a CSV table with a header row.
type Reader struct {
	src       io.Reader
	closer    io.Closer
	name      string
	delimiter rune
	maxRows   int
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithDelimiter forces the field delimiter instead of sniffing it from the header.
func WithDelimiter(d rune) Option {
	return func(r *Reader) {
		r.delimiter = d
	}
}

// WithMaxRows rejects tables with more than n data rows; 0 means unlimited.
func WithMaxRows(n int) Option {
	return func(r *Reader) {
		r.maxRows = n
	}
}

// WithName sets the display name reported by Name.
func WithName(name string) Option {
	return func(r *Reader) {
		r.name = name
	}
}

// NewReader creates a reader over an already open stream.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{src: src, name: "upload.csv"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a reader for a file on disk.
func Open(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}

	r := NewReader(file, append([]Option{WithName(filepath.Base(filename))}, opts...)...)
	r.closer = file
	return r, nil
}

// Name returns the file name of the table source.
func (r *Reader) Name() string {
	return r.name
}

// Read parses the whole input, inferring a type per column.
func (r *Reader) Read() (dataframe.DataFrame, error) {
	data, err := io.ReadAll(r.src)
	if err != nil {
		return dataframe.DataFrame{}, errors.Wrap(err, "read csv")
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return dataframe.DataFrame{}, ErrEmptyTable
	}

	delim := r.delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.WithDelimiter(delim),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(nanValues),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, errors.Wrap(ErrMalformed, df.Err.Error())
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, ErrEmptyTable
	}
	if r.maxRows > 0 && df.Nrow() > r.maxRows {
		return dataframe.DataFrame{}, errors.Wrapf(ErrTooManyRows, "%d rows, limit %d", df.Nrow(), r.maxRows)
	}

	return df, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab in the header line.
func sniffDelimiter(data []byte) rune {
	header := string(data)
	if i := strings.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}

	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
