// Package features turns an uploaded table of readings into a standardized feature matrix.
package features

import (
	"math"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// Column names carried by every export of readings.
const (
	ColClientCode        = "clientCode"
	ColClientIndex       = "clientIndex"
	ColClientCodeEncoded = "clientCode_encoded"
	ColDeltaTime         = "delta_time"
	ColConsumption       = "consumo_horarizado"
)

// NonFeatureColumns are identifiers and raw measurements that never feed the model.
var NonFeatureColumns = []string{
	ColClientCode,
	ColClientIndex,
	ColClientCodeEncoded,
	ColDeltaTime,
	ColConsumption,
}

var (
	// ErrMissingColumns is returned when a required non-feature column is absent.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrNoNumericColumns is returned when no numeric feature column remains after filtering.
	ErrNoNumericColumns = errors.New("no numeric feature columns")
	// ErrMissingValue is returned when a numeric feature cell is empty.
	ErrMissingValue = errors.New("missing numeric value")
	// ErrNonFiniteValue is returned when a numeric feature cell is infinite.
	ErrNonFiniteValue = errors.New("non-finite numeric value")
)

// Features is the numeric view of an uploaded table.
type Features struct {
	// Remaining lists the columns left after dropping NonFeatureColumns, in table order.
	Remaining []string
	// Columns lists the numeric columns selected from Remaining.
	Columns []string
	// Matrix holds one row per table row and one column per entry in Columns.
	Matrix [][]float64
}

// Prepare drops the non-feature columns and extracts the numeric ones.
// When no numeric column remains it returns the partial Features together with ErrNoNumericColumns.
func Prepare(df dataframe.DataFrame) (*Features, error) {
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "invalid table")
	}

	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[name] = true
	}
	var missing []string
	for _, name := range NonFeatureColumns {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrap(ErrMissingColumns, strings.Join(missing, ", "))
	}

	drop := make(map[string]bool, len(NonFeatureColumns))
	for _, name := range NonFeatureColumns {
		drop[name] = true
	}

	f := &Features{}
	types := df.Types()
	for i, name := range df.Names() {
		if drop[name] {
			continue
		}
		f.Remaining = append(f.Remaining, name)
		if isNumeric(types[i]) {
			f.Columns = append(f.Columns, name)
		}
	}
	if len(f.Columns) == 0 {
		return f, ErrNoNumericColumns
	}

	matrix, err := numericMatrix(df, f.Columns)
	if err != nil {
		return nil, err
	}
	f.Matrix = matrix
	return f, nil
}

// isNumeric reports whether a column type counts as a model feature. Booleans do not.
func isNumeric(t series.Type) bool {
	return t == series.Int || t == series.Float
}

func numericMatrix(df dataframe.DataFrame, columns []string) ([][]float64, error) {
	matrix := make([][]float64, df.Nrow())
	for i := range matrix {
		matrix[i] = make([]float64, len(columns))
	}

	for j, name := range columns {
		values := df.Col(name).Float()
		for i, v := range values {
			if math.IsNaN(v) {
				return nil, errors.Wrapf(ErrMissingValue, "column %q row %d", name, i+1)
			}
			if math.IsInf(v, 0) {
				return nil, errors.Wrapf(ErrNonFiniteValue, "column %q row %d", name, i+1)
			}
			matrix[i][j] = v
		}
	}
	return matrix, nil
}
