package anomaly

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hed1ad/gasguard/pkg/detectors"
	"github.com/hed1ad/gasguard/pkg/features"
	"github.com/hed1ad/gasguard/pkg/operational"
)

// LabelColumn is the column added to the in-memory table.
const LabelColumn = "anomaly"

// PreviewRows is the number of filtered rows shown before results.
const PreviewRows = 3

// AnomalyColumns are the columns listed for anomalous readings.
var AnomalyColumns = []string{
	features.ColClientCode,
	features.ColClientCodeEncoded,
	features.ColClientIndex,
	features.ColDeltaTime,
	features.ColConsumption,
	LabelColumn,
}

var plog = logrus.WithField("component", "anomaly.Pipeline")

// Table is a rendered slice of a table.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Point is one reading on the delta-time / consumption plane.
type Point struct {
	DeltaTime   float64 `json:"delta_time"`
	Consumption float64 `json:"consumption"`
	Label       Label   `json:"label"`
}

// Result is the outcome of one scoring run.
type Result struct {
	RunID          string        `json:"run_id"`
	FileName       string        `json:"file_name"`
	Rows           int           `json:"rows"`
	FeatureColumns []string      `json:"feature_columns"`
	Preview        Table         `json:"-"`
	Labels         []Label       `json:"labels"`
	Counts         Counts        `json:"counts"`
	AnomalousRows  Table         `json:"anomalous_rows"`
	Points         []Point       `json:"-"`
	Elapsed        time.Duration `json:"-"`

	// Labeled is the uploaded table with LabelColumn appended.
	Labeled dataframe.DataFrame `json:"-"`
}

// Pipeline prepares, scales and scores uploaded tables with one model.
type Pipeline struct {
	model   detectors.Classifier
	scaler  *features.Scaler
	metrics *operational.Metrics
}

// NewPipeline creates a pipeline. metrics may be nil.
func NewPipeline(model detectors.Classifier, scaler *features.Scaler, metrics *operational.Metrics) *Pipeline {
	if scaler == nil {
		scaler = features.NewScaler(0)
	}
	return &Pipeline{model: model, scaler: scaler, metrics: metrics}
}

// Run scores df. On features.ErrNoNumericColumns the partial Result carrying the
// preview is returned alongside the error; no scoring happens in that case.
func (p *Pipeline) Run(name string, df dataframe.DataFrame) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:    uuid.NewString(),
		FileName: name,
		Rows:     df.Nrow(),
	}
	log := plog.WithFields(logrus.Fields{"run": res.RunID, "file": name})

	feats, err := features.Prepare(df)
	if err != nil {
		if errors.Is(err, features.ErrNoNumericColumns) {
			res.Preview = preview(df, feats.Remaining)
			log.Warn("no numeric feature columns, skipping scoring")
			p.metrics.Upload(operational.OutcomeNoNumeric)
			return res, err
		}
		p.metrics.Upload(operational.OutcomeInvalid)
		return nil, err
	}
	res.FeatureColumns = feats.Columns
	res.Preview = preview(df, feats.Remaining)
	log.Debugf("selected %d feature columns: %v", len(feats.Columns), feats.Columns)

	scaled, err := p.scaler.Transform(feats.Matrix)
	if err != nil {
		p.metrics.Upload(operational.OutcomeFailed)
		return nil, errors.Wrap(err, "scale features")
	}

	labels, err := Score(p.model, scaled)
	if err != nil {
		p.metrics.Upload(operational.OutcomeFailed)
		return nil, errors.Wrap(err, "score readings")
	}

	res.Labels = labels
	res.Counts = CountLabels(labels)
	res.Labeled = df.Mutate(series.New(labelInts(labels), series.Int, LabelColumn))
	if res.Labeled.Err != nil {
		p.metrics.Upload(operational.OutcomeFailed)
		return nil, errors.Wrap(res.Labeled.Err, "add label column")
	}
	res.AnomalousRows = anomalousRows(res.Labeled, labels)
	res.Points = points(df, labels)
	res.Elapsed = time.Since(start)

	p.metrics.Upload(operational.OutcomeScored)
	p.metrics.ObserveRun(res.Rows, res.Counts.Anomaly, res.Elapsed)
	log.Infof("scored %d rows: %d anomalies, %d normal in %s", res.Rows, res.Counts.Anomaly, res.Counts.Normal, res.Elapsed)

	return res, nil
}

func labelInts(labels []Label) []int {
	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = int(l)
	}
	return out
}

// preview renders the first PreviewRows rows restricted to columns.
func preview(df dataframe.DataFrame, columns []string) Table {
	t := Table{Columns: columns}
	if len(columns) == 0 {
		return t
	}

	cols := make([]series.Series, len(columns))
	for j, name := range columns {
		cols[j] = df.Col(name)
	}

	n := df.Nrow()
	if n > PreviewRows {
		n = PreviewRows
	}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, rowCells(cols, i))
	}
	return t
}

// anomalousRows lists the distinct anomalous readings restricted to AnomalyColumns.
func anomalousRows(labeled dataframe.DataFrame, labels []Label) Table {
	t := Table{Columns: AnomalyColumns}

	cols := make([]series.Series, len(AnomalyColumns))
	for j, name := range AnomalyColumns {
		cols[j] = labeled.Col(name)
	}

	seen := make(map[string]bool)
	for i, l := range labels {
		if l != Anomaly {
			continue
		}
		row := rowCells(cols, i)
		key := strings.Join(row, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		t.Rows = append(t.Rows, row)
	}
	return t
}

// points collects the scatter coordinates, skipping readings without numeric values.
func points(df dataframe.DataFrame, labels []Label) []Point {
	xs := df.Col(features.ColDeltaTime).Float()
	ys := df.Col(features.ColConsumption).Float()

	out := make([]Point, 0, len(labels))
	for i, l := range labels {
		if !finite(xs[i]) || !finite(ys[i]) {
			continue
		}
		out = append(out, Point{DeltaTime: xs[i], Consumption: ys[i], Label: l})
	}
	return out
}

func rowCells(cols []series.Series, i int) []string {
	row := make([]string, len(cols))
	for j, s := range cols {
		row[j] = cell(s, i)
	}
	return row
}

// cell formats one value; floats use the shortest exact representation.
func cell(s series.Series, i int) string {
	e := s.Elem(i)
	if e.IsNA() {
		return ""
	}
	if s.Type() == series.Float {
		return strconv.FormatFloat(e.Float(), 'g', -1, 64)
	}
	return e.String()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
