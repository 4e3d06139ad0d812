package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/gasguard/pkg/anomaly"
)

func sampleResult() *anomaly.Result {
	return &anomaly.Result{
		RunID:          "run-1",
		FileName:       "readings.csv",
		Rows:           3,
		FeatureColumns: []string{"featureA", "featureB"},
		Labels:         []anomaly.Label{anomaly.Normal, anomaly.Anomaly, anomaly.Normal},
		Counts:         anomaly.Counts{Normal: 2, Anomaly: 1},
		AnomalousRows: anomaly.Table{
			Columns: anomaly.AnomalyColumns,
			Rows:    [][]string{{"C2", "11", "1", "2", "9.5", "1"}},
		},
		Points: []anomaly.Point{
			{DeltaTime: 1, Consumption: 0.5, Label: anomaly.Normal},
			{DeltaTime: 2, Consumption: 9.5, Label: anomaly.Anomaly},
			{DeltaTime: 1.5, Consumption: 0.4, Label: anomaly.Normal},
		},
	}
}

func TestBarChart(t *testing.T) {
	tests := []struct {
		name   string
		counts anomaly.Counts
	}{
		{name: "both labels", counts: anomaly.Counts{Normal: 4, Anomaly: 1}},
		{name: "no anomalies", counts: anomaly.Counts{Normal: 3}},
		{name: "empty", counts: anomaly.Counts{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svg, err := BarChart(tt.counts)
			require.NoError(t, err)
			assert.Contains(t, string(svg), "<svg")
			assert.Contains(t, string(svg), "Anomaly")
		})
	}
}

func TestScatterPlot(t *testing.T) {
	svg, err := ScatterPlot(sampleResult().Points)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
	assert.Contains(t, string(svg), "Anomalies vs Delta Time")

	svg, err = ScatterPlot(nil)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}

func TestLabelColor(t *testing.T) {
	assert.NotEqual(t, LabelColor(anomaly.Normal), LabelColor(anomaly.Anomaly))
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).Write(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "# Gas consumption anomaly report")
	assert.Contains(t, out, "readings.csv")
	assert.Contains(t, out, "featureA, featureB")
	assert.Contains(t, out, "```mermaid")
	assert.Contains(t, out, "consumo_horarizado")
	assert.Contains(t, out, "9.5")
}

func TestMarkdownWriterWithoutAnomalies(t *testing.T) {
	res := sampleResult()
	res.Counts = anomaly.Counts{Normal: 3}
	res.AnomalousRows.Rows = nil

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).Write(res))
	assert.Contains(t, buf.String(), "No anomalous readings detected.")
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).Write(sampleResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, []any{0.0, 1.0, 0.0}, decoded["labels"])
	assert.Equal(t, map[string]any{"normal": 2.0, "anomaly": 1.0}, decoded["counts"])
	assert.NotContains(t, decoded, "Points")
	assert.True(t, strings.HasPrefix(buf.String(), "{\n"))

	compact, err := Marshal(sampleResult())
	require.NoError(t, err)
	assert.NotContains(t, string(compact), "\n")
}
