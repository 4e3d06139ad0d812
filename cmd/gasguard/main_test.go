package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/gasguard/pkg/anomaly"
	"github.com/hed1ad/gasguard/pkg/config"
	"github.com/hed1ad/gasguard/pkg/model"
)

const scenarioCSV = `clientCode,clientIndex,clientCode_encoded,delta_time,consumo_horarizado,featureA
C1,0,10,1,0.5,1
C2,1,11,2,0.6,2
C3,2,12,1.5,0.4,3
C4,3,13,2.5,0.7,4
C5,4,14,3,9.5,100
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTrainingCSV(t *testing.T, path string, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	var b strings.Builder
	b.WriteString("clientCode,clientIndex,clientCode_encoded,delta_time,consumo_horarizado,featureA\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "C%d,%d,%d,1,0.5,%g\n", i, i, i+10, rng.NormFloat64())
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

func TestRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "gasguard", cmd.Use)
	assert.NotEmpty(t, cmd.Version)

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "score", "train", "config"})

	for _, flag := range []string{"config", "model.path", "server.port", "history.enabled"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestConfigCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GASGUARD_SERVER_PORT", "9001")

	out, err := run(t, "config", "--model.path", "/srv/model.bin")
	require.NoError(t, err)

	var opts config.Options
	require.NoError(t, yaml.Unmarshal([]byte(out), &opts))
	assert.Equal(t, 9001, opts.Server.Port)
	assert.Equal(t, "/srv/model.bin", opts.Model.Path)
	assert.Equal(t, "info", opts.Log.Level)
}

func TestInvalidConfigRejected(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := run(t, "config", "--server.port", "0")
	assert.ErrorIs(t, err, config.ErrPort)
}

func TestTrainAndScore(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	training := filepath.Join(dir, "history.csv")
	readings := filepath.Join(dir, "readings.csv")
	modelPath := filepath.Join(dir, "model.bin")
	writeTrainingCSV(t, training, 500)
	require.NoError(t, os.WriteFile(readings, []byte(scenarioCSV), 0o600))

	_, err := run(t, "train", training, "--model.path", modelPath, "--trees", "50", "--seed", "7")
	require.NoError(t, err)

	forest, err := model.Load(modelPath)
	require.NoError(t, err)
	assert.Equal(t, 1, forest.NumFeatures())

	out, err := run(t, "score", readings, "--model.path", modelPath)
	require.NoError(t, err)
	assert.Contains(t, out, "# Gas consumption anomaly report")
	assert.Contains(t, out, "readings.csv")

	reportPath := filepath.Join(dir, "report.json")
	_, err = run(t, "score", readings, "--model.path", modelPath, "--format", "json", "--output", reportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var res struct {
		Rows   int   `json:"rows"`
		Labels []int `json:"labels"`
	}
	require.NoError(t, jsoniter.Unmarshal(data, &res))
	assert.Equal(t, 5, res.Rows)
	assert.Len(t, res.Labels, 5)
	for _, l := range res.Labels {
		assert.Contains(t, []int{0, 1}, l)
	}
}

func TestScoreErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	readings := filepath.Join(dir, "readings.csv")
	require.NoError(t, os.WriteFile(readings, []byte(scenarioCSV), 0o600))

	_, err := run(t, "score", readings, "--model.path", filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, model.ErrModelNotFound)

	_, err = run(t, "score", readings, "--format", "xml")
	assert.Error(t, err)
}

type failingCloser struct {
	bytes.Buffer
	closed bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("flush failed")
}

func TestWriteReportFileReportsCloseError(t *testing.T) {
	res := &anomaly.Result{RunID: "run-1", FileName: "readings.csv", Rows: 1, Counts: anomaly.Counts{Normal: 1}}

	f := &failingCloser{}
	err := writeReportFile(f, "json", res)
	assert.ErrorContains(t, err, "flush failed")
	assert.True(t, f.closed)
	assert.Contains(t, f.String(), `"run_id": "run-1"`)
}

func TestTrainValidatesFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := run(t, "train", "unused.csv", "--trees", "0")
	assert.Error(t, err)

	_, err = run(t, "train", "unused.csv", "--contamination", "0.7")
	assert.Error(t, err)
}
