package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/gasguard/pkg/anomaly"
)

func setupStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	s, err := Open(filepath.Join(t.TempDir(), "nested", "dir"), WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

func result(id string, rows, anomalies int) *anomaly.Result {
	return &anomaly.Result{
		RunID:          id,
		FileName:       id + ".csv",
		Rows:           rows,
		FeatureColumns: []string{"featureA", "featureB"},
		Counts:         anomaly.Counts{Normal: rows - anomalies, Anomaly: anomalies},
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	s, _ := setupStore(t)

	_, err := os.Stat(s.Path())
	assert.NoError(t, err)
	assert.Equal(t, FileName, filepath.Base(s.Path()))
}

func TestRecordAndRecent(t *testing.T) {
	s, mock := setupStore(t)
	ctx := context.Background()

	first, err := s.Record(ctx, result("a", 10, 2))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), first.CreatedAt)

	mock.Add(time.Minute)
	_, err = s.Record(ctx, result("b", 5, 0))
	require.NoError(t, err)

	mock.Add(time.Minute)
	_, err = s.Record(ctx, result("c", 7, 1))
	require.NoError(t, err)

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "c.csv", runs[0].FileName)
	assert.Equal(t, 7, runs[0].Rows)
	assert.Equal(t, 1, runs[0].Anomalies)
	assert.Equal(t, []string{"featureA", "featureB"}, runs[0].FeatureColumns)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 2, 0, 0, time.UTC), runs[0].CreatedAt)
}

func TestRecordDuplicateID(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, result("a", 1, 0))
	require.NoError(t, err)
	_, err = s.Record(ctx, result("a", 1, 0))
	assert.Error(t, err)
}

func TestRecentEmpty(t *testing.T) {
	s, _ := setupStore(t)

	runs, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestReopenKeepsRuns(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), result("a", 3, 1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)
}
