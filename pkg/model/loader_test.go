package model

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/gasguard/pkg/detectors/iforest"
)

func writeModel(t *testing.T) string {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	data := make([][]float64, 100)
	for i := range data {
		data[i] = []float64{rng.NormFloat64(), rng.NormFloat64()}
	}
	forest := iforest.New(iforest.WithTrees(10), iforest.WithSeed(3))
	require.NoError(t, forest.Fit(data))

	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, Save(path, forest))
	return path
}

func TestLoad(t *testing.T) {
	path := writeModel(t)

	forest, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, forest.NumFeatures())

	labels, err := forest.Predict([][]float64{{0, 0}})
	require.NoError(t, err)
	assert.Len(t, labels, 1)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, ErrModelNotFound)

	corrupt := filepath.Join(dir, "corrupt.bin")
	require.NoError(t, os.WriteFile(corrupt, []byte("pickle"), 0o600))
	_, err = Load(corrupt)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrModelNotFound)
}

func TestLoaderCaches(t *testing.T) {
	path := writeModel(t)
	l := NewLoader(path)

	assert.ErrorIs(t, l.Ready(), ErrNotLoaded)

	first, err := l.Get()
	require.NoError(t, err)
	assert.NoError(t, l.Ready())

	require.NoError(t, os.Remove(path))
	second, err := l.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, path, l.Path())
}

func TestLoaderKeepsFailure(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "missing.bin"))

	_, err := l.Get()
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.ErrorIs(t, l.Ready(), ErrModelNotFound)
}
