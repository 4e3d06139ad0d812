// Package model loads the pre-trained anomaly model once per process.
package model

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hed1ad/gasguard/pkg/detectors"
	"github.com/hed1ad/gasguard/pkg/detectors/iforest"
)

var (
	// ErrModelNotFound is returned when the model file does not exist.
	ErrModelNotFound = errors.New("model file not found")
	// ErrNotLoaded is reported by Loader.Ready before the first load.
	ErrNotLoaded = errors.New("model not loaded")
)

var log = logrus.WithField("component", "model.Loader")

// Load reads and deserializes the forest stored at path.
func Load(path string) (*iforest.IsolationForest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrModelNotFound, path)
		}
		return nil, errors.Wrapf(err, "read model %s", path)
	}

	forest := iforest.New()
	if err := forest.Load(data); err != nil {
		return nil, errors.Wrapf(err, "load model %s", path)
	}

	log.Infof("loaded model %s: %d features, threshold %.4f", path, forest.NumFeatures(), forest.Threshold())
	return forest, nil
}

// Save writes a trained detector to path.
func Save(path string, d detectors.Detector) error {
	data, err := d.Save()
	if err != nil {
		return errors.Wrap(err, "serialize model")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write model %s", path)
	}
	return nil
}

// Loader caches the first load result for the lifetime of the process.
type Loader struct {
	path string

	mu    sync.Mutex
	done  bool
	model detectors.Classifier
	err   error
}

// NewLoader creates a Loader for path. Nothing is read until Get is called.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Get returns the cached model, loading it on first use. A failed load is not retried.
func (l *Loader) Get() (detectors.Classifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.done {
		l.model, l.err = Load(l.path)
		l.done = true
	}
	return l.model, l.err
}

// Ready reports whether a model is available without triggering a load.
func (l *Loader) Ready() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.done {
		return ErrNotLoaded
	}
	return l.err
}

// Path returns the model file path.
func (l *Loader) Path() string {
	return l.path
}
