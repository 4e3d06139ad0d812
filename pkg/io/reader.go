// Package io provides input/output contracts for readings and scoring reports.
package io

import (
	"github.com/go-gota/gota/dataframe"

	"github.com/hed1ad/gasguard/pkg/anomaly"
)

// TableReader is the interface for reading an uploaded table of readings.
type TableReader interface {
	// Read returns the complete table with one inferred type per column.
	Read() (dataframe.DataFrame, error)

	// Name returns the display name of the source.
	Name() string

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing scoring results.
type Writer interface {
	// Write outputs a single scoring run.
	Write(result *anomaly.Result) error
}
