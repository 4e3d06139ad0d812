// Package anomaly labels consumption readings as normal or anomalous with a loaded model.
package anomaly

import (
	"github.com/pkg/errors"

	"github.com/hed1ad/gasguard/pkg/detectors"
)

// Label is the per-row anomaly flag.
type Label int

const (
	// Normal marks a reading the model considers an inlier.
	Normal Label = 0
	// Anomaly marks a reading the model isolates as an outlier.
	Anomaly Label = 1
)

// String returns the display name of the label.
func (l Label) String() string {
	switch l {
	case Normal:
		return "Normal"
	case Anomaly:
		return "Anomaly"
	default:
		return "Unknown"
	}
}

// Remap converts a raw classifier output into a Label.
func Remap(raw int) (Label, error) {
	switch raw {
	case detectors.Inlier:
		return Normal, nil
	case detectors.Outlier:
		return Anomaly, nil
	default:
		return 0, errors.Errorf("unexpected raw label %d", raw)
	}
}

// Score runs the classifier over a scaled matrix and returns one Label per row.
func Score(model detectors.Classifier, scaled [][]float64) ([]Label, error) {
	raw, err := model.Predict(scaled)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	if len(raw) != len(scaled) {
		return nil, errors.Errorf("model returned %d labels for %d rows", len(raw), len(scaled))
	}

	labels := make([]Label, len(raw))
	for i, r := range raw {
		l, err := Remap(r)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		labels[i] = l
	}
	return labels, nil
}

// Counts tallies labels per category.
type Counts struct {
	Normal  int `json:"normal"`
	Anomaly int `json:"anomaly"`
}

// Total returns the number of labelled rows.
func (c Counts) Total() int {
	return c.Normal + c.Anomaly
}

// CountLabels tallies labels.
func CountLabels(labels []Label) Counts {
	var c Counts
	for _, l := range labels {
		if l == Anomaly {
			c.Anomaly++
		} else {
			c.Normal++
		}
	}
	return c
}
