// Package detectors provides the model contracts used to flag anomalous readings.
package detectors

// Raw labels returned by a Classifier, following the usual outlier-detector convention.
const (
	// Inlier marks a sample the model considers normal.
	Inlier = 1
	// Outlier marks a sample the model isolates as anomalous.
	Outlier = -1
)

// Classifier is the minimal contract a loaded model must satisfy.
type Classifier interface {
	// Predict returns one raw label per row of data, either Inlier or Outlier.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Predict(data [][]float64) ([]int, error)
}

// Detector is a trainable Classifier that can be persisted.
type Detector interface {
	Classifier

	// Fit trains the detector on historical data.
	Fit(data [][]float64) error

	// ScoreSamples returns anomaly scores in [0, 1] where higher values indicate anomalies.
	ScoreSamples(data [][]float64) ([]float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Config holds training parameters for detectors.
type Config struct {
	// Trees is the number of estimators in the ensemble.
	Trees int
	// SampleSize is the subsample drawn for each estimator.
	SampleSize int
	// Contamination is the expected proportion of anomalies in training data.
	// Zero keeps the fixed default threshold.
	Contamination float64
	// RandomSeed for reproducibility.
	RandomSeed int64
}

// DefaultConfig returns sensible defaults for detector training.
func DefaultConfig() Config {
	return Config{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.1,
		RandomSeed:    42,
	}
}
