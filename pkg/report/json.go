package report

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/hed1ad/gasguard/pkg/anomaly"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONWriter outputs a scoring run as indented JSON.
type JSONWriter struct {
	output io.Writer
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{output: output}
}

// Write encodes res.
func (w *JSONWriter) Write(res *anomaly.Result) error {
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// Marshal encodes res compactly, as served by the API.
func Marshal(res *anomaly.Result) ([]byte, error) {
	return json.Marshal(res)
}
