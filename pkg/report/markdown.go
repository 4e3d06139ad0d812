package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/hed1ad/gasguard/pkg/anomaly"
)

// MarkdownWriter outputs a scoring run as a Markdown report.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write outputs the summary, label split and anomalous readings.
func (w *MarkdownWriter) Write(res *anomaly.Result) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("Gas consumption anomaly report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + res.RunID + "`"},
			{"File", res.FileName},
			{"Readings", strconv.Itoa(res.Rows)},
			{"Feature columns", strings.Join(res.FeatureColumns, ", ")},
			{"Anomalies", strconv.Itoa(res.Counts.Anomaly)},
			{"Normal readings", strconv.Itoa(res.Counts.Normal)},
		},
	})
	md.PlainText("")

	if res.Counts.Total() > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Normal vs anomalous readings"),
			piechart.WithShowData(true),
		)
		chart.LabelAndIntValue(anomaly.Normal.String(), uint64(res.Counts.Normal))
		chart.LabelAndIntValue(anomaly.Anomaly.String(), uint64(res.Counts.Anomaly))
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	md.H2("Installations with anomalous readings")
	md.PlainText("")
	if len(res.AnomalousRows.Rows) == 0 {
		md.Tip("No anomalous readings detected.")
	} else {
		md.Warningf("%d anomalous reading(s) detected.", res.Counts.Anomaly)
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: res.AnomalousRows.Columns,
			Rows:   res.AnomalousRows.Rows,
		})
	}

	return md.Build()
}
