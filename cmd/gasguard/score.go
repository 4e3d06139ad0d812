package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hed1ad/gasguard/pkg/anomaly"
	"github.com/hed1ad/gasguard/pkg/features"
	gio "github.com/hed1ad/gasguard/pkg/io"
	"github.com/hed1ad/gasguard/pkg/io/csv"
	"github.com/hed1ad/gasguard/pkg/model"
	"github.com/hed1ad/gasguard/pkg/report"
)

type scoreOptions struct {
	format string
	output string
}

func newScoreCmd(a *app) *cobra.Command {
	so := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score <readings.csv>",
		Short: "Score a CSV file and print a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.score(cmd.OutOrStdout(), args[0], so)
		},
	}
	cmd.Flags().StringVarP(&so.format, "format", "f", "markdown", "Report format: markdown or json")
	cmd.Flags().StringVarP(&so.output, "output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}

func (a *app) score(stdout io.Writer, path string, so *scoreOptions) error {
	if so.format != "markdown" && so.format != "json" {
		return errors.Errorf("unknown format %q", so.format)
	}

	classifier, err := model.Load(a.opts.Model.Path)
	if err != nil {
		return err
	}

	var reader gio.TableReader
	reader, err = csv.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	df, err := reader.Read()
	if err != nil {
		return err
	}

	res, err := anomaly.NewPipeline(classifier, features.NewScaler(0), nil).Run(reader.Name(), df)
	if err != nil {
		return err
	}

	if so.output == "" {
		return writeReport(stdout, so.format, res)
	}

	f, err := os.Create(so.output)
	if err != nil {
		return errors.Wrap(err, "create report")
	}
	return writeReportFile(f, so.format, res)
}

// writeReportFile writes the report and closes f, reporting the close error.
func writeReportFile(f io.WriteCloser, format string, res *anomaly.Result) error {
	if err := writeReport(f, format, res); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close report")
}

func writeReport(out io.Writer, format string, res *anomaly.Result) error {
	var w gio.Writer = report.NewMarkdownWriter(out)
	if format == "json" {
		w = report.NewJSONWriter(out)
	}
	return w.Write(res)
}
