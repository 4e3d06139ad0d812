package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/gasguard/pkg/detectors"
	"github.com/hed1ad/gasguard/pkg/detectors/iforest"
	"github.com/hed1ad/gasguard/pkg/features"
	"github.com/hed1ad/gasguard/pkg/io/csv"
	"github.com/hed1ad/gasguard/pkg/model"
)

type trainOptions struct {
	detectors.Config
	output string
}

func newTrainCmd(a *app) *cobra.Command {
	to := &trainOptions{Config: detectors.DefaultConfig()}
	cmd := &cobra.Command{
		Use:   "train <history.csv>",
		Short: "Train a model from historical readings",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.train(args[0], to)
		},
	}
	cmd.Flags().IntVar(&to.Trees, "trees", to.Trees, "Number of trees")
	cmd.Flags().IntVar(&to.SampleSize, "sample-size", to.SampleSize, "Readings drawn per tree")
	cmd.Flags().Float64Var(&to.Contamination, "contamination", to.Contamination, "Expected share of anomalies, 0 keeps the fixed threshold")
	cmd.Flags().Int64Var(&to.RandomSeed, "seed", to.RandomSeed, "Random seed")
	cmd.Flags().StringVarP(&to.output, "output", "o", "", "Model file (default is model.path)")
	return cmd
}

func (a *app) train(path string, to *trainOptions) error {
	log := logrus.WithField("component", "train")

	if to.Trees <= 0 || to.SampleSize <= 0 {
		return errors.New("trees and sample-size must be positive")
	}
	if to.Contamination < 0 || to.Contamination >= 0.5 {
		return errors.New("contamination must be in [0, 0.5)")
	}

	reader, err := csv.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	df, err := reader.Read()
	if err != nil {
		return err
	}
	feats, err := features.Prepare(df)
	if err != nil {
		return err
	}
	scaled, err := features.Standardize(feats.Matrix)
	if err != nil {
		return err
	}

	forest := iforest.New(iforest.FromConfig(to.Config)...)
	if err := forest.Fit(scaled); err != nil {
		return errors.Wrap(err, "fit forest")
	}

	output := to.output
	if output == "" {
		output = a.opts.Model.Path
	}
	if err := model.Save(output, forest); err != nil {
		return err
	}

	log.Infof("trained %d trees on %d readings with features %v, saved to %s",
		to.Trees, len(scaled), feats.Columns, output)
	return nil
}
