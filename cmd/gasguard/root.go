package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/gasguard/pkg/config"
)

// app carries state shared by every subcommand.
type app struct {
	cfgFile string
	opts    config.Options
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "gasguard",
		Short: "Flag anomalous gas consumption readings",
		Long: `gasguard scores hourly gas consumption readings with a pre-trained Isolation Forest.

It serves a dashboard where a CSV export can be uploaded, exposes the same scoring
over a JSON API, and provides commands to score files and train models offline.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", fmt.Sprintf("config file (default is $HOME/%s.yaml)", config.DefaultConfigName))
	config.AddFlags(cmd.PersistentFlags(), &a.opts)

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newScoreCmd(a))
	cmd.AddCommand(newTrainCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

// init applies config file and environment values, validates them and sets up logging.
func (a *app) init(cmd *cobra.Command) error {
	if err := config.Bind(cmd.Flags(), a.cfgFile); err != nil {
		return err
	}
	if err := a.opts.Validate(); err != nil {
		return err
	}
	initLogger(a.opts.Log.Level)
	return nil
}

func initLogger(level string) {
	ll, err := logrus.ParseLevel(level)
	if err != nil {
		ll = logrus.InfoLevel
	}
	logrus.SetLevel(ll)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, PadLevelText: true, DisableQuote: true})
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
