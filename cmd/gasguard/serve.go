package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/gasguard/pkg/anomaly"
	"github.com/hed1ad/gasguard/pkg/features"
	"github.com/hed1ad/gasguard/pkg/history"
	"github.com/hed1ad/gasguard/pkg/model"
	"github.com/hed1ad/gasguard/pkg/operational"
	"github.com/hed1ad/gasguard/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and scoring API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
}

func (a *app) serve(cmd *cobra.Command) error {
	log := logrus.WithField("component", "serve")

	loader := model.NewLoader(a.opts.Model.Path)
	classifier, err := loader.Get()
	if err != nil {
		return errors.Wrap(err, "load model")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := operational.NewMetrics(reg)

	cfg := server.Config{
		Pipeline:       anomaly.NewPipeline(classifier, features.NewScaler(a.opts.Scaler.MemoSize), metrics),
		HistoryLimit:   a.opts.History.Limit,
		MaxUploadBytes: a.opts.MaxUploadBytes(),
		Metrics:        metrics,
		Gatherer:       reg,
		Health:         operational.NewHealthHandler(loader.Ready),
	}

	if a.opts.History.Enabled {
		store, err := history.Open(a.opts.History.Dir)
		if err != nil {
			log.WithError(err).Warn("run history disabled")
		} else {
			defer store.Close()
			cfg.History = store
			log.Infof("recording runs in %s", store.Path())
		}
	}

	if logrus.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, a.opts.Addr())
}
