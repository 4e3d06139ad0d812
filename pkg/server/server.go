// Package server serves the consumption dashboard and the scoring API.
package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hed1ad/gasguard/pkg/anomaly"
	"github.com/hed1ad/gasguard/pkg/history"
	"github.com/hed1ad/gasguard/pkg/operational"
)

//go:embed templates/*.html
var templateFS embed.FS

var log = logrus.WithField("component", "server")

const shutdownTimeout = 5 * time.Second

// RunStore records scoring runs and lists recent ones.
type RunStore interface {
	Record(ctx context.Context, res *anomaly.Result) (*history.Run, error)
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Config wires the server to its collaborators.
type Config struct {
	Pipeline *anomaly.Pipeline
	// History may be nil to disable run history.
	History      RunStore
	HistoryLimit int
	// MaxUploadBytes bounds request bodies on upload routes.
	MaxUploadBytes int64
	Metrics        *operational.Metrics
	Gatherer       prometheus.Gatherer
	Health         healthcheck.Handler
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	router *gin.Engine
}

// New builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}

	s := &Server{cfg: cfg}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.SetHTMLTemplate(tmpl)
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	r.GET("/", s.presentation)
	r.GET("/anomalies", s.anomalyTab)
	r.POST("/anomalies", s.limitBody(), s.detectAnomalies)
	r.GET("/prediction", s.predictionTab)
	r.POST("/prediction", s.limitBody(), s.predictConsumption)

	api := r.Group("/api/v1")
	api.POST("/anomalies", s.limitBody(), s.apiDetectAnomalies)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	if cfg.Health != nil {
		r.GET("/live", gin.WrapH(cfg.Health))
		r.GET("/ready", gin.WrapH(cfg.Health))
	}

	s.router = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.MaxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Debug("request")
	}
}
