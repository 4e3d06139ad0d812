package server

import (
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/hed1ad/gasguard/pkg/anomaly"
	"github.com/hed1ad/gasguard/pkg/detectors/iforest"
	"github.com/hed1ad/gasguard/pkg/features"
	"github.com/hed1ad/gasguard/pkg/history"
	"github.com/hed1ad/gasguard/pkg/io/csv"
	"github.com/hed1ad/gasguard/pkg/operational"
	"github.com/hed1ad/gasguard/pkg/report"
)

// Form field carrying the uploaded CSV.
const fileField = "file"

// Dashboard messages.
const (
	MsgNoFile       = "Please upload a CSV file."
	MsgNoNumeric    = "No numeric columns found in the data to scale."
	MsgNotAvailable = "Consumption prediction is not available yet."
)

// Tabs.
const (
	tabPresentation = "presentation"
	tabAnomalies    = "anomalies"
	tabPrediction   = "prediction"
)

var (
	errNoFile        = errors.New("no file uploaded")
	errInvalidUpload = errors.New("invalid upload")
)

type page struct {
	Tab     string
	Warning string
	Error   string
	Notice  string
	Result  *resultView
	Preview *anomaly.Table
	Runs    []history.Run
}

type resultView struct {
	FileName       string
	Rows           int
	FeatureColumns []string
	Counts         anomaly.Counts
	AnomalousRows  anomaly.Table
	BarChart       template.URL
	ScatterPlot    template.URL
}

func (s *Server) presentation(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", page{Tab: tabPresentation})
}

func (s *Server) anomalyTab(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", page{Tab: tabAnomalies, Runs: s.recentRuns(c)})
}

func (s *Server) predictionTab(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", page{Tab: tabPrediction})
}

// predictConsumption accepts an upload but performs no computation.
func (s *Server) predictConsumption(c *gin.Context) {
	p := page{Tab: tabPrediction}
	if _, err := c.FormFile(fileField); err != nil {
		p.Warning = MsgNoFile
	} else {
		p.Notice = MsgNotAvailable
	}
	c.HTML(http.StatusOK, "index.html", p)
}

func (s *Server) detectAnomalies(c *gin.Context) {
	p := page{Tab: tabAnomalies}

	res, err := s.score(c)
	switch {
	case errors.Is(err, errNoFile):
		p.Warning = MsgNoFile
	case errors.Is(err, features.ErrNoNumericColumns):
		p.Warning = MsgNoNumeric
		if res != nil {
			p.Preview = &res.Preview
		}
	case err != nil:
		p.Error = err.Error()
	default:
		p.Preview = &res.Preview
		view, err := newResultView(res)
		if err != nil {
			log.WithError(err).Error("render charts")
			p.Error = "could not render charts"
			break
		}
		p.Result = view
	}

	p.Runs = s.recentRuns(c)
	c.HTML(statusFor(err, false), "index.html", p)
}

func (s *Server) apiDetectAnomalies(c *gin.Context) {
	res, err := s.score(c)
	if err != nil {
		c.JSON(statusFor(err, true), gin.H{"error": err.Error()})
		return
	}

	body, err := report.Marshal(res)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// score reads the uploaded file and runs the pipeline, recording successful runs.
func (s *Server) score(c *gin.Context) (*anomaly.Result, error) {
	fh, err := c.FormFile(fileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.cfg.Metrics.Upload(operational.OutcomeNoFile)
			return nil, errNoFile
		}
		s.cfg.Metrics.Upload(operational.OutcomeInvalid)
		if isTooLarge(err) {
			return nil, errors.Wrap(err, "read upload")
		}
		return nil, errors.Wrap(errInvalidUpload, err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		s.cfg.Metrics.Upload(operational.OutcomeInvalid)
		return nil, errors.Wrap(errInvalidUpload, err.Error())
	}
	defer f.Close()
	reader := csv.NewReader(f, csv.WithName(fh.Filename))

	df, err := reader.Read()
	if err != nil {
		s.cfg.Metrics.Upload(operational.OutcomeInvalid)
		return nil, err
	}

	res, err := s.cfg.Pipeline.Run(reader.Name(), df)
	if err != nil {
		return res, err
	}

	if s.cfg.History != nil {
		if _, err := s.cfg.History.Record(c.Request.Context(), res); err != nil {
			log.WithError(err).WithField("run", res.RunID).Warn("record run history")
		}
	}
	return res, nil
}

func (s *Server) recentRuns(c *gin.Context) []history.Run {
	if s.cfg.History == nil || s.cfg.HistoryLimit <= 0 {
		return nil
	}
	runs, err := s.cfg.History.Recent(c.Request.Context(), s.cfg.HistoryLimit)
	if err != nil {
		log.WithError(err).Warn("list run history")
		return nil
	}
	return runs
}

// statusFor maps a scoring error to an HTTP status. The dashboard answers 200
// for the warning states it renders inline.
func statusFor(err error, api bool) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errNoFile):
		if api {
			return http.StatusBadRequest
		}
		return http.StatusOK
	case errors.Is(err, features.ErrNoNumericColumns):
		if api {
			return http.StatusUnprocessableEntity
		}
		return http.StatusOK
	case errors.Is(err, features.ErrMissingColumns),
		errors.Is(err, features.ErrMissingValue),
		errors.Is(err, features.ErrNonFiniteValue),
		errors.Is(err, iforest.ErrFeatureMismatch):
		return http.StatusUnprocessableEntity
	case isTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errInvalidUpload),
		errors.Is(err, csv.ErrMalformed),
		errors.Is(err, csv.ErrEmptyTable),
		errors.Is(err, csv.ErrTooManyRows):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func newResultView(res *anomaly.Result) (*resultView, error) {
	bar, err := report.BarChart(res.Counts)
	if err != nil {
		return nil, err
	}
	scatter, err := report.ScatterPlot(res.Points)
	if err != nil {
		return nil, err
	}
	return &resultView{
		FileName:       res.FileName,
		Rows:           res.Rows,
		FeatureColumns: res.FeatureColumns,
		Counts:         res.Counts,
		AnomalousRows:  res.AnomalousRows,
		BarChart:       svgDataURI(bar),
		ScatterPlot:    svgDataURI(scatter),
	}, nil
}

func svgDataURI(svg []byte) template.URL {
	return template.URL("data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(svg))
}
