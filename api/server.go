package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dnldd/moodboard/chart"
	"github.com/dnldd/moodboard/dashboard"
	"github.com/dnldd/moodboard/shared"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dashboard defines the dashboard requirements of the api.
type Dashboard interface {
	// Metrics returns the current metrics snapshot.
	Metrics() shared.Metrics
	// Cards returns the metric cards of the current snapshot.
	Cards() []dashboard.Card
	// Chart returns the chart frame for the current selection.
	Chart(ctx context.Context) *chart.Frame
	// SendRefreshSignal requests an asynchronous refresh cycle.
	SendRefreshSignal() bool
	// InFlight checks whether a refresh cycle is in flight.
	InFlight() bool
	// Select changes the displayed ticker and date range.
	Select(ctx context.Context, ticker string, dr shared.DateRange) (dashboard.Selection, error)
	// Selection returns the current selection.
	Selection() dashboard.Selection
	// State returns the current dashboard state.
	State() dashboard.State
	// Token returns the current chart invalidation token.
	Token() uint64
}

// Ensure the dashboard view implements the Dashboard interface.
var _ Dashboard = (*dashboard.View)(nil)

// ErrorResponse is the body of failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MetricsResponse is the body of metrics requests.
type MetricsResponse struct {
	Metrics shared.Metrics   `json:"metrics"`
	Cards   []dashboard.Card `json:"cards"`
}

// ChartResponse is the body of chart requests.
type ChartResponse struct {
	Key   uint64       `json:"key"`
	Frame *chart.Frame `json:"frame"`
}

// StateResponse is the body of state requests.
type StateResponse struct {
	State     dashboard.State     `json:"state"`
	InFlight  bool                `json:"inFlight"`
	Token     uint64              `json:"token"`
	Selection dashboard.Selection `json:"selection"`
}

// SelectionRequest is the body of selection requests.
type SelectionRequest struct {
	Ticker string `json:"ticker" binding:"required"`
	Start  string `json:"start" binding:"required"`
	End    string `json:"end" binding:"required"`
}

// ServerConfig represents the api server configuration.
type ServerConfig struct {
	// Dashboard represents the served dashboard.
	Dashboard Dashboard
	// Gatherer gathers the exposed instrumentation.
	Gatherer prometheus.Gatherer
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ServerConfig) Validate() error {
	var errs error

	if cfg.Dashboard == nil {
		errs = errors.Join(errs, fmt.Errorf("dashboard cannot be nil"))
	}
	if cfg.Gatherer == nil {
		errs = errors.Join(errs, fmt.Errorf("gatherer cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Server represents the dashboard api.
type Server struct {
	cfg    *ServerConfig
	router *gin.Engine
}

// NewServer initializes a new api server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	s := &Server{cfg: cfg}

	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)

	group := router.Group("/api")
	group.GET("/metrics", s.handleMetrics)
	group.GET("/chart", s.handleChart)
	group.POST("/refresh", s.handleRefresh)
	group.PUT("/selection", s.handleSelection)
	group.GET("/state", s.handleState)

	router.GET("/debug/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	s.router = router

	return s, nil
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// logRequests logs every handled request.
func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()

	s.cfg.Logger.Debug().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("latency", time.Since(start)).
		Msg("handled request")
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, MetricsResponse{
		Metrics: s.cfg.Dashboard.Metrics(),
		Cards:   s.cfg.Dashboard.Cards(),
	})
}

func (s *Server) handleChart(c *gin.Context) {
	frame := s.cfg.Dashboard.Chart(c.Request.Context())
	c.JSON(http.StatusOK, ChartResponse{
		Key:   frame.Props.Key,
		Frame: frame,
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	if !s.cfg.Dashboard.SendRefreshSignal() {
		c.JSON(http.StatusConflict, ErrorResponse{Error: dashboard.ErrRefreshInFlight.Error()})
		return
	}

	c.Status(http.StatusAccepted)
}

func (s *Server) handleSelection(c *gin.Context) {
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	start, err := shared.ParseDate(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("parsing start: %v", err)})
		return
	}
	end, err := shared.ParseDate(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("parsing end: %v", err)})
		return
	}

	sel, err := s.cfg.Dashboard.Select(c.Request.Context(), req.Ticker, shared.DateRange{Start: start, End: end})
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, sel)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, StateResponse{
		State:     s.cfg.Dashboard.State(),
		InFlight:  s.cfg.Dashboard.InFlight(),
		Token:     s.cfg.Dashboard.Token(),
		Selection: s.cfg.Dashboard.Selection(),
	})
}
