// Package dashboard 犯罪统计看板: 基于内存数据提供页面, JSON接口, PNG图表和XLSX导出
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ObservatoireDelinquance/src/storage"
)

type serverMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	reloads  *prometheus.CounterVec
	records  prometheus.Gauge
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observatoire_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "observatoire_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observatoire_data_reloads_total",
			Help: "Data reloads by result.",
		}, []string{"result"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "observatoire_records",
			Help: "Consolidated rows currently served.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.reloads, m.records)
	return m
}

// Server 把 Store 挂到 echo 上
type Server struct {
	e       *echo.Echo
	store   *Store
	logger  *storage.Logger
	metrics *serverMetrics
}

func NewServer(store *Store, logger *storage.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s := &Server{e: e, store: store, logger: logger, metrics: newServerMetrics(reg)}
	if snap := store.Snapshot(); snap != nil {
		s.metrics.records.Set(float64(len(snap.Records)))
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if logger != nil {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{Output: logger}))
	}
	e.Use(middleware.Recover())
	e.Use(s.instrument)

	pages, err := NewPages(store)
	if err != nil {
		return nil, err
	}
	pages.Register(e)

	g := e.Group("/api/v1")
	NewAPI(store).Register(g)
	NewCharts(store).Register(g)
	NewExport(store).Register(g)

	logs := NewLogStream(logger)
	logs.Register(g)
	e.GET("/logs", logs.Stream)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return s, nil
}

func (s *Server) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
		s.metrics.duration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Reload 刷新数据并记录结果
func (s *Server) Reload(ctx context.Context) error {
	if err := s.store.Reload(ctx); err != nil {
		s.metrics.reloads.WithLabelValues("error").Inc()
		return err
	}
	s.metrics.reloads.WithLabelValues("ok").Inc()
	if snap := s.store.Snapshot(); snap != nil {
		s.metrics.records.Set(float64(len(snap.Records)))
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// Start 阻塞直到服务停止; http.ErrServerClosed 不算错误
func (s *Server) Start(addr string) error {
	s.logger.Info("dashboard en écoute sur " + addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
