// Package metrics exposes Prometheus instrumentation for the HTTP API and
// the recipe domain events worth graphing.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Toggles         *prometheus.CounterVec
	RecipesWritten  *prometheus.CounterVec
	ShoppingLines   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "endpoint"},
		),
		Toggles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipe_membership_toggles_total",
				Help: "Favorite and shopping cart add/remove calls by outcome",
			},
			[]string{"kind", "op", "result"},
		),
		RecipesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipes_written_total",
				Help: "Recipe create/update/delete calls by outcome",
			},
			[]string{"op", "result"},
		),
		ShoppingLines: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shopping_list_lines",
				Help:    "Number of lines in exported shopping lists",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
	}
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.Toggles,
		m.RecipesWritten,
		m.ShoppingLines,
		collectors.NewGoCollector(),
	)
	return m
}

// Middleware records request counts and latency keyed by route pattern.
func (m *Metrics) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		endpoint := c.Path()
		m.RequestsTotal.WithLabelValues(c.Request().Method, endpoint, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(c.Request().Method, endpoint).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
