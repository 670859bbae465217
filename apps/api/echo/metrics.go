package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "darasa",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests by route, method & status code.",
	}, []string{"method", "route", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "darasa",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests by route & method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// metricsMiddleware records the requests in the Prometheus default registry, labelled with their route pattern.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		if err != nil {
			ctx.Error(err) // let the error handler set the status code
		}

		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request().Method
		requestsTotal.WithLabelValues(method, route, strconv.Itoa(ctx.Response().Status)).Inc()
		requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return nil
	}
}
