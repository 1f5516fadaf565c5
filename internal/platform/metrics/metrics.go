// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics exposes Prometheus collectors for the HTTP surface and for the
// session, entitlement and purchase workflows.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coursehub_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursehub_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursehub_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// SessionReloads counts settled session reloads by outcome
	// (authenticated, anonymous, error, discarded).
	SessionReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursehub_session_reloads_total",
			Help: "Session reloads by outcome.",
		},
		[]string{"outcome"},
	)

	// EntitlementChecks counts access decisions by source (server, pending, none).
	EntitlementChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursehub_entitlement_checks_total",
			Help: "Entitlement decisions by source.",
		},
		[]string{"source"},
	)

	// PurchaseTransitions counts purchase coordinator transitions by target state.
	PurchaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursehub_purchase_transitions_total",
			Help: "Purchase flow transitions by resulting state.",
		},
		[]string{"state"},
	)

	// UpstreamErrors counts marketplace API failures by error kind.
	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursehub_upstream_errors_total",
			Help: "Marketplace API failures by kind.",
		},
		[]string{"operation", "kind"},
	)

	registerOnce sync.Once
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			SessionReloads,
			EntitlementChecks,
			PurchaseTransitions,
			UpstreamErrors,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records RPS, latency and in-flight requests.
// The route label uses the chi pattern to keep label cardinality bounded.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		recorder := &statusWriter{ResponseWriter: writer, code: http.StatusOK}
		next.ServeHTTP(recorder, request)

		route := "unmatched"
		if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
			if pattern := routeContext.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := strconv.Itoa(recorder.code)
		httpRequestDuration.WithLabelValues(request.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(request.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (writer *statusWriter) WriteHeader(code int) {
	writer.code = code
	writer.ResponseWriter.WriteHeader(code)
}
