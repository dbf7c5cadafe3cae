package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kienanstewart/yactfr/internal/logging"
	"github.com/kienanstewart/yactfr/internal/metrics"
)

// maybeServeMetrics starts a background HTTP server exposing sink's
// registry over /metrics when addr is non-empty. It does not block;
// the server runs for the remaining lifetime of the process.
func maybeServeMetrics(addr string, sink *metrics.Sink, logger logging.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(sink.Registry(), promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
}
