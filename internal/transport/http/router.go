// Package httptransport assembles the HTTP surface: middleware stack,
// health and metrics endpoints, and the verification routes. Business logic
// lives in the domain services; nothing here inspects request payloads.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idverify/internal/platform/health"
	"idverify/internal/platform/middleware"
	"idverify/internal/verification/handler"
)

// NewRouter wires all public endpoints with middleware.
func NewRouter(verification *handler.Handler, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	verification.Register(r)

	return r
}
