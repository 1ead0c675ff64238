// Package api serves scheduling decisions over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/g-uva/kube-carbon-scheduler/pkg/core"
	"github.com/g-uva/kube-carbon-scheduler/pkg/metrics"
)

// Decider is the part of the engine the API needs.
type Decider interface {
	Decide(ctx context.Context, workload, region string, crit core.Criticality) core.SchedulingDecision
	Fairness(ctx context.Context) (map[string]int64, error)
}

// Handler is the HTTP adapter for the decision engine.
type Handler struct {
	engine Decider
	log    zerolog.Logger
	// MaxBatch caps the size of one batch request.
	MaxBatch int
}

func NewHandler(engine Decider, log zerolog.Logger) *Handler {
	return &Handler{engine: engine, log: log, MaxBatch: 500}
}

// NewRouter registers the API routes and middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/decisions", h.decide)
		r.Post("/decisions/batch", h.decideBatch)
		r.Get("/fairness", h.fairness)
	})
	return r
}
