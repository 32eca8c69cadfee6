package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Cheertaboi/customer-rebates/internal/api/handlers"
	"github.com/Cheertaboi/customer-rebates/internal/api/middleware"
)

// NewRouter builds the HTTP router for the rebate-service. A nil gatherer
// serves the default Prometheus registry.
func NewRouter(svc handlers.RebateService, log zerolog.Logger, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(chimw.Recoverer)

	rebateHandler := handlers.NewRebateHandler(svc, log)

	// Public rebate endpoints
	r.Route("/rebates", func(r chi.Router) {
		r.Post("/quote", rebateHandler.Quote)
		r.Post("/applicable", rebateHandler.Applicable)
	})

	// Admin endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Post("/rebates", rebateHandler.CreateRule)
		r.Get("/rebates/{id}", rebateHandler.GetRule)
		r.Get("/groups/{groupID}/rebates", rebateHandler.ListGroupRules)
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
