// Package httpapi wires the OpenAI-compatible Responses surface (spec §6)
// onto a chi router: POST/GET/DELETE /v1/responses*, the file CRUD endpoints,
// GET /v1/models passthrough, and the ambient GET /metrics. Grounded on the
// teacher's flat main.go route table, generalized from http.HandleFunc to
// chi's route-group style (digitallysavvy-go-ai's chi-server example).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/masaic-ai/open-responses-go/internal/files"
	"github.com/masaic-ai/open-responses-go/internal/obslog"
	"github.com/masaic-ai/open-responses-go/internal/orchestrator"
	"github.com/masaic-ai/open-responses-go/internal/providerrouter"
	"github.com/masaic-ai/open-responses-go/internal/store"
	"github.com/masaic-ai/open-responses-go/internal/streaming"
	"github.com/masaic-ai/open-responses-go/internal/telemetry"
)

// Config bundles every collaborator a route handler needs.
type Config struct {
	Router            *providerrouter.Router
	NonStreaming      *orchestrator.Orchestrator
	Streaming         *streaming.Orchestrator
	Store             *store.Store
	Files             *files.Store
	Telemetry         *telemetry.Telemetry
	Structured        *obslog.StructuredLogger
	RequestTimeout    time.Duration
	UpstreamModelsURL string // not read by any handler; GET /v1/models always resolves its upstream through Router
}

// NewRouter builds the full chi.Router for the gateway, per spec §6.
func NewRouter(cfg Config) chi.Router {
	h := &handlers{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "x-model-provider"},
	}))

	r.Route("/v1/responses", func(rr chi.Router) {
		rr.Post("/", h.createResponse)
		rr.Get("/{id}", h.getResponse)
		rr.Delete("/{id}", h.deleteResponse)
		rr.Get("/{id}/input_items", h.listInputItems)
	})

	r.Route("/v1/files", func(rr chi.Router) {
		rr.Post("/", h.createFile)
		rr.Get("/", h.listFiles)
		rr.Get("/{id}", h.getFile)
		rr.Get("/{id}/content", h.getFileContent)
		rr.Delete("/{id}", h.deleteFile)
	})

	r.Get("/v1/models", h.listModels)

	if cfg.Telemetry != nil {
		r.Handle("/metrics", cfg.Telemetry.MetricsHandler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}
