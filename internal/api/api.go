// Package api exposes the catalog, ranking and submission operations over
// HTTP. Handlers stay thin: decode, call the service, map the error kind
// to a status code.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/rankboard/internal/approval"
	"github.com/sells-group/rankboard/internal/cache"
	"github.com/sells-group/rankboard/internal/export"
	"github.com/sells-group/rankboard/internal/registry"
	"github.com/sells-group/rankboard/internal/stats"
	"github.com/sells-group/rankboard/internal/store"
	"github.com/sells-group/rankboard/internal/syncer"
)

// Server bundles the services the handlers dispatch to.
type Server struct {
	store    store.Store
	registry *registry.Registry
	pipeline *approval.Pipeline
	syncer   *syncer.Syncer
	stats    *stats.Collector
	exporter *export.Exporter
	cache    *cache.SnapshotCache
}

// Options configures optional server behavior.
type Options struct {
	// SubmissionRate limits POST /api/submissions per client IP.
	// Zero disables the limit.
	SubmissionRate  float64
	SubmissionBurst int
	AllowedOrigins  []string
}

func NewServer(st store.Store, reg *registry.Registry, pipe *approval.Pipeline, sync *syncer.Syncer, collector *stats.Collector, exporter *export.Exporter, snapCache *cache.SnapshotCache) *Server {
	return &Server{
		store:    st,
		registry: reg,
		pipeline: pipe,
		syncer:   sync,
		stats:    collector,
		exporter: exporter,
		cache:    snapCache,
	}
}

// Router builds the HTTP routing tree.
func (s *Server) Router(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/apps", func(r chi.Router) {
			r.Get("/", s.handleListApps)
			r.Post("/", s.handleCreateApp)
			r.Get("/{id}", s.handleGetApp)
			r.Put("/{id}", s.handleUpdateApp)
			r.Get("/{id}/participations", s.handleListAppParticipations)
			r.Put("/{id}/participations/{config}", s.handleEnroll)
			r.Delete("/{id}/participations/{config}", s.handleUnenroll)
		})

		r.Route("/dimensions", func(r chi.Router) {
			r.Get("/", s.handleListDimensions)
			r.Post("/", s.handleCreateDimension)
			r.Put("/{id}", s.handleUpdateDimension)
			r.Delete("/{id}", s.handleDeleteDimension)
			r.Get("/{id}/logs", s.handleDimensionLogs)
		})

		r.Route("/ranking-configs", func(r chi.Router) {
			r.Get("/", s.handleListConfigs)
			r.Post("/", s.handleCreateConfig)
			r.Get("/{id}", s.handleGetConfig)
			r.Put("/{id}", s.handleUpdateConfig)
			r.Delete("/{id}", s.handleDeleteConfig)
		})

		r.Route("/rankings", func(r chi.Router) {
			r.Get("/{config}", s.handleGetRanking)
			r.Get("/{config}/dates", s.handleRankingDates)
			r.Get("/{config}/export", s.handleExportRanking)
		})

		r.Route("/submissions", func(r chi.Router) {
			create := chi.Chain()
			if opts.SubmissionRate > 0 {
				create = chi.Chain(rateLimit(opts.SubmissionRate, opts.SubmissionBurst))
			}
			r.With(create...).Post("/", s.handleCreateSubmission)
			r.Get("/", s.handleListSubmissions)
			r.Get("/{id}", s.handleGetSubmission)
			r.Post("/{id}/approve", s.handleApproveSubmission)
			r.Post("/{id}/reject", s.handleRejectSubmission)
		})

		r.Post("/sync", s.handleSync)
		r.Get("/stats", s.handleStats)
	})

	return r
}
