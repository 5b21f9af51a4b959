// Package adminapi implements the read-mostly inspect HTTP surface:
// cadence status, production lock status, review metrics, and
// collection stats, plus the one permitted config-mutation route —
// patching the Review Router's runtime-tunable thresholds and worker
// count.
package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"overseer/internal/cadence"
	"overseer/internal/collection"
	"overseer/internal/config"
	"overseer/internal/lock"
	"overseer/internal/logger"
	"overseer/internal/persistence"
	"overseer/internal/review"
)

// Server is the admin inspect/mutation HTTP surface.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	db         persistence.Database
	cadence    *cadence.Controller
	coll       *collection.Manager
	reviewCfg  *review.ConfigStore
	metrics    *review.Metrics
	prodLock   *lock.ProductionLock
	log        *slog.Logger
}

// New builds an admin Server bound to the orchestration core's live
// components. reviewMetrics is the running Router's Router.Metrics;
// reviewCfg is a config store over the same fast-state key the Router
// reads.
func New(cfg config.Admin, db persistence.Database, cadenceCtrl *cadence.Controller, coll *collection.Manager, reviewCfg *review.ConfigStore, reviewMetrics *review.Metrics, prodLock *lock.ProductionLock) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		db:        db,
		cadence:   cadenceCtrl,
		coll:      coll,
		reviewCfg: reviewCfg,
		metrics:   reviewMetrics,
		prodLock:  prodLock,
		log:       logger.Get(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if cfg.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/cadence/status", s.handleCadenceStatus)
	s.router.Get("/production/status", s.handleProductionStatus)
	s.router.Get("/review/metrics", s.handleReviewMetrics)
	s.router.Get("/collections/stats", s.handleCollectionStats)
	s.router.Get("/config", s.handleGetConfig)
	s.router.Patch("/config", s.handlePatchConfig)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Start runs the server until it is shut down. It blocks, matching
// http.Server.ListenAndServe's contract.
func (s *Server) Start() error {
	s.log.Info("starting admin server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown failed: %w", err)
	}
	return nil
}

// Router exposes the chi router for testing.
func (s *Server) Router() *chi.Mux { return s.router }

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCadenceStatus(w http.ResponseWriter, r *http.Request) {
	groups, err := s.db.Groups().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}

	out := make([]cadence.Status, 0, len(groups))
	for _, g := range groups {
		status, ok, err := s.cadence.Status(g.ID)
		if err != nil {
			s.log.Warn("admin: failed to read cadence status", "group_id", g.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		out = append(out, status)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProductionStatus(w http.ResponseWriter, r *http.Request) {
	state, held, err := s.prodLock.Inspect()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to inspect production lock")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"held": held, "state": state})
}

func (s *Server) handleReviewMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// collectionStat is one group's collection-readiness readout.
type collectionStat struct {
	GroupID        string `json:"group_id"`
	ActiveID       string `json:"active_collection_id"`
	ArticleCount   int    `json:"article_count"`
	Ready          bool   `json:"ready"`
}

func (s *Server) handleCollectionStats(w http.ResponseWriter, r *http.Request) {
	groups, err := s.db.Groups().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}

	out := make([]collectionStat, 0, len(groups))
	for _, g := range groups {
		active, err := s.coll.GetActive(r.Context(), g.ID)
		if err != nil {
			s.log.Warn("admin: failed to resolve active collection", "group_id", g.ID, "error", err)
			continue
		}
		count, err := s.coll.ArticleCount(r.Context(), active.ID)
		if err != nil {
			s.log.Warn("admin: failed to count collection articles", "group_id", g.ID, "error", err)
			continue
		}
		ready, err := s.coll.Readiness(r.Context(), active.ID)
		if err != nil {
			s.log.Warn("admin: failed to compute readiness", "group_id", g.ID, "error", err)
			continue
		}
		out = append(out, collectionStat{GroupID: g.ID, ActiveID: active.ID, ArticleCount: count, Ready: ready})
	}
	writeJSON(w, http.StatusOK, out)
}

// configPatch is the permitted subset of review.RuntimeConfig fields
// mutable from the admin surface. Fields absent from the request are left
// untouched; a field sent explicitly, even as zero, is applied.
type configPatch struct {
	LightThreshold *float64 `json:"light_threshold,omitempty"`
	HeavyThreshold *float64 `json:"heavy_threshold,omitempty"`
	WorkerCount    *int     `json:"worker_count,omitempty"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.reviewCfg.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read current config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := s.reviewCfg.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read current config")
		return
	}

	if patch.LightThreshold != nil {
		if *patch.LightThreshold < 0 || *patch.LightThreshold > 1 {
			writeError(w, http.StatusBadRequest, "light_threshold must be in [0,1]")
			return
		}
		cfg.LightThreshold = *patch.LightThreshold
	}
	if patch.HeavyThreshold != nil {
		if *patch.HeavyThreshold < 0 || *patch.HeavyThreshold > 1 {
			writeError(w, http.StatusBadRequest, "heavy_threshold must be in [0,1]")
			return
		}
		cfg.HeavyThreshold = *patch.HeavyThreshold
	}
	if patch.WorkerCount != nil {
		if *patch.WorkerCount < 1 {
			writeError(w, http.StatusBadRequest, "worker_count must be at least 1")
			return
		}
		cfg.WorkerCount = *patch.WorkerCount
	}

	if err := s.reviewCfg.Set(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
