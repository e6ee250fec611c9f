package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/Harshitk-cp/swarm/internal/api/handlers"
	mw "github.com/Harshitk-cp/swarm/internal/api/middleware"
	"github.com/Harshitk-cp/swarm/internal/buildconfig"
	"github.com/Harshitk-cp/swarm/internal/config"
	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/service"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Ticker    *service.StageTicker
	Expirer   *service.ExpirerService
	startTime time.Time
	requests  *mw.MetricsCollector
}

// Options are the coordinator's tunables, normally read from config.
type Options struct {
	AdminAPIKey    string
	StageDuration  time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

func OptionsFromConfig() Options {
	return Options{
		AdminAPIKey:    config.AdminAPIKey(),
		StageDuration:  config.StageDuration(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}
}

// NewApp wires the Postgres-backed coordinator.
func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	svc := service.NewCoordinatorService(
		store.NewPeerStore(db),
		store.NewRoundStore(db),
		store.NewRewardStore(db),
		store.NewWinnerStore(db),
		logger,
	)
	app := newApp(svc, db.Ping, OptionsFromConfig(), logger)

	// Nodes on the postgres backend publish into the same database.
	app.Expirer = service.NewExpirerService(store.NewPostgresDHT(db), logger)
	return app
}

func newApp(svc *service.CoordinatorService, ping func(context.Context) error, opts Options, logger *zap.Logger) *App {
	peerHandler := handlers.NewPeerHandler(svc)
	roundHandler := handlers.NewRoundHandler(svc)
	rewardHandler := handlers.NewRewardHandler(svc)
	winnerHandler := handlers.NewWinnerHandler(svc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Ticker:    service.NewStageTicker(svc, opts.StageDuration, logger),
		startTime: time.Now(),
		requests:  mw.NewMetricsCollector(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.requests.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	r.Get("/health", healthHandler(ping))
	r.Get("/metrics", app.metricsHandler())
	r.Get("/version", versionHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/peers", peerHandler.Register)
		r.Get("/round", roundHandler.Get)
		r.Get("/rounds/{round}/winners", winnerHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(mw.PeerAuth(svc))
			r.Post("/rewards", rewardHandler.Submit)
			r.Post("/winners", winnerHandler.Submit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.AdminAuth(opts.AdminAPIKey))
			r.Post("/advance", roundHandler.Advance)
		})
	})

	return app
}

func healthHandler(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(buildconfig.Get())
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"requests":       app.requests.Snapshot(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.PeerStore        = (*store.PeerStore)(nil)
	_ domain.RoundStore       = (*store.RoundStore)(nil)
	_ domain.RewardStore      = (*store.RewardStore)(nil)
	_ domain.WinnerStore      = (*store.WinnerStore)(nil)
	_ domain.DistributedStore = (*store.PostgresDHT)(nil)
	_ domain.ExpiringStore    = (*store.PostgresDHT)(nil)
	_ mw.Authenticator        = (*service.CoordinatorService)(nil)
)
