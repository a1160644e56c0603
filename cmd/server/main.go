package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kyros-ent/reservation/config"
	"github.com/kyros-ent/reservation/internal/cache"
	"github.com/kyros-ent/reservation/internal/engine"
	"github.com/kyros-ent/reservation/internal/handler"
	"github.com/kyros-ent/reservation/internal/middleware"
	"github.com/kyros-ent/reservation/internal/store"
	pkgcache "github.com/kyros-ent/reservation/pkg/cache"
	"github.com/kyros-ent/reservation/pkg/db"
)

// Bound manually here because ServerConfig only carries a bind
// address; the HTTP server's timeouts are an operational default, the
// same way NewPool's health-check period is.
const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("postgres connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := pkgcache.NewRedisClient(ctx, cfg.Cache)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("redis connected")

	// ── Initialize layers ───────────────────────────────
	reservationStore := store.New(pgPool)
	reservationCache := cache.New(redisClient, time.Duration(cfg.Cache.TTL)*time.Second)
	reservationEngine := engine.New(reservationStore, reservationCache)
	reservationHandler := handler.NewReservationHandler(reservationEngine)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger, middleware.Recoverer)

	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reservations", reservationHandler.Reserve).Methods(http.MethodPost)
	api.HandleFunc("/reservations", reservationHandler.Filter).Methods(http.MethodGet)
	api.HandleFunc("/reservations/query", reservationHandler.Query).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{id}", reservationHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{id}", reservationHandler.Update).Methods(http.MethodPatch)
	api.HandleFunc("/reservations/{id}", reservationHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/reservations/{id}/confirm", reservationHandler.Confirm).Methods(http.MethodPost)
	api.HandleFunc("/reservations/{id}/cancel", reservationHandler.Cancel).Methods(http.MethodPost)

	// Wrap with CORS so browser-based clients can call the API directly.
	handler := middleware.CORS(router)

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		log.Printf("server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks Postgres and Redis
// connectivity, gating readiness on both backing stores.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := pkgcache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
