package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/aegis-regime/internal/api/handlers"
	"github.com/wonny/aegis-regime/pkg/logger"
)

// RouterConfig bundles the router's collaborators
type RouterConfig struct {
	Regime  *handlers.RegimeHandler
	Stream  *Stream
	Metrics http.Handler // nil: /metrics 비활성

	// POST /api/cycle token bucket
	CycleRPS   float64
	CycleBurst int
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(cfg RouterConfig, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods("GET")
	}
	if cfg.Stream != nil {
		r.HandleFunc("/ws/cycles", cfg.Stream.ServeWS).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Regime endpoints
	api.HandleFunc("/regime/latest", cfg.Regime.GetLatest).Methods("GET")
	api.HandleFunc("/cycles/{id}", cfg.Regime.GetCycle).Methods("GET")
	api.HandleFunc("/strategies", cfg.Regime.GetStrategies).Methods("GET")

	// Health endpoints
	api.HandleFunc("/health/history", cfg.Regime.GetHealthHistory).Methods("GET")
	api.HandleFunc("/health/trend", cfg.Regime.GetTrend).Methods("GET")
	api.HandleFunc("/health/gate", cfg.Regime.GetGate).Methods("GET")

	// Cycle submission (rate limited)
	cycle := api.PathPrefix("/cycle").Subrouter()
	cycle.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.CycleRPS), max(cfg.CycleBurst, 1))))
	cycle.HandleFunc("", cfg.Regime.RunCycle).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "aegis-regime-api",
	})
}
