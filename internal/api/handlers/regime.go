package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-regime/internal/brain"
	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/health"
	"github.com/wonny/aegis-regime/internal/policy"
	"github.com/wonny/aegis-regime/pkg/logger"
	"github.com/wonny/aegis-regime/pkg/redis"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 365
)

// Engine is the cycle runner plus its active policy (implemented by brain.Orchestrator)
type Engine interface {
	RunCycle(ctx context.Context, in contracts.CycleInput) (*contracts.CycleOutput, error)
	Policy() *policy.Policy
	PolicyHash() string
	Rejected() []policy.Rejection
}

// RegimeHandler handles regime cycle API endpoints
// ⭐ SSOT: 레짐 API 핸들러는 이 구조체에서만
type RegimeHandler struct {
	engine  Engine
	records contracts.HealthHistory
	cache   *redis.Cache
	logger  *logger.Logger

	mu     sync.RWMutex
	latest *contracts.CycleOutput
}

// NewRegimeHandler creates a new regime handler
func NewRegimeHandler(engine Engine, records contracts.HealthHistory, cache *redis.Cache, log *logger.Logger) *RegimeHandler {
	return &RegimeHandler{
		engine:  engine,
		records: records,
		cache:   cache,
		logger:  log,
	}
}

// Publish records a completed cycle as the latest and caches it
// 오케스트레이터 publisher로 등록 (스케줄 사이클도 반영)
func (h *RegimeHandler) Publish(ctx context.Context, out *contracts.CycleOutput) error {
	h.mu.Lock()
	h.latest = out
	h.mu.Unlock()

	if err := h.cache.Set(ctx, redis.LatestCycleKey(), out, redis.TTLCycle); err != nil {
		return err
	}
	return h.cache.Set(ctx, redis.CycleKey(out.CycleID), out, redis.TTLCycle)
}

// PersistErrorHeader carries the history write failure of an otherwise completed cycle
const PersistErrorHeader = "X-Regime-Persist-Error"

// RunCycle evaluates one posted cycle input
// POST /api/cycle
func (h *RegimeHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	in, err := brain.DecodeInput(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.engine.RunCycle(r.Context(), in)
	if err != nil && out != nil {
		// 평가는 완료, 저장만 실패: 결과는 반환하고 헤더로 알림
		h.logger.WithCycle(out.CycleID).WithError(err).Error("Cycle completed but was not persisted")
		w.Header().Set(PersistErrorHeader, err.Error())
		respondJSON(w, http.StatusOK, out)
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		switch brain.ErrorKind(err) {
		case "insufficient_data":
			status = http.StatusUnprocessableEntity
		case "invalid_input":
			status = http.StatusBadRequest
		}
		var se *brain.StageError
		if status == http.StatusInternalServerError && !errors.As(err, &se) {
			// 사이클 외부 오류 (히스토리 저장소 등)
			h.logger.WithError(err).Error("Cycle request failed")
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, out)
}

// GetLatest returns the most recent cycle output
// GET /api/regime/latest
func (h *RegimeHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	latest := h.latest
	h.mu.RUnlock()

	if latest != nil {
		respondJSON(w, http.StatusOK, latest)
		return
	}

	var cached contracts.CycleOutput
	found, err := h.cache.Get(r.Context(), redis.LatestCycleKey(), &cached)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read latest cycle from cache")
	}
	if !found {
		respondError(w, http.StatusNotFound, "No cycle has completed yet")
		return
	}
	respondJSON(w, http.StatusOK, &cached)
}

// GetCycle returns a cached cycle by id
// GET /api/cycles/{id}
func (h *RegimeHandler) GetCycle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.mu.RLock()
	latest := h.latest
	h.mu.RUnlock()

	if latest != nil && latest.CycleID == id {
		respondJSON(w, http.StatusOK, latest)
		return
	}

	var cached contracts.CycleOutput
	found, err := h.cache.Get(r.Context(), redis.CycleKey(id), &cached)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read cycle from cache")
	}
	if !found {
		respondError(w, http.StatusNotFound, "Cycle not found")
		return
	}
	respondJSON(w, http.StatusOK, &cached)
}

// GetHealthHistory returns daily health records, oldest first
// GET /api/health/history?limit=20
func (h *RegimeHandler) GetHealthHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondError(w, http.StatusBadRequest, "limit must be an integer in [1, 365]")
			return
		}
		limit = n
	}

	records, err := h.records.ListHealth(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list health history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve health history")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// GetTrend returns the health trend summary
// GET /api/health/trend
func (h *RegimeHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListHealth(r.Context(), health.TrendWindow)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list health history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve health history")
		return
	}
	respondJSON(w, http.StatusOK, health.ComputeTrend(records))
}

// GetGate returns the deployment gate decision for the latest health record
// GET /api/health/gate
func (h *RegimeHandler) GetGate(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListHealth(r.Context(), 1)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list health history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve health history")
		return
	}
	if len(records) == 0 {
		respondError(w, http.StatusNotFound, "No health record yet")
		return
	}
	respondJSON(w, http.StatusOK, health.Gate(records[0].HealthScore))
}

// StrategiesResponse lists the active declarations and load-time rejections
type StrategiesResponse struct {
	PolicyID         string                          `json:"policy_id"`
	PolicyHash       string                          `json:"policy_hash"`
	ActiveStrategies []string                        `json:"active_strategies"`
	Declarations     []contracts.StrategyDeclaration `json:"declarations"`
	Rejected         []policy.Rejection              `json:"rejected"`
}

// GetStrategies returns the strategy declarations of the active policy
// GET /api/strategies
func (h *RegimeHandler) GetStrategies(w http.ResponseWriter, r *http.Request) {
	p := h.engine.Policy()

	rejected := h.engine.Rejected()
	if rejected == nil {
		rejected = []policy.Rejection{}
	}

	respondJSON(w, http.StatusOK, StrategiesResponse{
		PolicyID:         p.Meta.PolicyID,
		PolicyHash:       h.engine.PolicyHash(),
		ActiveStrategies: p.ActiveStrategies,
		Declarations:     p.Strategies,
		Rejected:         rejected,
	})
}
