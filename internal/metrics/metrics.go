package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/aegis-regime/internal/contracts"
)

const namespace = "regime"

// Registry holds all Prometheus metrics of the regime cycle
// 전역 DefaultRegisterer 대신 인스턴스별 레지스트리 (테스트 격리)
type Registry struct {
	reg *prometheus.Registry

	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	StageDuration *prometheus.HistogramVec
	CycleErrors   *prometheus.CounterVec

	// Regime metrics
	RegimeConfidence prometheus.Gauge
	ActiveRegime     *prometheus.GaugeVec
	RegimeSwitches   *prometheus.CounterVec

	// Health metrics
	HealthScore       prometheus.Gauge
	ViolationsTotal   *prometheus.CounterVec
	StrategiesEnabled prometheus.Gauge
	AlertsTotal       *prometheus.CounterVec

	mu         sync.Mutex
	lastRegime contracts.Regime
}

// NewRegistry creates a registry with all regime metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of regime cycles by result",
			},
			[]string{"result"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of a full regime cycle in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each cycle stage in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"stage", "result"},
		),

		CycleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycle_errors_total",
				Help:      "Total number of aborted cycles by stage and error kind",
			},
			[]string{"stage", "kind"},
		),

		RegimeConfidence: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "confidence",
				Help:      "Regime confidence of the latest cycle (0.0 to 1.0)",
			},
		),

		ActiveRegime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active",
				Help:      "1 for the regime of the latest cycle, 0 otherwise",
			},
			[]string{"regime"},
		),

		RegimeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "switches_total",
				Help:      "Total number of regime switches by from/to regime",
			},
			[]string{"from_regime", "to_regime"},
		),

		HealthScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_score",
				Help:      "Final health score of the latest cycle (0 to 100)",
			},
		),

		ViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violations_total",
				Help:      "Total number of recorded violations by code",
			},
			[]string{"code"},
		),

		StrategiesEnabled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "strategies_enabled",
				Help:      "Number of non-disabled strategies in the latest cycle",
			},
		),

		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Total number of CRITICAL alerts by delivery result",
			},
			[]string{"result"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.CyclesTotal,
		r.CycleDuration,
		r.StageDuration,
		r.CycleErrors,
		r.RegimeConfidence,
		r.ActiveRegime,
		r.RegimeSwitches,
		r.HealthScore,
		r.ViolationsTotal,
		r.StrategiesEnabled,
		r.AlertsTotal,
	)

	// 첫 사이클 전에도 단계별 시계열이 노출되도록 초기화
	for _, stage := range contracts.AllStages() {
		r.StageDuration.WithLabelValues(stage.ShortName(), "ok")
	}

	return r
}

// StageTimer tracks execution time for one cycle stage
type StageTimer struct {
	metrics *Registry
	stage   contracts.Stage
	start   time.Time
}

// StartStage begins timing a cycle stage
func (r *Registry) StartStage(stage contracts.Stage) *StageTimer {
	return &StageTimer{metrics: r, stage: stage, start: time.Now()}
}

// Stop records the stage duration with its result ("ok" or "error")
func (t *StageTimer) Stop(result string) time.Duration {
	d := time.Since(t.start)
	t.metrics.StageDuration.WithLabelValues(t.stage.ShortName(), result).Observe(d.Seconds())
	return d
}

// ObserveCycle records a completed cycle
func (r *Registry) ObserveCycle(out *contracts.CycleOutput, duration time.Duration) {
	r.CyclesTotal.WithLabelValues(string(out.Health.Status)).Inc()
	r.CycleDuration.Observe(duration.Seconds())

	r.RegimeConfidence.Set(out.Regime.Confidence)
	r.HealthScore.Set(float64(out.Health.Score))

	for _, regime := range contracts.AllRegimes() {
		v := 0.0
		if regime == out.Regime.Regime {
			v = 1.0
		}
		r.ActiveRegime.WithLabelValues(string(regime)).Set(v)
	}

	enabled := 0
	for _, e := range out.Strategies {
		if e.Enabled {
			enabled++
		}
	}
	r.StrategiesEnabled.Set(float64(enabled))

	for _, code := range out.Health.Violations {
		r.ViolationsTotal.WithLabelValues(code).Inc()
	}

	r.mu.Lock()
	if r.lastRegime != "" && r.lastRegime != out.Regime.Regime {
		r.RegimeSwitches.WithLabelValues(string(r.lastRegime), string(out.Regime.Regime)).Inc()
	}
	r.lastRegime = out.Regime.Regime
	r.mu.Unlock()
}

// RecordCycleError records an aborted cycle
func (r *Registry) RecordCycleError(stage contracts.Stage, kind string) {
	r.CyclesTotal.WithLabelValues("ERROR").Inc()
	r.CycleErrors.WithLabelValues(stage.ShortName(), kind).Inc()
}

// RecordAlert records a CRITICAL alert delivery result ("sent", "throttled", "failed")
func (r *Registry) RecordAlert(result string) {
	r.AlertsTotal.WithLabelValues(result).Inc()
}

// Handler returns an HTTP handler exposing this registry
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
