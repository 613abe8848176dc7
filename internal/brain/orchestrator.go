package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/aegis-regime/internal/classifier"
	"github.com/wonny/aegis-regime/internal/confidence"
	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/health"
	"github.com/wonny/aegis-regime/internal/history"
	"github.com/wonny/aegis-regime/internal/metrics"
	"github.com/wonny/aegis-regime/internal/policy"
	"github.com/wonny/aegis-regime/internal/strategy"
	"github.com/wonny/aegis-regime/pkg/logger"
)

// cycleNamespace cycle_id (UUIDv5) 네임스페이스
var cycleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("aegis-regime/cycle"))

// StageError wraps the failure of one cycle stage
type StageError struct {
	Stage contracts.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage.ShortName(), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Orchestrator coordinates the R0 → R3 regime cycle
// ⭐ SSOT: 사이클 조율은 여기서만
type Orchestrator struct {
	policy     *policy.Policy
	policyHash string
	decls      map[string]*contracts.StrategyDeclaration
	rejected   []policy.Rejection

	// Stage components
	classifier *classifier.Classifier
	confidence *confidence.Engine
	matrix     *strategy.Matrix
	health     *health.Aggregator

	// Caller-owned state
	history       contracts.RegimeHistory
	healthHistory contracts.HealthHistory
	publishers    []contracts.CyclePublisher
	metrics       *metrics.Registry

	logger *logger.Logger

	// 사이클은 히스토리 로드부터 저장까지 한 번에 하나씩 (API + 스케줄러 동시 실행)
	cycleMu sync.Mutex
}

// NewOrchestrator creates an orchestrator for a validated policy
// history: 사이클 사이에 호출자가 소유하는 레짐 히스토리 버퍼
func NewOrchestrator(p *policy.Policy, hist contracts.RegimeHistory, log *logger.Logger) (*Orchestrator, error) {
	if err := policy.Validate(p); err != nil {
		return nil, err
	}
	hash, err := policy.Hash(p)
	if err != nil {
		return nil, err
	}

	decls, rejected := p.Declarations()

	return &Orchestrator{
		policy:     p,
		policyHash: hash,
		decls:      decls,
		rejected:   rejected,
		classifier: classifier.New(classifier.NewThresholdPolicy(p.Classifier)),
		confidence: confidence.New(p.Confidence),
		matrix:     strategy.NewMatrix(p.Strategy),
		health:     health.NewAggregator(p.Health),
		history:    hist,
		logger:     log,
	}, nil
}

// WithHealthHistory sets the daily health record store
func (o *Orchestrator) WithHealthHistory(h contracts.HealthHistory) *Orchestrator {
	o.healthHistory = h
	return o
}

// WithMetrics sets the metrics registry
func (o *Orchestrator) WithMetrics(m *metrics.Registry) *Orchestrator {
	o.metrics = m
	return o
}

// AddPublisher registers a receiver of completed cycles
func (o *Orchestrator) AddPublisher(p contracts.CyclePublisher) *Orchestrator {
	o.publishers = append(o.publishers, p)
	return o
}

// PolicyHash returns the hash recorded in every cycle output
func (o *Orchestrator) PolicyHash() string {
	return o.policyHash
}

// Policy returns the active policy
func (o *Orchestrator) Policy() *policy.Policy {
	return o.policy
}

// Rejected returns the declarations rejected at load
func (o *Orchestrator) Rejected() []policy.Rejection {
	return o.rejected
}

// RunCycle loads history, evaluates one cycle, then persists and publishes it
// 사이클은 전체 성공 또는 전체 실패 (부분 출력 없음)
func (o *Orchestrator) RunCycle(ctx context.Context, in contracts.CycleInput) (*contracts.CycleOutput, error) {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	start := time.Now()

	hist, malformed, err := o.loadHistory(ctx, in.Snapshot.Timestamp)
	if err != nil {
		o.recordError(&StageError{Stage: contracts.StageConfidence, Err: err})
		return nil, fmt.Errorf("load regime history: %w", err)
	}

	out, err := o.Evaluate(ctx, in, hist, malformed)
	if err != nil {
		o.recordError(err)
		o.logger.WithError(err).Error("Regime cycle failed")
		return nil, err
	}

	if err := o.persist(ctx, out); err != nil {
		return out, err
	}

	if o.metrics != nil {
		o.metrics.ObserveCycle(out, time.Since(start))
	}

	for _, p := range o.publishers {
		if err := p.Publish(ctx, out); err != nil {
			// 발행 실패는 사이클 결과를 바꾸지 않음
			o.logger.WithCycle(out.CycleID).WithError(err).Warn("Cycle publish failed")
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"cycle_id":     out.CycleID,
		"regime":       out.Regime.Regime,
		"confidence":   out.Regime.Confidence,
		"health_score": out.Health.Score,
		"status":       out.Health.Status,
		"duration":     time.Since(start).String(),
	}).Info("Regime cycle completed")

	return out, nil
}

// Evaluate runs R0 → R3 on one input and a given history window
// 순수 함수: 같은 입력/히스토리/정책 → 바이트 단위 동일 출력
func (o *Orchestrator) Evaluate(
	ctx context.Context,
	in contracts.CycleInput,
	hist []contracts.RegimeAssessment,
	historyMalformed bool,
) (*contracts.CycleOutput, error) {
	var extra []contracts.Finding
	for _, r := range o.rejected {
		extra = append(extra, contracts.Finding{
			Code:        contracts.ViolationMalformedDeclaration,
			Explanation: fmt.Sprintf("Strategy declaration %q rejected (%s): treated as undeclared", r.StrategyID, r.Reason),
		})
	}

	// R0: Classify
	cls, dataPath, neutral, err := o.runR0(in.Snapshot)
	if err != nil {
		return nil, &StageError{Stage: contracts.StageClassify, Err: err}
	}

	// R1: Confidence
	assessment, malformed := o.runR1(cls, hist)
	if historyMalformed || malformed {
		extra = append(extra, contracts.Finding{
			Code:        contracts.ViolationMalformedHistory,
			Explanation: "Regime history malformed: treated as empty, stability credit is 0",
		})
	}
	if neutral != nil {
		extra = append(extra, *neutral)
	}

	// R2: Strategy eligibility
	evals, agg, err := o.runR2(ctx, assessment, in.ContributingStrategies)
	if err != nil {
		return nil, &StageError{Stage: contracts.StageStrategy, Err: err}
	}

	// R3: Health (전략 집계 완료 후에만)
	h, err := o.runR3(in.DimensionScores, assessment.ConfidenceLevel, agg, extra)
	if err != nil {
		return nil, &StageError{Stage: contracts.StageHealth, Err: err}
	}

	cycleID, err := o.cycleID(in, hist, historyMalformed)
	if err != nil {
		return nil, err
	}

	return &contracts.CycleOutput{
		CycleID:    cycleID,
		PolicyHash: o.policyHash,
		DataPath:   dataPath,
		Regime:     assessment,
		Health:     *h,
		Strategies: evals,
	}, nil
}

// runR0 classifies the snapshot, applying the missing data policy
func (o *Orchestrator) runR0(snapshot contracts.IndicatorSnapshot) (contracts.Classification, contracts.DataPath, *contracts.Finding, error) {
	timer := o.startStage(contracts.StageClassify)
	log := o.logger.WithStage(contracts.StageClassify.String())

	cls, err := o.classifier.Classify(snapshot)
	if err == nil {
		timer.stop("ok")
		log.WithFields(map[string]interface{}{
			"regime":     cls.Regime,
			"trend":      cls.Signals.Trend,
			"volatility": cls.Signals.Volatility,
			"breadth":    cls.Signals.Breadth,
		}).Debug("R0 completed")
		return cls, contracts.DataPathObserved, nil, nil
	}

	var insufficient *contracts.InsufficientDataError
	if !errors.As(err, &insufficient) || o.policy.Data.MissingDataPolicy != policy.MissingDataNeutral {
		timer.stop("error")
		return contracts.Classification{}, "", nil, err
	}

	// NEUTRAL 정책: 설정된 중립 스냅샷으로 대체하고 경로를 명시
	cls, err = o.classifier.Classify(o.policy.Data.NeutralSnapshot.Snapshot(snapshot.Timestamp))
	if err != nil {
		timer.stop("error")
		return contracts.Classification{}, "", nil, err
	}
	timer.stop("ok")

	log.WithField("missing", insufficient.Missing).Warn("Indicator data incomplete, neutral default snapshot substituted")

	finding := contracts.Finding{
		Code: contracts.ViolationNeutralDefaultSnapshot,
		Explanation: fmt.Sprintf("Indicator data incomplete (missing %s): neutral default snapshot substituted",
			strings.Join(insufficient.Missing, ", ")),
	}
	return cls, contracts.DataPathNeutralDefault, &finding, nil
}

// runR1 scores confidence against the history window
func (o *Orchestrator) runR1(cls contracts.Classification, hist []contracts.RegimeAssessment) (contracts.RegimeAssessment, bool) {
	timer := o.startStage(contracts.StageConfidence)
	defer timer.stop("ok")

	res := o.confidence.Score(cls, hist)
	assessment := contracts.NewRegimeAssessment(cls, res.Confidence)

	o.logger.WithStage(contracts.StageConfidence.String()).WithFields(map[string]interface{}{
		"confidence":    res.Confidence,
		"level":         res.Level,
		"agreement":     res.Agreement,
		"stability":     res.Stability,
		"shock_penalty": res.ShockPenalty,
	}).Debug("R1 completed")

	return assessment, res.HistoryMalformed
}

// runR2 evaluates all active strategies and joins the aggregate
func (o *Orchestrator) runR2(
	ctx context.Context,
	a contracts.RegimeAssessment,
	contributing []string,
) ([]contracts.StrategyEvaluation, contracts.StrategyAggregate, error) {
	timer := o.startStage(contracts.StageStrategy)

	evals, err := o.matrix.EvaluateAll(ctx, o.policy.ActiveStrategies, o.decls, a.Regime, a.ConfidenceLevel)
	if err != nil {
		timer.stop("error")
		return nil, contracts.StrategyAggregate{}, err
	}
	agg := o.matrix.Aggregate(evals, o.decls, contributing)
	timer.stop("ok")

	o.logger.WithStage(contracts.StageStrategy.String()).WithFields(map[string]interface{}{
		"evaluated":         agg.EvaluatedCount,
		"enabled":           agg.EnabledCount,
		"strategy_behavior": agg.Score,
		"findings":          len(agg.Findings),
	}).Debug("R2 completed")

	return evals, agg, nil
}

// runR3 aggregates the capped health score
func (o *Orchestrator) runR3(
	scores contracts.DimensionScores,
	level contracts.ConfidenceLevel,
	agg contracts.StrategyAggregate,
	extra []contracts.Finding,
) (*contracts.HealthScore, error) {
	timer := o.startStage(contracts.StageHealth)

	h, err := o.health.Aggregate(scores, level, agg, extra)
	if err != nil {
		timer.stop("error")
		return nil, err
	}
	timer.stop("ok")

	log := o.logger.WithStage(contracts.StageHealth.String()).WithFields(map[string]interface{}{
		"raw_score":  h.RawScore,
		"score":      h.Score,
		"status":     h.Status,
		"caps":       h.CapsApplied,
		"violations": h.Violations,
	})
	if h.IsCritical() {
		log.Warn("R3 completed: health CRITICAL, recommendations suppressed")
	} else {
		log.Debug("R3 completed")
	}
	return h, nil
}

// loadHistory reads the k assessments strictly before asOf
// 재실행은 이후 사이클 결과와 무관하게 같은 윈도우를 봄 (멱등)
func (o *Orchestrator) loadHistory(ctx context.Context, asOf time.Time) ([]contracts.RegimeAssessment, bool, error) {
	items, err := o.history.Recent(ctx, asOf, o.confidence.Window())
	if errors.Is(err, history.ErrMalformed) {
		o.logger.WithError(err).Warn("Regime history malformed, treated as empty")
		return []contracts.RegimeAssessment{}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if items == nil {
		items = []contracts.RegimeAssessment{}
	}
	return items, false, nil
}

// persist appends the assessment and upserts the daily health record
func (o *Orchestrator) persist(ctx context.Context, out *contracts.CycleOutput) error {
	if err := o.history.Append(ctx, out.Regime); err != nil {
		return fmt.Errorf("append regime history: %w", err)
	}
	if o.healthHistory != nil {
		if err := o.healthHistory.UpsertHealth(ctx, contracts.NewHealthRecord(out)); err != nil {
			return fmt.Errorf("upsert health record: %w", err)
		}
	}
	return nil
}

// cycleID derives a name-based UUID from everything the output depends on
func (o *Orchestrator) cycleID(in contracts.CycleInput, hist []contracts.RegimeAssessment, malformed bool) (string, error) {
	key := struct {
		PolicyHash string                       `json:"policy_hash"`
		Input      contracts.CycleInput         `json:"input"`
		History    []contracts.RegimeAssessment `json:"history"`
		Malformed  bool                         `json:"history_malformed"`
	}{o.policyHash, in, hist, malformed}

	data, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("encode cycle key: %w", err)
	}
	return uuid.NewSHA1(cycleNamespace, data).String(), nil
}

func (o *Orchestrator) recordError(err error) {
	if o.metrics == nil {
		return
	}
	stage := contracts.StageClassify
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	o.metrics.RecordCycleError(stage, ErrorKind(err))
}

// ErrorKind classifies a cycle error for metrics and exit codes
func ErrorKind(err error) string {
	var invalid *contracts.InvalidInputError
	switch {
	case errors.Is(err, contracts.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, contracts.ErrConfigurationFault):
		return "configuration_fault"
	case errors.As(err, &invalid):
		return "invalid_input"
	default:
		return "other"
	}
}

type stageTimer struct {
	timer *metrics.StageTimer
}

func (o *Orchestrator) startStage(stage contracts.Stage) stageTimer {
	if o.metrics == nil {
		return stageTimer{}
	}
	return stageTimer{timer: o.metrics.StartStage(stage)}
}

func (t stageTimer) stop(result string) {
	if t.timer != nil {
		t.timer.Stop(result)
	}
}
