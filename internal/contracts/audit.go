package contracts

// HealthStatus is the coarse trust band of a HealthScore
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthCritical HealthStatus = "CRITICAL"
)

// Health status boundaries
const (
	HealthyMin  = 85
	DegradedMin = 50
)

// StatusFor maps a final health score onto its status band
func StatusFor(score int) HealthStatus {
	switch {
	case score >= HealthyMin:
		return HealthHealthy
	case score >= DegradedMin:
		return HealthDegraded
	default:
		return HealthCritical
	}
}

// Cap reason codes
const (
	CapMediumConfidence   = "MEDIUM_REGIME_CONFIDENCE"
	CapLowConfidence      = "LOW_REGIME_CONFIDENCE"
	CapCollapseConfidence = "COLLAPSED_REGIME_CONFIDENCE"
)

// Violation codes
const (
	ViolationRegimeCollapse         = "REGIME_CONFIDENCE_COLLAPSE"
	ViolationStrategyConflict       = "STRATEGY_CONFLICT"
	ViolationDirectionalConc        = "DIRECTIONAL_SIGNAL_CONCENTRATION"
	ViolationDisabledContributing   = "DISABLED_STRATEGY_CONTRIBUTING"
	ViolationMalformedDeclaration   = "MALFORMED_STRATEGY_DECLARATION"
	ViolationMalformedHistory       = "MALFORMED_REGIME_HISTORY"
	ViolationNeutralDefaultSnapshot = "NEUTRAL_DEFAULT_SNAPSHOT"
)

// Finding is one auditable violation: a machine code plus its human explanation
type Finding struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// HealthScore is the capped trustworthiness score of one cycle
// ⭐ SSOT: R3 헬스 집계 결과 (생성 후 불변, 다음 사이클에서 대체)
type HealthScore struct {
	Score        int          `json:"health_score"`
	RawScore     int          `json:"raw_health_score"`
	Status       HealthStatus `json:"status"`
	CapsApplied  []string     `json:"caps_applied"`
	Violations   []string     `json:"violations"`
	Explanations []string     `json:"explanations"`

	// 하위 추천 억제/알림은 외부 협력자가 수행, 여기서는 플래그만 제공
	SuppressRecommendations bool `json:"suppress_recommendations"`
	AlertRequired           bool `json:"alert_required"`
}

// IsCritical reports whether the cycle must suppress downstream recommendations
func (h *HealthScore) IsCritical() bool {
	return h.Status == HealthCritical
}

// ConstraintCount returns the number of caps plus violations
func (h *HealthScore) ConstraintCount() int {
	return len(h.CapsApplied) + len(h.Violations)
}

// HealthRecord is one day of health history, upserted by date
type HealthRecord struct {
	Date           string       `json:"date"` // YYYY-MM-DD
	CycleID        string       `json:"cycle_id"`
	HealthScore    int          `json:"health_score"`
	Status         HealthStatus `json:"status"`
	ViolationCount int          `json:"violation_count"`
	StrategyCount  int          `json:"strategy_count"`
	Violations     []string     `json:"violations"`
}

// RecordDateLayout is the date format of HealthRecord.Date
const RecordDateLayout = "2006-01-02"

// NewHealthRecord builds the history row of a completed cycle
func NewHealthRecord(out *CycleOutput) HealthRecord {
	return HealthRecord{
		Date:           out.Regime.AsOf.Format(RecordDateLayout),
		CycleID:        out.CycleID,
		HealthScore:    out.Health.Score,
		Status:         out.Health.Status,
		ViolationCount: len(out.Health.Violations),
		StrategyCount:  len(out.Strategies),
		Violations:     append([]string{}, out.Health.Violations...),
	}
}
