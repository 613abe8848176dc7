package health

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis-regime/internal/contracts"
)

// TrendWindow is the number of records the longest trend statistic reads
const TrendWindow = 20

// RootCause is one violation code with its occurrence count
type RootCause struct {
	Violation string `json:"violation"`
	Count     int    `json:"count"`
}

// Trend summarizes recent health history
// nil 값은 계산 불가 (히스토리 부족)
type Trend struct {
	MovingAverage5     *float64    `json:"moving_average_5d"`
	MovingAverage20    *float64    `json:"moving_average_20d"`
	Slope7             *float64    `json:"slope_7d"`
	ViolationDensity5  *float64    `json:"violation_density_5d"`
	ViolationDensity20 *float64    `json:"violation_density_20d"`
	RecoveryTimeDays   *int        `json:"recovery_time_days"`
	RootCauseSummary   []RootCause `json:"root_cause_summary"`
	LatestScore        *int        `json:"latest_score"`
	RecordCount        int         `json:"record_count"`
}

// ComputeTrend derives moving averages, slope, violation density and recovery time
// records must be sorted by date ascending
func ComputeTrend(records []contracts.HealthRecord) Trend {
	scores := make([]int, len(records))
	for i, r := range records {
		scores[i] = r.HealthScore
	}

	t := Trend{
		MovingAverage5:     movingAverage(scores, 5),
		MovingAverage20:    movingAverage(scores, TrendWindow),
		Slope7:             slope(tail(scores, 7)),
		ViolationDensity5:  violationDensity(records, 5),
		ViolationDensity20: violationDensity(records, TrendWindow),
		RecoveryTimeDays:   recoveryTimeDays(records, contracts.HealthyMin),
		RootCauseSummary:   rootCauses(records, TrendWindow, 5),
		RecordCount:        len(records),
	}
	if len(scores) > 0 {
		latest := scores[len(scores)-1]
		t.LatestScore = &latest
	}
	return t
}

func tail[T any](values []T, n int) []T {
	if len(values) > n {
		return values[len(values)-n:]
	}
	return values
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func movingAverage(values []int, window int) *float64 {
	if len(values) == 0 {
		return nil
	}
	w := tail(values, window)
	sum := 0
	for _, v := range w {
		sum += v
	}
	avg := round(float64(sum)/float64(len(w)), 2)
	return &avg
}

// slope: 첫 점과 마지막 점 사이 일 평균 변화
func slope(values []int) *float64 {
	if len(values) < 2 {
		return nil
	}
	s := round(float64(values[len(values)-1]-values[0])/float64(len(values)-1), 3)
	return &s
}

// violationDensity = 위반 수 / 평가된 전략 수
func violationDensity(records []contracts.HealthRecord, window int) *float64 {
	if len(records) == 0 {
		return nil
	}
	violations, strategies := 0, 0
	for _, r := range tail(records, window) {
		violations += r.ViolationCount
		strategies += r.StrategyCount
	}
	d := 0.0
	if strategies > 0 {
		d = round(float64(violations)/float64(strategies), 3)
	}
	return &d
}

// recoveryTimeDays: 마지막 기록과 마지막 정상(≥threshold) 기록 사이 일수
func recoveryTimeDays(records []contracts.HealthRecord, threshold int) *int {
	if len(records) == 0 {
		return nil
	}
	latest, err := time.Parse(contracts.RecordDateLayout, records[len(records)-1].Date)
	if err != nil {
		return nil
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].HealthScore < threshold {
			continue
		}
		healthy, err := time.Parse(contracts.RecordDateLayout, records[i].Date)
		if err != nil {
			return nil
		}
		days := int(latest.Sub(healthy).Hours() / 24)
		return &days
	}
	return nil
}

// rootCauses: 빈도 내림차순, 동률은 코드 오름차순
func rootCauses(records []contracts.HealthRecord, window, limit int) []RootCause {
	counts := make(map[string]int)
	for _, r := range tail(records, window) {
		for _, v := range r.Violations {
			counts[v]++
		}
	}

	ranked := make([]RootCause, 0, len(counts))
	for v, c := range counts {
		ranked = append(ranked, RootCause{Violation: v, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Violation < ranked[j].Violation
	})
	return ranked[:min(len(ranked), limit)]
}
