package classifier

import (
	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/internal/policy"
)

// BucketPolicy maps normalized indicator values onto signal buckets
// 컷 포인트는 정책이므로 교체 가능해야 함
type BucketPolicy interface {
	Trend(v float64) contracts.TrendSignal
	Volatility(v float64) contracts.VolatilitySignal
	Breadth(v float64) contracts.BreadthSignal
}

// ThresholdPolicy is the default BucketPolicy built from configured cut points
type ThresholdPolicy struct {
	cfg policy.ClassifierPolicy
}

// NewThresholdPolicy creates a threshold bucket policy
func NewThresholdPolicy(cfg policy.ClassifierPolicy) *ThresholdPolicy {
	return &ThresholdPolicy{cfg: cfg}
}

// Trend buckets the trend reading
func (p *ThresholdPolicy) Trend(v float64) contracts.TrendSignal {
	switch {
	case v >= p.cfg.Trend.Upper:
		return contracts.TrendBullish
	case v <= p.cfg.Trend.Lower:
		return contracts.TrendBearish
	default:
		return contracts.TrendNeutral
	}
}

// Volatility buckets the volatility reading
func (p *ThresholdPolicy) Volatility(v float64) contracts.VolatilitySignal {
	switch {
	case v >= p.cfg.Volatility.HighMin:
		return contracts.VolatilityHigh
	case v >= p.cfg.Volatility.ElevatedMin:
		return contracts.VolatilityElevated
	default:
		return contracts.VolatilityLow
	}
}

// Breadth buckets the breadth reading
func (p *ThresholdPolicy) Breadth(v float64) contracts.BreadthSignal {
	switch {
	case v >= p.cfg.Breadth.Upper:
		return contracts.BreadthStrong
	case v <= p.cfg.Breadth.Lower:
		return contracts.BreadthWeak
	default:
		return contracts.BreadthNeutral
	}
}

// Classifier implements R0: regime classification
// ⭐ SSOT: 레짐 라벨 결정은 여기서만
type Classifier struct {
	buckets BucketPolicy
}

// New creates a classifier using the given bucket policy
func New(buckets BucketPolicy) *Classifier {
	return &Classifier{buckets: buckets}
}

// Classify maps a snapshot onto a regime label and signal buckets
// 카테고리가 하나라도 없으면 InsufficientDataError (추측하지 않음)
func (c *Classifier) Classify(snapshot contracts.IndicatorSnapshot) (contracts.Classification, error) {
	if missing := snapshot.MissingCategories(); len(missing) > 0 {
		return contracts.Classification{}, &contracts.InsufficientDataError{Missing: missing}
	}

	signals := contracts.Signals{
		Trend:      c.buckets.Trend(*snapshot.Trend),
		Volatility: c.buckets.Volatility(*snapshot.Volatility),
		Breadth:    c.buckets.Breadth(*snapshot.Breadth),
	}

	var change *float64
	if snapshot.VolatilityChange != nil {
		change = contracts.Float(*snapshot.VolatilityChange)
	}

	return contracts.Classification{
		Regime:           regimeFor(signals),
		Signals:          signals,
		VolatilityChange: change,
		AsOf:             snapshot.Timestamp,
	}, nil
}

// regimeFor: 추세와 시장 폭이 같은 방향일 때만 방향성 레짐
// 변동성은 라벨에 영향 없음 (신뢰도에서만 반영)
func regimeFor(s contracts.Signals) contracts.Regime {
	switch {
	case s.Trend == contracts.TrendBullish && s.Breadth == contracts.BreadthStrong:
		return contracts.RegimeBull
	case s.Trend == contracts.TrendBearish && s.Breadth == contracts.BreadthWeak:
		return contracts.RegimeBear
	default:
		return contracts.RegimeSideways
	}
}
