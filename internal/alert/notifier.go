package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-regime/internal/contracts"
	"github.com/wonny/aegis-regime/pkg/config"
	"github.com/wonny/aegis-regime/pkg/httputil"
	"github.com/wonny/aegis-regime/pkg/logger"
	"github.com/wonny/aegis-regime/pkg/redis"
)

// Delivery results (metrics label)
const (
	ResultSent      = "sent"
	ResultThrottled = "throttled"
	ResultFailed    = "failed"
)

// Payload is the webhook body of a CRITICAL health alert
type Payload struct {
	CycleID         string                    `json:"cycle_id"`
	AsOf            time.Time                 `json:"as_of"`
	Regime          contracts.Regime          `json:"regime"`
	Confidence      float64                   `json:"confidence"`
	ConfidenceLevel contracts.ConfidenceLevel `json:"confidence_level"`
	HealthScore     int                       `json:"health_score"`
	Status          contracts.HealthStatus    `json:"status"`
	Violations      []string                  `json:"violations"`
	Explanations    []string                  `json:"explanations"`
}

// NewPayload builds the alert body of a cycle
func NewPayload(out *contracts.CycleOutput) Payload {
	return Payload{
		CycleID:         out.CycleID,
		AsOf:            out.Regime.AsOf,
		Regime:          out.Regime.Regime,
		Confidence:      out.Regime.Confidence,
		ConfidenceLevel: out.Regime.ConfidenceLevel,
		HealthScore:     out.Health.Score,
		Status:          out.Health.Status,
		Violations:      out.Health.Violations,
		Explanations:    out.Health.Explanations,
	}
}

// Recorder receives delivery results (implemented by metrics.Registry)
type Recorder interface {
	RecordAlert(result string)
}

// Notifier posts CRITICAL cycles to a webhook
// ⭐ SSOT: 알림 발송은 여기서만 (사이클은 AlertRequired 플래그만 설정)
type Notifier struct {
	webhookURL string
	client     *httputil.Client
	limiter    *redis.RateLimiter
	limit      redis.RateLimitConfig
	recorder   Recorder
	logger     *logger.Logger
}

// NewNotifier creates a webhook notifier throttled by the redis rate limiter
// Redis 비활성 시 스로틀 없이 모두 발송
func NewNotifier(cfg config.AlertConfig, client *redis.Client, log *logger.Logger) *Notifier {
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		client:     httputil.New(cfg.Timeout, log),
		limiter:    redis.NewRateLimiter(client, "regime"),
		limit:      redis.AlertRateLimit(cfg.MaxPerHour),
		logger:     log,
	}
}

// WithRecorder sets the delivery result recorder
func (n *Notifier) WithRecorder(r Recorder) *Notifier {
	n.recorder = r
	return n
}

// WithRetry overrides the webhook retry policy
func (n *Notifier) WithRetry(maxRetries int, initialDelay time.Duration) *Notifier {
	n.client.WithRetry(maxRetries, initialDelay)
	return n
}

// Publish sends an alert when the cycle requires one
func (n *Notifier) Publish(ctx context.Context, out *contracts.CycleOutput) error {
	if !out.Health.AlertRequired {
		return nil
	}

	log := n.logger.WithFields(map[string]interface{}{
		"cycle_id":     out.CycleID,
		"health_score": out.Health.Score,
	})

	decision, err := n.limiter.Allow(ctx, n.limit)
	if err != nil {
		// 리미터 장애 시에도 CRITICAL 알림은 발송
		log.WithError(err).Warn("Alert rate limiter unavailable")
	} else if !decision.Allowed {
		n.record(ResultThrottled)
		log.WithField("retry_after", decision.RetryAfter.String()).Warn("CRITICAL alert throttled")
		return nil
	}

	resp, err := n.client.PostJSON(ctx, n.webhookURL, NewPayload(out))
	if err != nil {
		n.record(ResultFailed)
		return fmt.Errorf("failed to send alert: %w", err)
	}
	if !resp.OK() {
		n.record(ResultFailed)
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	n.record(ResultSent)
	log.Info("CRITICAL alert sent")
	return nil
}

func (n *Notifier) record(result string) {
	if n.recorder != nil {
		n.recorder.RecordAlert(result)
	}
}
