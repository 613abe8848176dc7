package scheduler

import (
	"context"
	"errors"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression (with seconds)
	// Examples: "0 40 15 * * 1-5" (weekdays 15:40:00)
	//           "@daily", "@every 1h"
	Schedule() string
}

// PermanentError marks a job failure that retrying cannot fix
// 예: 지표 누락, 설정 오류 → 재시도 없이 실패 기록
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the scheduler does not retry it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked permanent
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// jobHistory keeps running totals per job
// 결과 목록 대신 집계만 유지 (장기 실행 프로세스 메모리 고정)
type jobHistory struct {
	total    int
	failures int

	lastRun     time.Time
	lastSuccess time.Time
	lastFailure time.Time
	lastError   string
}

func (h *jobHistory) record(r JobResult) {
	h.total++
	h.lastRun = r.StartTime
	if r.Success {
		h.lastSuccess = r.StartTime
		return
	}
	h.failures++
	h.lastFailure = r.StartTime
	h.lastError = r.Error
}

func (h *jobHistory) stats(name, schedule string) JobStats {
	st := JobStats{
		JobName:      name,
		Schedule:     schedule,
		TotalRuns:    h.total,
		SuccessCount: h.total - h.failures,
		FailureCount: h.failures,
		LastRun:      timePtr(h.lastRun),
		LastSuccess:  timePtr(h.lastSuccess),
		LastFailure:  timePtr(h.lastFailure),
		LastError:    h.lastError,
	}
	if h.total > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(h.total)
	}
	return st
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
