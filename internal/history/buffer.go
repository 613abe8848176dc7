package history

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/wonny/aegis-regime/internal/contracts"
)

// ErrMalformed marks stored history that could not be decoded
// 엔진은 이를 빈 히스토리로 취급 (사이클 실패 아님)
var ErrMalformed = errors.New("malformed regime history")

// RerunDepth is how many of the latest cycles can be re-run and still see a full window
const RerunDepth = 20

// Capacity returns the history size needed for a stability window of k
// 최근 RerunDepth개 사이클 중 어느 것을 재실행해도 이전 k개가 남아야 함
func Capacity(k int) int {
	return k + RerunDepth
}

// Buffer is a bounded in-memory regime history ordered by as_of
type Buffer struct {
	mu       sync.Mutex
	items    []contracts.RegimeAssessment
	capacity int
}

// NewBuffer creates a buffer keeping at most capacity assessments
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{capacity: capacity}
}

// Recent returns up to k assessments before the given time, oldest first
func (b *Buffer) Recent(_ context.Context, before time.Time, k int) ([]contracts.RegimeAssessment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return window(b.items, before, k), nil
}

// Append upserts an assessment by as_of, evicting the oldest beyond capacity
func (b *Buffer) Append(_ context.Context, a contracts.RegimeAssessment) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = bounded(upsert(b.items, a), b.capacity)
	return nil
}

// Len returns the number of buffered assessments
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func byAsOf(a contracts.RegimeAssessment, t time.Time) int {
	return a.AsOf.Compare(t)
}

// upsert replaces the entry with a's as_of or inserts a in order
// items는 as_of 오름차순이어야 함
func upsert(items []contracts.RegimeAssessment, a contracts.RegimeAssessment) []contracts.RegimeAssessment {
	i, found := slices.BinarySearchFunc(items, a.AsOf, byAsOf)
	if found {
		items[i] = a
		return items
	}
	return slices.Insert(items, i, a)
}

// window copies the (at most k) entries strictly before the given time
func window(items []contracts.RegimeAssessment, before time.Time, k int) []contracts.RegimeAssessment {
	if k <= 0 {
		return []contracts.RegimeAssessment{}
	}
	end, _ := slices.BinarySearchFunc(items, before, byAsOf)
	out := make([]contracts.RegimeAssessment, 0, min(k, end))
	return append(out, items[max(end-k, 0):end]...)
}

// sortByAsOf orders entries written by older versions (append order)
func sortByAsOf(items []contracts.RegimeAssessment) {
	slices.SortStableFunc(items, func(a, b contracts.RegimeAssessment) int {
		return a.AsOf.Compare(b.AsOf)
	})
}

// lastN copies the trailing k items (k <= 0: none)
func lastN[T any](items []T, k int) []T {
	if k <= 0 {
		return []T{}
	}
	if len(items) > k {
		items = items[len(items)-k:]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func bounded[T any](items []T, capacity int) []T {
	if len(items) > capacity {
		return append([]T(nil), items[len(items)-capacity:]...)
	}
	return items
}
