package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis-regime/internal/contracts"
)

const (
	regimeFile = "regime_history.json"
	healthFile = "health_history.json"
)

// FileStore persists regime and health history as JSON files
// 단일 프로세스 전제 (CLI/스케줄러), 쓰기는 임시 파일 + rename
type FileStore struct {
	dir      string
	capacity int
	mu       sync.Mutex
}

// NewFileStore creates a file-backed store under dir
// capacity: 보관할 레짐 평가 최대 개수
func NewFileStore(dir string, capacity int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	if capacity < 1 {
		capacity = 1
	}
	return &FileStore{dir: dir, capacity: capacity}, nil
}

// Recent returns up to k assessments before the given time, oldest first
func (s *FileStore) Recent(_ context.Context, before time.Time, k int) ([]contracts.RegimeAssessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readRegime()
	if err != nil {
		return nil, err
	}
	return window(items, before, k), nil
}

// Append upserts an assessment by as_of, keeping at most capacity entries
// 과거 as_of 재실행도 제자리를 대체 (멱등)
func (s *FileStore) Append(_ context.Context, a contracts.RegimeAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readRegime()
	if err != nil && !errors.Is(err, ErrMalformed) {
		return err
	}
	return s.write(regimeFile, bounded(upsert(items, a), s.capacity))
}

// readRegime loads the regime history ordered by as_of
func (s *FileStore) readRegime() ([]contracts.RegimeAssessment, error) {
	var items []contracts.RegimeAssessment
	if err := s.read(regimeFile, &items); err != nil {
		return nil, err
	}
	sortByAsOf(items)
	return items, nil
}

// UpsertHealth replaces the record for rec.Date and keeps records sorted by date
func (s *FileStore) UpsertHealth(_ context.Context, rec contracts.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []contracts.HealthRecord
	if err := s.read(healthFile, &records); err != nil {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if r.Date != rec.Date {
			kept = append(kept, r)
		}
	}
	kept = append(kept, rec)
	// YYYY-MM-DD는 문자열 정렬 = 날짜 정렬
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date < kept[j].Date })

	return s.write(healthFile, kept)
}

// ListHealth returns up to limit most recent records, oldest first
func (s *FileStore) ListHealth(_ context.Context, limit int) ([]contracts.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []contracts.HealthRecord
	if err := s.read(healthFile, &records); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = len(records)
	}
	return lastN(records, limit), nil
}

// read decodes a JSON file; a missing file is empty history
func (s *FileStore) read(name string, dest interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return nil
}

func (s *FileStore) write(name string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}
