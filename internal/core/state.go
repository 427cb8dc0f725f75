package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/falkerops/partnerload/internal/report"
	"github.com/falkerops/partnerload/internal/utils"
)

// CompletedRecord is a record that needs no further attempt.
type CompletedRecord struct {
	Status      report.Status `json:"status"`
	CompletedAt time.Time     `json:"completed_at"`
}

// ResumeState remembers which tax ids are already done so an interrupted run can be
// restarted on the same input. With an empty path it only lives in memory.
type ResumeState struct {
	mu        sync.Mutex
	path      string
	UpdatedAt time.Time                  `json:"updated_at"`
	Records   map[string]CompletedRecord `json:"records"`
}

// LoadResumeState reads the state at path. A missing file yields an empty state.
func LoadResumeState(path string) (*ResumeState, error) {
	st := &ResumeState{path: path, Records: make(map[string]CompletedRecord)}
	if path == "" {
		return st, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read resume state %s: %w", path, err)
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse resume state %s: %w", path, err)
	}
	if st.Records == nil {
		st.Records = make(map[string]CompletedRecord)
	}
	return st, nil
}

// IsDone reports whether taxID was completed in this or a previous run.
func (s *ResumeState) IsDone(taxID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Records[taxID]
	return ok
}

// Len returns the number of completed records.
func (s *ResumeState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Records)
}

// MarkDone stores taxID with status and persists the state.
func (s *ResumeState) MarkDone(taxID string, status report.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.Records[taxID] = CompletedRecord{Status: status, CompletedAt: now}
	s.UpdatedAt = now
	return s.save()
}

// save writes through a temporary file so a crash never leaves a truncated state.
func (s *ResumeState) save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode resume state: %w", err)
	}
	if err := utils.EnsureFilepathExists(s.path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".resume-*")
	if err != nil {
		return fmt.Errorf("failed to write resume state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write resume state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write resume state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace resume state %s: %w", s.path, err)
	}
	return nil
}
