package games

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quizoracle/quizoracle/internal/models"
)

// ReplayStore persists replay passes to a single JSON file, kept separate
// from the live game records. A prior pass is fully on disk before a later
// pass reads it as the comparison baseline.
type ReplayStore struct {
	path string
}

// NewReplayStore creates a replay-results store backed by one file.
func NewReplayStore(path string) *ReplayStore {
	return &ReplayStore{path: path}
}

// LoadPasses reads every stored replay pass, oldest first. A missing file
// yields an empty list.
func (s *ReplayStore) LoadPasses() ([]models.ReplayPass, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read replay results: %w", err)
	}
	var passes []models.ReplayPass
	if err := json.Unmarshal(data, &passes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal replay results: %w", err)
	}
	return passes, nil
}

// AppendPass appends one completed pass and rewrites the results file.
func (s *ReplayStore) AppendPass(pass models.ReplayPass) error {
	passes, err := s.LoadPasses()
	if err != nil {
		return err
	}
	passes = append(passes, pass)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create replay results directory: %w", err)
	}
	data, err := json.MarshalIndent(passes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal replay results: %w", err)
	}
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write replay results: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename replay results: %w", err)
	}
	return nil
}
