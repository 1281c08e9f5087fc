// Package games persists game records and replay results as JSON files.
// One file per show, written with stable key ordering for diffability.
// Records are rewritten whole on each mutation (read-modify-write); a crash
// mid-write corrupts the file, which is an accepted limitation, though the
// temp-file-and-rename write keeps the window small.
package games

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quizoracle/quizoracle/internal/models"
)

// ErrQuestionNotFound is returned when a question summary arrives for a
// question that was never recorded. Continuing would silently misattribute
// the correct answer, so callers must treat this as a hard lookup failure.
var ErrQuestionNotFound = errors.New("no recorded question matches")

// ErrGameNotFound is returned when no record file exists for a game ID.
var ErrGameNotFound = errors.New("game record not found")

// Store reads and writes per-show game record files under one directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(gameID string) string {
	return filepath.Join(s.dir, gameID+".json")
}

// CreateIfAbsent writes a fresh record file for the show unless one already
// exists. Reconnecting mid-show must not truncate the questions recorded so
// far.
func (s *Store) CreateIfAbsent(record *models.GameRecord) error {
	if _, err := os.Stat(s.path(record.GameID())); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat game record: %w", err)
	}
	if record.Questions == nil {
		record.Questions = []models.Question{}
	}
	return s.Save(record)
}

// Load reads one game record by ID.
func (s *Store) Load(gameID string) (*models.GameRecord, error) {
	data, err := os.ReadFile(s.path(gameID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", gameID, ErrGameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game record: %w", err)
	}
	var record models.GameRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game record %s: %w", gameID, err)
	}
	return &record, nil
}

// Save writes a game record with an atomic temp-file-and-rename.
func (s *Store) Save(record *models.GameRecord) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create games directory: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}
	path := s.path(record.GameID())
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write game record: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename game record: %w", err)
	}
	return nil
}

// UpsertQuestion appends the question to the record, or replaces the stored
// snapshot when a question with the same ID is already present.
func (s *Store) UpsertQuestion(gameID string, q models.Question) error {
	record, err := s.Load(gameID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range record.Questions {
		if record.Questions[i].ID == q.ID {
			record.Questions[i] = q
			replaced = true
			break
		}
	}
	if !replaced {
		record.Questions = append(record.Questions, q)
	}
	return s.Save(record)
}

// SetCorrect resolves the correct answer for the recorded question with the
// given ID and bumps numCorrect when the stored prediction matched. Returns
// whether the prediction was correct.
func (s *Store) SetCorrect(gameID string, questionID int, correct string) (bool, error) {
	record, err := s.Load(gameID)
	if err != nil {
		return false, err
	}
	for i := range record.Questions {
		if record.Questions[i].ID != questionID {
			continue
		}
		record.Questions[i].Correct = correct
		right := record.Questions[i].AnsweredCorrectly()
		if right {
			record.NumCorrect++
		}
		if err := s.Save(record); err != nil {
			return false, err
		}
		return right, nil
	}
	return false, fmt.Errorf("question %d in game %s: %w", questionID, gameID, ErrQuestionNotFound)
}

// List returns the IDs of every stored game record, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read games directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadAll reads every stored game record, sorted by game ID.
func (s *Store) LoadAll(gameIDs ...string) ([]models.GameRecord, error) {
	ids := gameIDs
	if len(ids) == 0 {
		var err error
		ids, err = s.List()
		if err != nil {
			return nil, err
		}
	}
	records := make([]models.GameRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// AllQuestions flattens the given records into one question list sorted
// ascending by question number. Replayers rely on this ordering even when
// questions arrived out of order during the live show.
func AllQuestions(records []models.GameRecord) []models.Question {
	var questions []models.Question
	for _, record := range records {
		questions = append(questions, record.Questions...)
	}
	models.SortQuestionsByNumber(questions)
	return questions
}
