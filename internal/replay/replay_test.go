package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/quizoracle/quizoracle/internal/games"
	"github.com/quizoracle/quizoracle/internal/models"
	"github.com/quizoracle/quizoracle/internal/predict"
	"github.com/quizoracle/quizoracle/internal/solver"
)

func replayQuestion(id, number int, correct, predicted string) models.Question {
	q := models.Question{
		ID:     id,
		Number: number,
		Text:   "Question text",
		Answers: map[string]string{
			"A": "one", "B": "two", "C": "three",
		},
		Correct: correct,
	}
	if predicted != "" {
		q.Prediction = &models.Prediction{
			Answer:     predicted,
			Confidence: map[string]int{predicted: 100},
		}
	}
	return q
}

func seedGames(t *testing.T, store *games.Store) {
	t.Helper()
	records := []*models.GameRecord{
		{
			ShowID:    7,
			Timestamp: "2024-01-01T21:00:00.000Z",
			Questions: []models.Question{
				replayQuestion(103, 3, "A", "A"),
				replayQuestion(101, 1, "B", "B"),
				replayQuestion(102, 2, "C", "A"),
			},
		},
		{
			ShowID:    8,
			Timestamp: "2024-01-02T21:00:00.000Z",
			Questions: []models.Question{
				replayQuestion(205, 5, "A", "C"),
				replayQuestion(204, 4, "B", "B"),
			},
		},
	}
	for _, record := range records {
		if err := store.CreateIfAbsent(record); err != nil {
			t.Fatalf("failed to seed game record: %v", err)
		}
	}
}

func TestLoadQuestionsSortsAndMarksReplay(t *testing.T) {
	store := games.NewStore(t.TempDir())
	seedGames(t, store)
	replayer := New(store, games.NewReplayStore(t.TempDir()+"/replay.json"), nil)

	questions, err := replayer.LoadQuestions()
	if err != nil {
		t.Fatalf("LoadQuestions failed: %v", err)
	}
	if len(questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(questions))
	}
	for i, want := range []int{1, 2, 3, 4, 5} {
		if questions[i].Number != want {
			t.Errorf("questions[%d].Number = %d, want %d", i, questions[i].Number, want)
		}
		if !questions[i].Replay {
			t.Errorf("questions[%d] not marked as replay", i)
		}
	}
}

func TestLoadQuestionsSubset(t *testing.T) {
	store := games.NewStore(t.TempDir())
	seedGames(t, store)
	replayer := New(store, games.NewReplayStore(t.TempDir()+"/replay.json"), nil)

	questions, err := replayer.LoadQuestions("2024-01-02-game-8")
	if err != nil {
		t.Fatalf("LoadQuestions failed: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
}

// missTransport simulates an empty response cache: every lookup misses.
type missTransport struct{}

func (missTransport) Get(context.Context, string) (*solver.Document, error) {
	return nil, errors.New("document not cached")
}

func TestPlayRecordsNoSignalOnCacheMiss(t *testing.T) {
	store := games.NewStore(t.TempDir())
	seedGames(t, store)
	results := games.NewReplayStore(t.TempDir() + "/replay.json")
	engine := predict.New(missTransport{}, solver.NewAnswerWordsSolver("https://search.example/?q=", 2))
	replayer := New(store, results, engine)

	pass, err := replayer.Play(context.Background())
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if pass.ID == "" {
		t.Error("pass has no ID")
	}
	if len(pass.Questions) != 5 {
		t.Fatalf("pass recorded %d questions, want 5", len(pass.Questions))
	}
	for _, q := range pass.Questions {
		if q.Prediction == nil {
			t.Fatalf("question %d recorded without a prediction", q.ID)
		}
		if q.Prediction.HasSignal() {
			t.Errorf("question %d has signal despite empty cache", q.ID)
		}
	}

	passes, err := results.LoadPasses()
	if err != nil {
		t.Fatalf("LoadPasses failed: %v", err)
	}
	if len(passes) != 1 {
		t.Fatalf("expected 1 stored pass, got %d", len(passes))
	}
}

func TestBuildReportBaselineRow(t *testing.T) {
	passes := []models.ReplayPass{
		{ID: "base", Questions: []models.Question{
			replayQuestion(101, 1, "B", "B"),
			replayQuestion(102, 2, "C", "A"),
			replayQuestion(103, 3, "A", "A"),
		}},
	}

	report := buildReport(passes)
	if len(report.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(report.Rows))
	}
	wantRow := []int{1, -1, 1}
	for i, want := range wantRow {
		if report.Rows[0][i] != want {
			t.Errorf("baseline[%d] = %d, want %d", i, report.Rows[0][i], want)
		}
	}
	if got := report.Accuracy[0]; got < 66.6 || got > 66.7 {
		t.Errorf("baseline accuracy = %.2f, want ~66.67", got)
	}
}

func TestBuildReportLaterPassesCompareToBaseline(t *testing.T) {
	passes := []models.ReplayPass{
		{ID: "base", Questions: []models.Question{
			replayQuestion(101, 1, "B", "B"),
			replayQuestion(102, 2, "C", "A"),
		}},
		{ID: "next", Questions: []models.Question{
			replayQuestion(101, 1, "B", "A"), // newly wrong
			replayQuestion(102, 2, "C", "C"), // newly right
		}},
		{ID: "same", Questions: []models.Question{
			replayQuestion(101, 1, "B", "B"), // unchanged vs baseline
			replayQuestion(102, 2, "C", "A"), // unchanged vs baseline
		}},
	}

	report := buildReport(passes)
	if len(report.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(report.Rows))
	}
	second := report.Rows[1]
	if second[0] != models.OutcomeWorse || second[1] != models.OutcomeBetter {
		t.Errorf("second row = %v, want [-1 1]", second)
	}
	third := report.Rows[2]
	if third[0] != models.OutcomeUnchanged || third[1] != models.OutcomeUnchanged {
		t.Errorf("third row = %v, want [0 0]", third)
	}

	if report.Latest() != 50 {
		t.Errorf("Latest = %.1f, want 50.0", report.Latest())
	}
	if report.Overall() != 50 {
		t.Errorf("Overall = %.1f, want 50.0", report.Overall())
	}
}

func TestBuildReportEmpty(t *testing.T) {
	report := buildReport(nil)
	if len(report.Rows) != 0 || len(report.Columns) != 0 {
		t.Error("empty pass list produced a non-empty report")
	}
	if report.Overall() != 0 || report.Latest() != 0 {
		t.Error("empty report has non-zero accuracy")
	}
}
