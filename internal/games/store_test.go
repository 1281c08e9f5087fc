package games

import (
	"errors"
	"reflect"
	"testing"

	"github.com/quizoracle/quizoracle/internal/models"
)

func testRecord(showID int, ts string) *models.GameRecord {
	return &models.GameRecord{
		ShowID:        showID,
		Timestamp:     ts,
		Prize:         "$5,000",
		QuestionCount: 12,
		Questions:     []models.Question{},
	}
}

func testStoreQuestion(id, number, confidence int, answer string) models.Question {
	return models.Question{
		ID:     id,
		Number: number,
		Text:   "Question text",
		Answers: map[string]string{
			"A": "one", "B": "two", "C": "three",
		},
		Prediction: &models.Prediction{
			Answer:     answer,
			Confidence: map[string]int{answer: confidence},
		},
	}
}

func TestCreateIfAbsentPreservesExisting(t *testing.T) {
	store := NewStore(t.TempDir())
	record := testRecord(7, "2024-01-01T21:00:00.000Z")
	if err := store.CreateIfAbsent(record); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}

	if err := store.UpsertQuestion(record.GameID(), testStoreQuestion(101, 1, 80, "B")); err != nil {
		t.Fatalf("UpsertQuestion failed: %v", err)
	}

	// A reconnect replays the game status; it must not truncate questions.
	if err := store.CreateIfAbsent(testRecord(7, "2024-01-01T21:00:00.000Z")); err != nil {
		t.Fatalf("second CreateIfAbsent failed: %v", err)
	}
	loaded, err := store.Load(record.GameID())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Questions) != 1 {
		t.Fatalf("reconnect truncated questions: %d left", len(loaded.Questions))
	}
}

func TestUpsertQuestionReplacesByID(t *testing.T) {
	store := NewStore(t.TempDir())
	record := testRecord(7, "2024-01-01T21:00:00.000Z")
	if err := store.CreateIfAbsent(record); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}
	gameID := record.GameID()

	if err := store.UpsertQuestion(gameID, testStoreQuestion(101, 1, 50, "A")); err != nil {
		t.Fatalf("UpsertQuestion failed: %v", err)
	}
	if err := store.UpsertQuestion(gameID, testStoreQuestion(102, 2, 60, "C")); err != nil {
		t.Fatalf("UpsertQuestion failed: %v", err)
	}
	// Re-delivery of question 101 replaces the stored snapshot.
	if err := store.UpsertQuestion(gameID, testStoreQuestion(101, 1, 90, "B")); err != nil {
		t.Fatalf("UpsertQuestion failed: %v", err)
	}

	loaded, err := store.Load(gameID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(loaded.Questions))
	}
	if loaded.Questions[0].Prediction.Answer != "B" {
		t.Errorf("question 101 not replaced: prediction %q", loaded.Questions[0].Prediction.Answer)
	}
}

func TestSetCorrect(t *testing.T) {
	store := NewStore(t.TempDir())
	record := testRecord(7, "2024-01-01T21:00:00.000Z")
	if err := store.CreateIfAbsent(record); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}
	gameID := record.GameID()

	if err := store.UpsertQuestion(gameID, testStoreQuestion(101, 1, 80, "B")); err != nil {
		t.Fatalf("UpsertQuestion failed: %v", err)
	}
	if err := store.UpsertQuestion(gameID, testStoreQuestion(102, 2, 70, "A")); err != nil {
		t.Fatalf("UpsertQuestion failed: %v", err)
	}

	right, err := store.SetCorrect(gameID, 101, "B")
	if err != nil {
		t.Fatalf("SetCorrect failed: %v", err)
	}
	if !right {
		t.Error("matching prediction reported as wrong")
	}

	right, err = store.SetCorrect(gameID, 102, "C")
	if err != nil {
		t.Fatalf("SetCorrect failed: %v", err)
	}
	if right {
		t.Error("mismatching prediction reported as right")
	}

	loaded, err := store.Load(gameID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.NumCorrect != 1 {
		t.Errorf("NumCorrect = %d, want 1", loaded.NumCorrect)
	}
	if loaded.Questions[1].Correct != "C" {
		t.Errorf("question 102 Correct = %q, want C", loaded.Questions[1].Correct)
	}
}

func TestSetCorrectUnknownQuestion(t *testing.T) {
	store := NewStore(t.TempDir())
	record := testRecord(7, "2024-01-01T21:00:00.000Z")
	if err := store.CreateIfAbsent(record); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}

	_, err := store.SetCorrect(record.GameID(), 999, "A")
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestLoadMissingGame(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load("2024-01-01-game-404")
	if !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestListAndLoadAll(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, record := range []*models.GameRecord{
		testRecord(9, "2024-01-03T21:00:00.000Z"),
		testRecord(7, "2024-01-01T21:00:00.000Z"),
		testRecord(8, "2024-01-02T21:00:00.000Z"),
	} {
		if err := store.CreateIfAbsent(record); err != nil {
			t.Fatalf("CreateIfAbsent failed: %v", err)
		}
	}

	ids, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"2024-01-01-game-7", "2024-01-02-game-8", "2024-01-03-game-9"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List = %v, want %v", ids, want)
	}

	records, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("LoadAll returned %d records, want 3", len(records))
	}
}

func TestAllQuestionsSortedByNumber(t *testing.T) {
	records := []models.GameRecord{
		{ShowID: 7, Timestamp: "2024-01-01T21:00:00.000Z", Questions: []models.Question{
			testStoreQuestion(103, 3, 10, "A"),
			testStoreQuestion(101, 1, 10, "A"),
		}},
		{ShowID: 8, Timestamp: "2024-01-02T21:00:00.000Z", Questions: []models.Question{
			testStoreQuestion(202, 2, 10, "A"),
		}},
	}

	questions := AllQuestions(records)
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	for i, want := range []int{1, 2, 3} {
		if questions[i].Number != want {
			t.Errorf("questions[%d].Number = %d, want %d", i, questions[i].Number, want)
		}
	}
}

func TestReplayStoreAppendAndLoad(t *testing.T) {
	store := NewReplayStore(t.TempDir() + "/replay_results.json")

	passes, err := store.LoadPasses()
	if err != nil {
		t.Fatalf("LoadPasses on missing file failed: %v", err)
	}
	if len(passes) != 0 {
		t.Fatalf("expected no passes, got %d", len(passes))
	}

	first := models.ReplayPass{ID: "pass-1", Questions: []models.Question{testStoreQuestion(101, 1, 10, "A")}}
	if err := store.AppendPass(first); err != nil {
		t.Fatalf("AppendPass failed: %v", err)
	}
	second := models.ReplayPass{ID: "pass-2", Questions: []models.Question{testStoreQuestion(101, 1, 20, "B")}}
	if err := store.AppendPass(second); err != nil {
		t.Fatalf("AppendPass failed: %v", err)
	}

	passes, err = store.LoadPasses()
	if err != nil {
		t.Fatalf("LoadPasses failed: %v", err)
	}
	if len(passes) != 2 {
		t.Fatalf("expected 2 passes, got %d", len(passes))
	}
	if passes[0].ID != "pass-1" || passes[1].ID != "pass-2" {
		t.Errorf("passes out of order: %s, %s", passes[0].ID, passes[1].ID)
	}
}
