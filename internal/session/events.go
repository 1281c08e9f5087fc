package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/quizoracle/quizoracle/internal/logger"
	"github.com/quizoracle/quizoracle/internal/models"
)

// envelope is the superset of fields across all show event types. The type
// discriminator selects which subset is meaningful.
type envelope struct {
	Type           string          `json:"type"`
	Timestamp      string          `json:"ts"`
	ShowID         int             `json:"showId"`
	Prize          string          `json:"prize"`
	QuestionCount  int             `json:"questionCount"`
	QuestionID     int             `json:"questionId"`
	QuestionNumber int             `json:"questionNumber"`
	Category       string          `json:"category"`
	Question       string          `json:"question"`
	Answers        json.RawMessage `json:"answers"`
	AnswerCounts   []answerCount   `json:"answerCounts"`
	NumWinners     int             `json:"numWinners"`
	Winners        []winner        `json:"winners"`
	Reason         string          `json:"reason"`
}

type answerCount struct {
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
	Count   int    `json:"count"`
}

type winner struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// HandleMessage parses one raw socket payload and dispatches it. Payloads
// may carry a transport prefix before the JSON object; everything up to the
// first brace is discarded. Malformed payloads are logged and dropped, never
// fatal. Only rate limiting and record consistency errors propagate.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) error {
	start := bytes.IndexByte(raw, '{')
	if start < 0 {
		logger.Debug("dropping non-JSON payload: %q", raw)
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw[start:], &env); err != nil {
		logger.Error("dropping malformed payload: %v", err)
		return nil
	}

	switch env.Type {
	case "gameStatus":
		return s.handleGameStatus(&env)
	case "question":
		if len(env.Answers) == 0 {
			s.appendDiagnostic(string(raw[start:]))
			return nil
		}
		return s.handleQuestion(ctx, &env)
	case "questionSummary":
		return s.handleQuestionSummary(&env)
	case "gameSummary":
		s.handleGameSummary(&env)
		return nil
	case "broadcastEnded":
		if env.Reason != "" {
			logger.Info("broadcast interrupted: %s", env.Reason)
			return nil
		}
		s.ended = true
		return nil
	default:
		s.appendDiagnostic(string(raw[start:]))
		return nil
	}
}

// handleGameStatus opens (or re-opens after a reconnect) the game record for
// the current broadcast.
func (s *Session) handleGameStatus(env *envelope) error {
	record := &models.GameRecord{
		ShowID:        env.ShowID,
		Timestamp:     env.Timestamp,
		Prize:         env.Prize,
		QuestionCount: env.QuestionCount,
		Questions:     []models.Question{},
	}
	if err := record.Validate(); err != nil {
		logger.Error("dropping invalid gameStatus: %v", err)
		return nil
	}
	if err := s.store.CreateIfAbsent(record); err != nil {
		return fmt.Errorf("failed to open game record: %w", err)
	}
	s.currentGame = record.GameID()
	s.setState(StateInGame)
	logger.Info("GAME %s: %d questions, prize %s", s.currentGame, env.QuestionCount, env.Prize)
	return nil
}

// handleQuestion predicts an answer for the question and persists it.
// Prediction runs synchronously so it always completes before the next
// event is read.
func (s *Session) handleQuestion(ctx context.Context, env *envelope) error {
	if s.currentGame == "" {
		logger.Warn("question %d arrived before game status, dropping", env.QuestionID)
		return nil
	}

	answers, err := models.ParseAnswers(env.Answers)
	if err != nil {
		logger.Error("dropping question %d with malformed answers: %v", env.QuestionID, err)
		return nil
	}
	q := &models.Question{
		ID:       env.QuestionID,
		Number:   env.QuestionNumber,
		Text:     env.Question,
		Category: env.Category,
		Answers:  answers,
	}
	if err := q.Validate(); err != nil {
		logger.Error("dropping invalid question %d: %v", env.QuestionID, err)
		return nil
	}

	logger.Info("QUESTION %d/%d [%s]: %s", q.Number, env.QuestionCount, q.Category, q.Text)
	s.openBrowser(q.Text)

	prediction, err := s.engine.Predict(ctx, q)
	if err != nil {
		if isFatal(err) {
			return err
		}
		logger.Error("prediction failed for question %d: %v", q.ID, err)
		prediction = &models.Prediction{Confidence: map[string]int{}}
		for _, letter := range models.Letters {
			prediction.Confidence[letter] = 0
		}
	}
	q.Prediction = prediction

	for _, letter := range models.Letters {
		marker := " "
		if letter == prediction.Answer {
			marker = ">"
		}
		logger.Info("%s %s: %s (%d%%)", marker, letter, q.Answers[letter], prediction.Confidence[letter])
	}
	if !prediction.HasSignal() {
		logger.Warn("no search signal for question %d", q.ID)
	}

	if err := s.store.UpsertQuestion(s.currentGame, *q); err != nil {
		return fmt.Errorf("failed to persist question %d: %w", q.ID, err)
	}

	if s.notifier != nil {
		if err := s.notifier.SendPrediction(q); err != nil {
			logger.Warn("failed to send prediction notification: %v", err)
		}
	}
	return nil
}

// handleQuestionSummary resolves the correct answer for a recorded question.
// A summary for a question that was never recorded is a consistency failure
// and propagates.
func (s *Session) handleQuestionSummary(env *envelope) error {
	if s.currentGame == "" {
		logger.Warn("question summary %d arrived before game status, dropping", env.QuestionID)
		return nil
	}

	correct := ""
	for i, count := range env.AnswerCounts {
		if count.Correct && i < len(models.Letters) {
			correct = models.Letters[i]
			break
		}
	}
	if correct == "" {
		logger.Error("question summary %d carries no correct answer, dropping", env.QuestionID)
		return nil
	}

	right, err := s.store.SetCorrect(s.currentGame, env.QuestionID, correct)
	if err != nil {
		return fmt.Errorf("failed to record outcome for question %d: %w", env.QuestionID, err)
	}
	if right {
		logger.Info("CORRECT: answer was %s", correct)
	} else {
		logger.Info("WRONG: answer was %s", correct)
	}

	if s.notifier != nil {
		if q := s.loadQuestion(env.QuestionID); q != nil {
			if err := s.notifier.SendOutcome(q, right); err != nil {
				logger.Warn("failed to send outcome notification: %v", err)
			}
		}
	}
	return nil
}

func (s *Session) loadQuestion(questionID int) *models.Question {
	record, err := s.store.Load(s.currentGame)
	if err != nil {
		logger.Debug("failed to reload game record: %v", err)
		return nil
	}
	for i := range record.Questions {
		if record.Questions[i].ID == questionID {
			return &record.Questions[i]
		}
	}
	return nil
}

// handleGameSummary logs the winner leaderboard.
func (s *Session) handleGameSummary(env *envelope) {
	logger.Info("GAME OVER: %d winners", env.NumWinners)
	winners := make([]winner, len(env.Winners))
	copy(winners, env.Winners)
	sort.SliceStable(winners, func(i, j int) bool { return winners[i].Wins > winners[j].Wins })
	if len(winners) > 20 {
		winners = winners[:20]
	}
	for _, w := range winners {
		logger.Info("  %s (%d wins)", w.Name, w.Wins)
	}
}
