// Package models defines the core domain entities for the quizoracle application.
// These models represent trivia questions, per-show game records, and prediction
// results. All models include built-in validation to ensure data integrity
// throughout the application.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Letters is the fixed set of answer keys, in choosing order.
var Letters = []string{"A", "B", "C"}

// Prediction holds the chosen answer and the per-answer confidence percentages
// for one question. Percentages are independent floor-rounded shares, so they
// need not sum to exactly 100; they are all zero when no solver produced signal.
type Prediction struct {
	Answer     string         `json:"answer"`
	Confidence map[string]int `json:"confidence"`
}

// HasSignal reports whether any solver contributed to this prediction.
func (p *Prediction) HasSignal() bool {
	for _, pct := range p.Confidence {
		if pct > 0 {
			return true
		}
	}
	return false
}

// Question represents one trivia question of a show, its three candidate
// answers, and (once known) the correct answer and the bot's prediction.
// The Replay flag marks questions re-run from recorded games; those never
// trigger live side effects and persist to the replay-results store.
type Question struct {
	ID         int               `json:"questionId"`
	Number     int               `json:"questionNumber"`
	Text       string            `json:"question"`
	Category   string            `json:"category"`
	Answers    map[string]string `json:"answers"`
	Correct    string            `json:"correct,omitempty"`
	Prediction *Prediction       `json:"prediction,omitempty"`
	Replay     bool              `json:"-"`
}

// Validate checks that all question fields are valid.
func (q *Question) Validate() error {
	if q.ID == 0 {
		return errors.New("question ID must not be zero")
	}
	if q.Number <= 0 {
		return errors.New("question number must be positive")
	}
	if q.Text == "" {
		return errors.New("question text must not be empty")
	}
	if len(q.Answers) != len(Letters) {
		return fmt.Errorf("answers must have exactly %d entries", len(Letters))
	}
	for _, letter := range Letters {
		if _, ok := q.Answers[letter]; !ok {
			return fmt.Errorf("answers must contain letter %s", letter)
		}
	}
	if q.Correct != "" && !validLetter(q.Correct) {
		return fmt.Errorf("correct answer %q is not a valid letter", q.Correct)
	}
	if q.Prediction != nil {
		if q.Prediction.Answer != "" && !validLetter(q.Prediction.Answer) {
			return fmt.Errorf("predicted answer %q is not a valid letter", q.Prediction.Answer)
		}
		for letter, pct := range q.Prediction.Confidence {
			if !validLetter(letter) {
				return fmt.Errorf("confidence letter %q is not valid", letter)
			}
			if pct < 0 {
				return fmt.Errorf("confidence for %s must not be negative", letter)
			}
		}
	}
	return nil
}

// AnsweredCorrectly reports whether the prediction matches the known correct
// answer. Returns false when either side is missing.
func (q *Question) AnsweredCorrectly() bool {
	if q.Correct == "" || q.Prediction == nil {
		return false
	}
	return q.Correct == q.Prediction.Answer
}

func validLetter(letter string) bool {
	for _, l := range Letters {
		if l == letter {
			return true
		}
	}
	return false
}

// answerOption is one element of the array form of an inbound answer list.
type answerOption struct {
	Text string `json:"text"`
}

// ParseAnswers normalizes an inbound answer payload into the canonical
// letter-keyed map. The show socket delivers answers either as an ordered
// array of {text} objects or as a pre-keyed {A,B,C} map; both forms are
// accepted here.
func ParseAnswers(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, errors.New("answers payload is empty")
	}

	var asList []answerOption
	if err := json.Unmarshal(raw, &asList); err == nil {
		if len(asList) != len(Letters) {
			return nil, fmt.Errorf("expected %d answers, got %d", len(Letters), len(asList))
		}
		answers := make(map[string]string, len(Letters))
		for i, option := range asList {
			answers[Letters[i]] = option.Text
		}
		return answers, nil
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("answers payload is neither a list nor a map: %w", err)
	}
	answers := make(map[string]string, len(Letters))
	for _, letter := range Letters {
		text, ok := asMap[letter]
		if !ok {
			return nil, fmt.Errorf("answers map is missing letter %s", letter)
		}
		answers[letter] = text
	}
	return answers, nil
}

// SortQuestionsByNumber orders questions ascending by question number,
// breaking ties by question ID for determinism.
func SortQuestionsByNumber(questions []Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].Number != questions[j].Number {
			return questions[i].Number < questions[j].Number
		}
		return questions[i].ID < questions[j].ID
	})
}
