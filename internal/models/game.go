package models

import (
	"errors"
	"fmt"
	"time"
)

// GameRecord is the persisted record of one show: its metadata plus every
// question in arrival order. One JSON file per show; the whole record is
// rewritten on each mutation.
type GameRecord struct {
	ShowID        int        `json:"showId"`
	Timestamp     string     `json:"ts"`
	Prize         string     `json:"prize"`
	QuestionCount int        `json:"questionCount"`
	NumCorrect    int        `json:"numCorrect"`
	Questions     []Question `json:"questions"`
}

// Validate checks that all game record fields are valid.
func (g *GameRecord) Validate() error {
	if g.ShowID == 0 {
		return errors.New("show ID must not be zero")
	}
	if g.QuestionCount < 0 {
		return errors.New("question count must not be negative")
	}
	if g.NumCorrect < 0 || g.NumCorrect > len(g.Questions) {
		return errors.New("numCorrect must be between 0 and the number of questions")
	}
	for i := range g.Questions {
		if err := g.Questions[i].Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// GameID returns the file identity of a show record, derived from the date
// prefix of the game-status timestamp and the show ID.
func (g *GameRecord) GameID() string {
	date := g.Timestamp
	if len(date) > 10 {
		date = date[:10]
	}
	return fmt.Sprintf("%s-game-%d", date, g.ShowID)
}

// ReplayPass is one full re-run of every recorded question through the
// prediction engine. The first stored pass is the baseline that later
// passes are compared against.
type ReplayPass struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"startedAt"`
	Questions []Question `json:"questions"`
}

// Outcome codes for a replay-report cell.
const (
	OutcomeWorse     = -1
	OutcomeUnchanged = 0
	OutcomeBetter    = 1
)
