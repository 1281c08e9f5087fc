// Package replay re-runs recorded questions through the prediction engine
// using the response cache as transport, so evaluation passes never touch
// the network. Each pass is persisted separately from the live game
// records, and later passes are compared against the first (baseline) pass.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quizoracle/quizoracle/internal/games"
	"github.com/quizoracle/quizoracle/internal/logger"
	"github.com/quizoracle/quizoracle/internal/models"
	"github.com/quizoracle/quizoracle/internal/predict"
)

// Replayer drives replay passes over the stored game records.
type Replayer struct {
	store   *games.Store
	results *games.ReplayStore
	engine  *predict.Engine
}

// New creates a Replayer. The engine must be backed by the cache transport;
// the Replayer itself never selects a transport.
func New(store *games.Store, results *games.ReplayStore, engine *predict.Engine) *Replayer {
	return &Replayer{store: store, results: results, engine: engine}
}

// LoadQuestions loads every recorded question of the given games (all games
// when none are named), flagged for replay and sorted ascending by question
// number.
func (r *Replayer) LoadQuestions(gameIDs ...string) ([]models.Question, error) {
	records, err := r.store.LoadAll(gameIDs...)
	if err != nil {
		return nil, err
	}
	questions := games.AllQuestions(records)
	for i := range questions {
		questions[i].Replay = true
	}
	return questions, nil
}

// Play re-runs every loaded question through the engine and appends the
// results as a new pass. A question whose documents are missing from the
// cache is recorded with a no-signal prediction rather than aborting the
// pass.
func (r *Replayer) Play(ctx context.Context, gameIDs ...string) (*models.ReplayPass, error) {
	questions, err := r.LoadQuestions(gameIDs...)
	if err != nil {
		return nil, err
	}

	pass := models.ReplayPass{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	for _, q := range questions {
		prediction, err := r.engine.Predict(ctx, &q)
		if err != nil {
			logger.Warn("replay question %d: %v; recording no-signal prediction", q.ID, err)
			prediction = noSignal()
		}
		q.Prediction = prediction
		pass.Questions = append(pass.Questions, q)
		logger.Debug("replayed question %d: predicted %s, correct %s",
			q.ID, prediction.Answer, q.Correct)
	}

	if err := r.results.AppendPass(pass); err != nil {
		return nil, fmt.Errorf("failed to persist replay pass: %w", err)
	}
	return &pass, nil
}

func noSignal() *models.Prediction {
	confidence := make(map[string]int, len(models.Letters))
	for _, letter := range models.Letters {
		confidence[letter] = 0
	}
	return &models.Prediction{Confidence: confidence}
}
