// Package predict combines per-solver match scores into a single weighted
// confidence vector and picks the predicted answer.
//
// Each solver's raw counts are normalized to a 0-100 relative share, scaled
// by the solver's fixed weight, and summed into one accumulator across all
// solvers. The winning answer is the arg-max of that accumulator, flipped to
// the arg-min for negated questions (the show is asking for the least-true
// statement). Ties break lexically: A before B before C.
package predict

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/quizoracle/quizoracle/internal/logger"
	"github.com/quizoracle/quizoracle/internal/models"
	"github.com/quizoracle/quizoracle/internal/solver"
)

// Engine runs a statically declared list of solvers over one transport.
type Engine struct {
	solvers   []solver.Solver
	transport solver.Transport
}

// New creates an Engine over the given transport and solvers.
func New(transport solver.Transport, solvers ...solver.Solver) *Engine {
	return &Engine{solvers: solvers, transport: transport}
}

// Solvers returns the engine's solver list, in scoring order.
func (e *Engine) Solvers() []solver.Solver {
	return e.solvers
}

// Predict runs every solver over the question and aggregates their scores
// into a prediction. A rate-limited response fails the whole pass with
// solver.ErrRateLimited; nothing is partially recorded.
func (e *Engine) Predict(ctx context.Context, q *models.Question) (*models.Prediction, error) {
	accumulator := make(map[string]int, len(models.Letters))
	for _, letter := range models.Letters {
		accumulator[letter] = 0
	}

	for _, s := range e.solvers {
		queries := s.BuildQueries(q.Text, q.Answers)
		urls := s.BuildURLs(queries)
		docs, err := s.FetchResponses(ctx, urls, e.transport)
		if err != nil {
			return nil, fmt.Errorf("solver %s: %w", s.Name(), err)
		}

		matches := s.ScoreMatches(docs, q.Answers)
		accumulate(accumulator, matches, s.Weight())
		logger.Debug("solver %s scored question %d: %v", s.Name(), q.ID, matches)
	}

	return Aggregate(q.Text, accumulator), nil
}

// accumulate folds one solver's raw matches into the running accumulator.
// Raw counts are normalized to a floor-rounded 0-100 share of the solver's
// total, then scaled by the solver's weight. A solver with zero total
// matches contributes nothing.
func accumulate(accumulator map[string]int, matches map[string]float64, weight int) {
	var total float64
	for _, count := range matches {
		total += count
	}
	if total <= 0 {
		return
	}
	for _, letter := range models.Letters {
		share := int(math.Floor(matches[letter] / total * 100))
		accumulator[letter] += share * weight
	}
}

// Aggregate converts a weighted accumulator into the final prediction for a
// question: the winning letter plus per-answer display percentages. When the
// accumulator total is zero every percentage is 0 and the prediction carries
// no signal.
func Aggregate(questionText string, accumulator map[string]int) *models.Prediction {
	winner := chooseAnswer(questionText, accumulator)

	total := 0
	for _, value := range accumulator {
		total += value
	}

	confidence := make(map[string]int, len(models.Letters))
	for _, letter := range models.Letters {
		if total == 0 {
			confidence[letter] = 0
			continue
		}
		confidence[letter] = int(math.Floor(float64(accumulator[letter]) / float64(total) * 100))
	}

	return &models.Prediction{Answer: winner, Confidence: confidence}
}

// chooseAnswer picks the arg-max of the accumulator, or the arg-min when the
// question contains "NOT" or "NEVER". Iteration follows letter order, so
// equal values resolve to the lexically smallest letter.
func chooseAnswer(questionText string, accumulator map[string]int) string {
	negated := strings.Contains(questionText, "NOT") || strings.Contains(questionText, "NEVER")

	winner := models.Letters[0]
	for _, letter := range models.Letters[1:] {
		if negated {
			if accumulator[letter] < accumulator[winner] {
				winner = letter
			}
		} else if accumulator[letter] > accumulator[winner] {
			winner = letter
		}
	}
	return winner
}
