package solver

import (
	"strings"

	"github.com/quizoracle/quizoracle/internal/models"
	"github.com/quizoracle/quizoracle/internal/words"
)

// partialMatchWeight is the value of a lone answer word found in the results
// relative to an exact occurrence of the whole answer.
const partialMatchWeight = 0.1

// AnswerWordsSolver searches the bare question text and counts how often
// each candidate answer occurs in the result snippets, titles, and quick
// answer cards of the returned document.
type AnswerWordsSolver struct {
	base
}

// NewAnswerWordsSolver creates an AnswerWordsSolver against the given search
// URL prefix with the given fetch parallelism cap.
func NewAnswerWordsSolver(serviceURL string, maxWorkers int) *AnswerWordsSolver {
	return &AnswerWordsSolver{base{serviceURL: serviceURL, maxWorkers: maxWorkers}}
}

// Name identifies the solver.
func (s *AnswerWordsSolver) Name() string { return "answer-words" }

// Weight scales this solver's normalized scores in the aggregate.
func (s *AnswerWordsSolver) Weight() int { return 200 }

// BuildQueries issues exactly one query: the question text itself, rewritten
// onto its affirmative form when negated.
func (s *AnswerWordsSolver) BuildQueries(questionText string, _ map[string]string) []string {
	return []string{affirmative(questionText)}
}

// ScoreMatches counts exact and partial occurrences of each answer in the
// result-snippet, title, quick-answer, and related-search text of the
// fetched documents. Partial matches count at a tenth the weight of exact
// matches.
func (s *AnswerWordsSolver) ScoreMatches(docs []*Document, answers map[string]string) map[string]float64 {
	var results strings.Builder
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		results.WriteString(" ")
		results.WriteString(classText(doc.Body, "st", "r", "mod", "brs_col"))
	}

	resultWords := words.RawWords(results.String())
	resultFields := strings.Fields(resultWords)

	matches := make(map[string]float64, len(models.Letters))
	for _, letter := range models.Letters {
		matches[letter] = 0
		answerWords := words.RawWords(answers[letter])
		if answerWords == "" {
			continue
		}
		matches[letter] += float64(strings.Count(resultWords, answerWords))
		for _, word := range words.SignificantWords(strings.Fields(answerWords)) {
			for _, field := range resultFields {
				if field == word {
					matches[letter] += partialMatchWeight
				}
			}
		}
	}
	return matches
}
