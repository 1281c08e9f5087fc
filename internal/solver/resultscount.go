package solver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/quizoracle/quizoracle/internal/models"
)

var digitRun = regexp.MustCompile(`\d+`)

// noResultsMarker prefixes the topstuff element of a result page that found
// nothing. Such a page scores zero; it is not an error.
const noResultsMarker = "No results found"

// ResultsCountSolver searches the question with each answer quoted and uses
// the search engine's reported total result count as the raw score for that
// answer.
type ResultsCountSolver struct {
	base
}

// NewResultsCountSolver creates a ResultsCountSolver against the given search
// URL prefix with the given fetch parallelism cap.
func NewResultsCountSolver(serviceURL string, maxWorkers int) *ResultsCountSolver {
	return &ResultsCountSolver{base{serviceURL: serviceURL, maxWorkers: maxWorkers}}
}

// Name identifies the solver.
func (s *ResultsCountSolver) Name() string { return "results-count" }

// Weight scales this solver's normalized scores in the aggregate.
func (s *ResultsCountSolver) Weight() int { return 100 }

// BuildQueries issues one query per candidate answer: the affirmative
// question text plus the quoted answer, in letter order.
func (s *ResultsCountSolver) BuildQueries(questionText string, answers map[string]string) []string {
	question := affirmative(questionText)
	queries := make([]string, 0, len(models.Letters))
	for _, letter := range models.Letters {
		queries = append(queries, fmt.Sprintf("%s %q", question, answers[letter]))
	}
	return queries
}

// ScoreMatches reads the reported total-result count of each per-answer
// document. Documents are ordered like BuildQueries output, one per letter.
func (s *ResultsCountSolver) ScoreMatches(docs []*Document, _ map[string]string) map[string]float64 {
	matches := make(map[string]float64, len(models.Letters))
	for i, letter := range models.Letters {
		matches[letter] = 0
		if i >= len(docs) || docs[i] == nil {
			continue
		}
		matches[letter] = float64(resultCount(docs[i].Body))
	}
	return matches
}

// resultCount extracts the total-result count from a result page body.
// A "no results found" marker yields zero.
func resultCount(body string) int64 {
	if strings.HasPrefix(strings.TrimSpace(idText(body, "topstuff")), noResultsMarker) {
		return 0
	}
	stats := idText(body, "resultStats")
	if stats == "" {
		return 0
	}
	stats = strings.ReplaceAll(stats, ",", "")
	run := digitRun.FindString(stats)
	if run == "" {
		return 0
	}
	count, err := strconv.ParseInt(run, 10, 64)
	if err != nil {
		return 0
	}
	return count
}
