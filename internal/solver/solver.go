// Package solver implements the pluggable scoring strategies that turn a
// trivia question into search-engine queries and per-answer match scores.
//
// A Solver never chooses its own transport: the caller supplies one, which
// is either the live HTTP client (write-through to the response cache) or
// the cache itself during replays. The closed set of concrete solvers is
// AnswerWordsSolver and ResultsCountSolver.
package solver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrRateLimited is returned when a response resolves to the search engine's
// anti-automation interstitial. It is unrecoverable for the whole prediction
// pass: every remaining query would be answered with the same interstitial.
var ErrRateLimited = errors.New("search engine rate limiting detected")

// rateLimitPath marks the search engine's rate-limiting interstitial.
const rateLimitPath = "/sorry/index?continue="

// Document is one fetched search-engine response.
type Document struct {
	Status       int
	Body         string
	EffectiveURL string
	History      []string
}

// RateLimited reports whether the document resolved to the rate-limiting
// interstitial, directly or through its redirect chain.
func (d *Document) RateLimited() bool {
	if strings.Contains(d.EffectiveURL, rateLimitPath) {
		return true
	}
	for _, step := range d.History {
		if strings.Contains(step, rateLimitPath) {
			return true
		}
	}
	return false
}

// Transport fetches a document for a fully-resolved request URL.
type Transport interface {
	Get(ctx context.Context, url string) (*Document, error)
}

// Solver scores candidate answers for a question from external documents.
type Solver interface {
	// Name identifies the solver in logs and reports.
	Name() string
	// Weight scales this solver's normalized scores in the aggregate.
	Weight() int
	// BuildQueries derives the ordered search queries for a question.
	BuildQueries(questionText string, answers map[string]string) []string
	// BuildURLs templates queries into search-engine request URLs.
	BuildURLs(queries []string) []string
	// FetchResponses fetches every URL through the supplied transport.
	FetchResponses(ctx context.Context, urls []string, transport Transport) ([]*Document, error)
	// ScoreMatches measures per-answer occurrences in the fetched documents.
	ScoreMatches(docs []*Document, answers map[string]string) map[string]float64
}

// base carries the pieces shared by all concrete solvers.
type base struct {
	serviceURL string
	maxWorkers int
}

// BuildURLs templates each query onto the configured search URL.
func (b base) BuildURLs(queries []string) []string {
	urls := make([]string, len(queries))
	for i, query := range queries {
		urls[i] = b.serviceURL + url.QueryEscape(query)
	}
	return urls
}

// FetchResponses dispatches all URLs concurrently with bounded parallelism
// and blocks until every fetch completes. The first rate-limited response
// cancels the remaining in-flight fetches and fails the whole pass.
func (b base) FetchResponses(ctx context.Context, urls []string, transport Transport) ([]*Document, error) {
	docs := make([]*Document, len(urls))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(b.maxWorkers)
	for i, u := range urls {
		i, u := i, u
		group.Go(func() error {
			doc, err := transport.Get(ctx, u)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", u, err)
			}
			if doc.RateLimited() {
				return fmt.Errorf("fetch %s: %w", u, ErrRateLimited)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// affirmative rewrites a negated question onto its affirmative form so the
// search results stay meaningful. The aggregator, not the solver, applies
// the negation flip when choosing the best answer.
func affirmative(questionText string) string {
	text := strings.ReplaceAll(questionText, " NOT ", " ")
	text = strings.ReplaceAll(text, " NEVER ", " ")
	return text
}
