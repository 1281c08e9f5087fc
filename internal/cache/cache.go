// Package cache provides the content-addressable response cache backing
// replays and cache maintenance. Entries are keyed by a deterministic
// fingerprint of the outbound request and stored in a local SQLite database,
// so identical requests always resolve to the same row regardless of when
// they were issued.
//
// The cache is safe for concurrent readers; writes serialize through the
// underlying database connection.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quizoracle/quizoracle/internal/models"
	"github.com/quizoracle/quizoracle/internal/solver"
)

// ErrMiss is returned by Get when no entry exists for the request.
var ErrMiss = errors.New("cache miss")

// Cache wraps SQLite access for stored search-engine responses.
type Cache struct {
	db *sql.DB
}

// Entry is one stored response, immutable once written. Refreshing a URL
// overwrites the entry wholesale; entries are never patched.
type Entry struct {
	Fingerprint  string    `json:"fingerprint"`
	URL          string    `json:"url"`
	Status       int       `json:"status"`
	Body         string    `json:"body"`
	EffectiveURL string    `json:"effectiveUrl"`
	History      []string  `json:"history"`
	StoredAt     time.Time `json:"storedAt"`
}

// Fingerprint computes the content address of a GET request for the given
// URL. It is a pure function of the request.
func Fingerprint(url string) string {
	sum := sha256.Sum256([]byte("GET " + url))
	return hex.EncodeToString(sum[:])
}

// Open opens or creates the SQLite cache database and applies migrations.
func Open(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) migrate() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS responses (
			fingerprint TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			status INTEGER NOT NULL,
			body BLOB NOT NULL,
			effective_url TEXT NOT NULL,
			history TEXT NOT NULL,
			stored_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate cache schema: %w", err)
	}
	return nil
}

// Get looks up the stored document for a URL. Returns ErrMiss when absent.
func (c *Cache) Get(ctx context.Context, url string) (*solver.Document, error) {
	entry, err := c.lookup(ctx, Fingerprint(url))
	if err != nil {
		return nil, err
	}
	return &solver.Document{
		Status:       entry.Status,
		Body:         entry.Body,
		EffectiveURL: entry.EffectiveURL,
		History:      entry.History,
	}, nil
}

func (c *Cache) lookup(ctx context.Context, fingerprint string) (*Entry, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT fingerprint, url, status, body, effective_url, history, stored_at
		 FROM responses WHERE fingerprint = ?`, fingerprint)
	return scanEntry(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var history, storedAt string
	err := row.Scan(&entry.Fingerprint, &entry.URL, &entry.Status, &entry.Body,
		&entry.EffectiveURL, &history, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache entry: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &entry.History); err != nil {
		return nil, fmt.Errorf("failed to decode redirect history: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, storedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored_at: %w", err)
	}
	entry.StoredAt = parsed
	return &entry, nil
}

// Put inserts or wholesale-overwrites the entry for a URL.
func (c *Cache) Put(ctx context.Context, url string, doc *solver.Document) error {
	history, err := json.Marshal(doc.History)
	if err != nil {
		return fmt.Errorf("failed to encode redirect history: %w", err)
	}
	if len(doc.History) == 0 {
		history = []byte("[]")
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses
		 (fingerprint, url, status, body, effective_url, history, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		Fingerprint(url), url, doc.Status, doc.Body, doc.EffectiveURL,
		string(history), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Has reports whether an entry exists for the URL.
func (c *Cache) Has(ctx context.Context, url string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM responses WHERE fingerprint = ?`, Fingerprint(url)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe cache entry: %w", err)
	}
	return true, nil
}

// Count returns the number of stored entries.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}

// Prune deletes every stored entry whose resolved URL, including every step
// of its redirect chain, is absent from the live URL set. Returns how many
// entries were deleted and how many existed beforehand.
func (c *Cache) Prune(ctx context.Context, liveURLs []string) (deleted, total int, err error) {
	live := make(map[string]struct{}, len(liveURLs))
	for _, url := range liveURLs {
		live[url] = struct{}{}
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT fingerprint, url, effective_url, history FROM responses`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stale []string
	for rows.Next() {
		var fingerprint, url, effectiveURL, historyJSON string
		if err := rows.Scan(&fingerprint, &url, &effectiveURL, &historyJSON); err != nil {
			return 0, 0, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		total++
		var history []string
		if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
			return 0, 0, fmt.Errorf("failed to decode redirect history: %w", err)
		}
		if referenced(live, url, effectiveURL, history) {
			continue
		}
		stale = append(stale, fingerprint)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to iterate cache entries: %w", err)
	}

	for _, fingerprint := range stale {
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM responses WHERE fingerprint = ?`, fingerprint); err != nil {
			return deleted, total, fmt.Errorf("failed to delete stale entry: %w", err)
		}
		deleted++
	}
	return deleted, total, nil
}

// referenced reports whether any of the entry's URLs (request URL, resolved
// URL, or a redirect step) is still part of the live URL set.
func referenced(live map[string]struct{}, url, effectiveURL string, history []string) bool {
	if _, ok := live[url]; ok {
		return true
	}
	if _, ok := live[effectiveURL]; ok {
		return true
	}
	for _, step := range history {
		if _, ok := live[step]; ok {
			return true
		}
	}
	return false
}

// Refresh fetches and stores every live URL not already present. It aborts
// immediately when a fetched URL resolves to the rate-limit interstitial,
// reporting how many URLs were safely cached before the block.
func (c *Cache) Refresh(ctx context.Context, liveURLs []string, transport solver.Transport) (added int, err error) {
	var misses []string
	for _, url := range liveURLs {
		has, err := c.Has(ctx, url)
		if err != nil {
			return added, err
		}
		if !has {
			misses = append(misses, url)
		}
	}

	for _, url := range misses {
		doc, err := transport.Get(ctx, url)
		if err != nil {
			return added, fmt.Errorf("refresh %s: %w", url, err)
		}
		if doc.RateLimited() {
			return added, fmt.Errorf("refresh %s after %d cached: %w", url, added, solver.ErrRateLimited)
		}
		if err := c.Put(ctx, url, doc); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Vacuum reclaims backing storage space. No semantic effect on entries.
func (c *Cache) Vacuum(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum cache: %w", err)
	}
	return nil
}

// ReferencedURLs re-runs every solver's query templating over the given
// questions and returns the deduplicated, ordered URL set they reference.
func ReferencedURLs(questions []models.Question, solvers []solver.Solver) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, s := range solvers {
		for _, q := range questions {
			for _, url := range s.BuildURLs(s.BuildQueries(q.Text, q.Answers)) {
				if _, ok := seen[url]; ok {
					continue
				}
				seen[url] = struct{}{}
				urls = append(urls, url)
			}
		}
	}
	return urls
}
