package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Dump is the portable interchange format for distributing cache subsets.
// It carries only the entries referenced by one game's URL set, keyed by
// fingerprint.
type Dump struct {
	Version    string  `json:"version"`
	GameID     string  `json:"gameId"`
	ExportedAt string  `json:"exportedAt"`
	Entries    []Entry `json:"entries"`
}

const dumpVersion = "1"

// Export serializes the entries referenced by one game's URL set into a
// dump. URLs with no stored entry are skipped; the dump holds exactly the
// fingerprints that were present.
func (c *Cache) Export(ctx context.Context, gameID string, urls []string) (*Dump, error) {
	dump := &Dump{
		Version:    dumpVersion,
		GameID:     gameID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
	}
	seen := make(map[string]struct{})
	for _, url := range urls {
		fingerprint := Fingerprint(url)
		if _, ok := seen[fingerprint]; ok {
			continue
		}
		seen[fingerprint] = struct{}{}
		entry, err := c.lookup(ctx, fingerprint)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		dump.Entries = append(dump.Entries, *entry)
	}
	sort.Slice(dump.Entries, func(i, j int) bool {
		return dump.Entries[i].Fingerprint < dump.Entries[j].Fingerprint
	})
	return dump, nil
}

// Import merges a dump into the cache with insert-if-absent semantics:
// fingerprints already present are left untouched, never overwritten, so
// re-importing the same dump is idempotent. Returns how many entries were
// inserted and how many were skipped as already present.
func (c *Cache) Import(ctx context.Context, dump *Dump) (inserted, skipped int, err error) {
	for _, entry := range dump.Entries {
		history, err := json.Marshal(entry.History)
		if err != nil {
			return inserted, skipped, fmt.Errorf("failed to encode redirect history: %w", err)
		}
		if len(entry.History) == 0 {
			history = []byte("[]")
		}
		result, err := c.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO responses
			 (fingerprint, url, status, body, effective_url, history, stored_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.Fingerprint, entry.URL, entry.Status, entry.Body,
			entry.EffectiveURL, string(history),
			entry.StoredAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return inserted, skipped, fmt.Errorf("failed to import entry %s: %w", entry.Fingerprint, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, skipped, fmt.Errorf("failed to read import result: %w", err)
		}
		if rows > 0 {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}

// WriteDumpFile writes a dump to <dir>/<gameID>.json with an atomic rename.
func WriteDumpFile(dir string, dump *Dump) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal dump: %w", err)
	}
	path := filepath.Join(dir, dump.GameID+".json")
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write dump file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename dump file: %w", err)
	}
	return path, nil
}

// ReadDumpFile loads a dump previously written by WriteDumpFile.
func ReadDumpFile(path string) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump file: %w", err)
	}
	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dump file: %w", err)
	}
	return &dump, nil
}
