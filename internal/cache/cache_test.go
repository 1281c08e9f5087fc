package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/quizoracle/quizoracle/internal/solver"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("failed to close cache: %v", err)
		}
	})
	return c
}

func TestFingerprint(t *testing.T) {
	first := Fingerprint("https://search.example/?q=cats")
	second := Fingerprint("https://search.example/?q=cats")
	other := Fingerprint("https://search.example/?q=dogs")

	if first != second {
		t.Error("fingerprint not deterministic")
	}
	if first == other {
		t.Error("different URLs share a fingerprint")
	}
	if len(first) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex characters", len(first))
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	url := "https://search.example/?q=capital+of+france"
	doc := &solver.Document{
		Status:       200,
		Body:         "<html>Paris</html>",
		EffectiveURL: "https://search.example/final",
		History:      []string{"https://search.example/redirect"},
	}
	if err := c.Put(ctx, url, doc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Get(ctx, url)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("Get = %+v, want %+v", got, doc)
	}
}

func TestGetMiss(t *testing.T) {
	c := openTestCache(t)
	_, err := c.Get(context.Background(), "https://search.example/?q=unseen")
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestPrune(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	for _, url := range []string{"u1", "u2", "u3"} {
		if err := c.Put(ctx, url, &solver.Document{Status: 200, Body: url, EffectiveURL: url}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	// u3 is kept because the live set references its redirect history.
	if err := c.Put(ctx, "u4", &solver.Document{
		Status: 200, Body: "u4", EffectiveURL: "u4-final", History: []string{"u4-step"},
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	deleted, total, err := c.Prune(ctx, []string{"u1", "u4-step"})
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	if _, err := c.Get(ctx, "u1"); err != nil {
		t.Errorf("referenced entry u1 was pruned: %v", err)
	}
	if _, err := c.Get(ctx, "u2"); !errors.Is(err, ErrMiss) {
		t.Errorf("unreferenced entry u2 survived prune: %v", err)
	}
}

// refreshTransport serves fixed documents and flags one URL as rate limited.
type refreshTransport struct {
	rateLimited map[string]bool
	calls       []string
}

func (t *refreshTransport) Get(_ context.Context, url string) (*solver.Document, error) {
	t.calls = append(t.calls, url)
	doc := &solver.Document{Status: 200, Body: "body of " + url, EffectiveURL: url}
	if t.rateLimited[url] {
		doc.EffectiveURL = "https://search.example/sorry/index?continue=" + url
	}
	return doc, nil
}

func TestRefreshFetchesOnlyMisses(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "u1", &solver.Document{Status: 200, Body: "cached", EffectiveURL: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	transport := &refreshTransport{}
	added, err := c.Refresh(ctx, []string{"u1", "u2", "u3"}, transport)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	if len(transport.calls) != 2 {
		t.Errorf("transport called %d times, want 2", len(transport.calls))
	}
	if has, _ := c.Has(ctx, "u3"); !has {
		t.Error("u3 not stored after refresh")
	}
}

func TestRefreshAbortsOnRateLimit(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "u1", &solver.Document{Status: 200, Body: "cached", EffectiveURL: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	transport := &refreshTransport{rateLimited: map[string]bool{"u4": true}}
	added, err := c.Refresh(ctx, []string{"u1", "u2", "u3", "u4", "u5"}, transport)
	if !errors.Is(err, solver.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2 stored before the block", added)
	}
	if has, _ := c.Has(ctx, "u5"); has {
		t.Error("u5 fetched after the rate limit hit")
	}
}

func TestCount(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	count, err := c.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("Count = %d, %v; want 0, nil", count, err)
	}
	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("u%d", i)
		if err := c.Put(ctx, url, &solver.Document{Status: 200, EffectiveURL: url}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	count, err = c.Count(ctx)
	if err != nil || count != 3 {
		t.Fatalf("Count = %d, %v; want 3, nil", count, err)
	}
}

func TestVacuum(t *testing.T) {
	c := openTestCache(t)
	if err := c.Vacuum(context.Background()); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
}

func TestExportImportIdempotent(t *testing.T) {
	src := openTestCache(t)
	dst := openTestCache(t)
	ctx := context.Background()

	urls := []string{"u1", "u2", "u3"}
	for _, url := range urls {
		if err := src.Put(ctx, url, &solver.Document{Status: 200, Body: "body " + url, EffectiveURL: url}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	dump, err := src.Export(ctx, "2024-01-01-game-7", append(urls, "never-fetched"))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(dump.Entries) != 3 {
		t.Fatalf("exported %d entries, want 3", len(dump.Entries))
	}

	dir := t.TempDir()
	path, err := WriteDumpFile(dir, dump)
	if err != nil {
		t.Fatalf("WriteDumpFile failed: %v", err)
	}
	loaded, err := ReadDumpFile(path)
	if err != nil {
		t.Fatalf("ReadDumpFile failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Entries, dump.Entries) {
		t.Error("dump entries changed across the file roundtrip")
	}

	inserted, skipped, err := dst.Import(ctx, loaded)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if inserted != 3 || skipped != 0 {
		t.Errorf("first import: inserted=%d skipped=%d, want 3/0", inserted, skipped)
	}

	inserted, skipped, err = dst.Import(ctx, loaded)
	if err != nil {
		t.Fatalf("second Import failed: %v", err)
	}
	if inserted != 0 || skipped != 3 {
		t.Errorf("second import: inserted=%d skipped=%d, want 0/3", inserted, skipped)
	}

	// The destination must serve imported documents byte for byte.
	doc, err := dst.Get(ctx, "u2")
	if err != nil {
		t.Fatalf("Get after import failed: %v", err)
	}
	if doc.Body != "body u2" {
		t.Errorf("imported body = %q, want %q", doc.Body, "body u2")
	}
}

func TestHTTPTransportWritesThrough(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, "live body")
	}))
	defer server.Close()

	c := openTestCache(t)
	transport := NewHTTPTransport(0, c)
	ctx := context.Background()

	first, err := transport.Get(ctx, server.URL)
	if err != nil {
		t.Fatalf("live Get failed: %v", err)
	}
	if first.Body != "live body" {
		t.Errorf("Body = %q, want %q", first.Body, "live body")
	}
	if hits != 1 {
		t.Fatalf("server hits = %d, want 1", hits)
	}

	second, err := transport.Get(ctx, server.URL)
	if err != nil {
		t.Fatalf("cached Get failed: %v", err)
	}
	if hits != 1 {
		t.Errorf("server hits = %d after cached read, want 1", hits)
	}
	if second.Body != first.Body {
		t.Errorf("cached body %q differs from live body %q", second.Body, first.Body)
	}
}
