// Package testutil provides shared helpers for package tests.
package testutil

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/database"
)

// TestDB wraps a migrated database living in a temp directory.
type TestDB struct {
	DB     *database.DB
	Conn   *sql.DB
	Dir    string
	Logger zerolog.Logger
}

// NewTestDB creates a migrated SQLite database that is closed when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDB{
		DB:     db,
		Conn:   db.Conn(),
		Dir:    dir,
		Logger: NewTestLogger(t),
	}
}

// NewTestLogger creates a logger that writes through t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a disabled logger.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// ImageServer serves fixed bytes for any path and counts requests per path.
type ImageServer struct {
	*httptest.Server

	total atomic.Int64
	mu    sync.Mutex
	hits  map[string]int
}

// NewImageServer starts an image server that is shut down when the test ends.
// Requests for missing.jpg answer 404.
func NewImageServer(t *testing.T, body []byte) *ImageServer {
	t.Helper()

	s := &ImageServer{hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.total.Add(1)
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		if filepath.Base(r.URL.Path) == "missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// Hits returns how many times path was requested.
func (s *ImageServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Total returns the number of requests served.
func (s *ImageServer) Total() int {
	return int(s.total.Load())
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}
