package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/ingest"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/preferences"
	"github.com/mediashelf/mediashelf/internal/readmodel"
	"github.com/mediashelf/mediashelf/internal/testutil"
)

const waitTimeout = 5 * time.Second

type event struct {
	Type    string
	Payload interface{}
}

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []event
	ch     chan event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan event, 1024)}
}

func (r *recorder) Broadcast(msgType string, payload interface{}) error {
	e := event{Type: msgType, Payload: payload}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.ch <- e:
	default:
	}
	return nil
}

// waitToast returns the next toast, skipping other events.
func (r *recorder) waitToast(t *testing.T) Toast {
	t.Helper()
	e := r.waitFor(t, EventToast)
	return e.Payload.(Toast)
}

func (r *recorder) waitFor(t *testing.T, msgType string) event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-r.ch:
			if e.Type == msgType {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
			return event{}
		}
	}
}

func (r *recorder) drain() {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

type env struct {
	app    *App
	rec    *recorder
	images *testutil.ImageServer
	cfg    *config.Config
}

// movieServer serves two pages of 60 results. Only result 0 of page 1 has a poster.
func movieServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		results := make([]map[string]any, 60)
		for i := range results {
			results[i] = map[string]any{
				"id":           page*100 + i,
				"title":        fmt.Sprintf("Inception %d.%d", page, i),
				"release_date": "2010-07-16",
			}
		}
		results[0]["poster_path"] = fmt.Sprintf("/p%d.jpg", page)
		_ = json.NewEncoder(w).Encode(map[string]any{"page": page, "total_pages": 2, "results": results})
	}))
	t.Cleanup(server.Close)
	return server
}

func newEnv(t *testing.T, tmdbKey string) *env {
	t.Helper()
	return newEnvWithTMDB(t, tmdbKey, movieServer(t).URL)
}

func newEnvWithTMDB(t *testing.T, tmdbKey, tmdbURL string) *env {
	t.Helper()

	dir := t.TempDir()
	images := testutil.NewImageServer(t, []byte("poster"))

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "media.db")
	cfg.Data.Dir = dir
	cfg.Metadata.TMDB.BaseURL = tmdbURL
	cfg.Metadata.TMDB.ImageBaseURL = images.URL
	cfg.Metadata.AniList.URL = "http://127.0.0.1:0"
	cfg.Metadata.Retry = config.RetryConfig{InitialDelay: time.Millisecond, MaxRetries: 3, Multiplier: 2}

	if tmdbKey != "" {
		data := []byte("tmdbApiKey: " + tmdbKey + "\n")
		require.NoError(t, os.WriteFile(cfg.SettingsPath(), data, 0o644))
	}

	rec := newRecorder()
	a, err := New(cfg, zerolog.Nop(), rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &env{app: a, rec: rec, images: images, cfg: cfg}
}

func TestNew_InitialView(t *testing.T) {
	e := newEnv(t, "")
	v, err := e.app.CurrentView(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.CategoryMovie, v.Category)
	assert.Equal(t, "On Drive", v.Status)
	assert.Equal(t, catalog.SortTitle, v.Sort)
	assert.Equal(t, catalog.SortAsc, v.Dir)
}

func TestNavigate_ResetsFilters(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	require.NoError(t, e.app.SetStatus(ctx, "To Download"))
	require.NoError(t, e.app.SetTerm(ctx, "dune"))
	e.rec.drain()

	require.NoError(t, e.app.Navigate(ctx, catalog.CategoryAnime))
	v, err := e.app.CurrentView(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.CategoryAnime, v.Category)
	assert.Equal(t, "On Drive", v.Status)
	assert.Empty(t, v.Term)

	items := e.rec.waitFor(t, EventItemsChanged).Payload.(*Listing)
	assert.Equal(t, catalog.CategoryAnime, items.View.Category)
	counts := e.rec.waitFor(t, EventCountsChanged).Payload.(map[catalog.Category]int)
	assert.Len(t, counts, 3)

	assert.ErrorIs(t, e.app.Navigate(ctx, "Book"), ErrInvalidInput)
}

func TestSetSort_PersistsAndFallsBack(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	require.NoError(t, e.app.SetSort(ctx, catalog.SortYear, catalog.SortDesc))
	s := e.app.Settings()
	assert.Equal(t, "year", s.SortField)
	assert.Equal(t, "desc", s.SortDir)

	require.NoError(t, e.app.SetSort(ctx, "id; DROP TABLE media_items", catalog.SortDesc))
	v, err := e.app.CurrentView(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.SortTitle, v.Sort)
	assert.Equal(t, catalog.SortAsc, v.Dir)
}

func TestSaveItem_InsertThenUpdate(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	year := 1999

	id, err := e.app.SaveItem(ctx, ItemInput{Title: "The Matrix", Year: &year, Quality: "Remux"})
	require.NoError(t, err)
	assert.Equal(t, Toast{Message: "Item added", Kind: ToastSuccess}, e.rec.waitToast(t))

	listing, err := e.app.Items(ctx)
	require.NoError(t, err)
	require.Len(t, listing.Rows, 1)
	assert.Equal(t, "On Drive", listing.Rows[0].Status)
	assert.Equal(t, catalog.CategoryMovie, listing.Rows[0].Category)

	// Navigating away must not move the item on update.
	require.NoError(t, e.app.Navigate(ctx, catalog.CategoryTV))
	_, err = e.app.SaveItem(ctx, ItemInput{ID: id, Title: "The Matrix (1999)", Status: "To Work On"})
	require.NoError(t, err)
	assert.Equal(t, "Item updated", e.rec.waitToast(t).Message)

	item, err := e.app.Store().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, catalog.CategoryMovie, item.Category)
	assert.Equal(t, "The Matrix (1999)", item.Title)
	assert.Nil(t, item.Year)
}

func TestSaveItem_RequiresTitle(t *testing.T) {
	e := newEnv(t, "")
	_, err := e.app.SaveItem(context.Background(), ItemInput{Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, ToastError, e.rec.waitToast(t).Kind)
}

func TestSearchAndPromote(t *testing.T) {
	e := newEnv(t, "secret")
	ctx := context.Background()

	require.NoError(t, e.app.Search(ctx, " Inception ", nil))
	assert.Equal(t, Toast{Message: "Found 120 results", Kind: ToastSuccess}, e.rec.waitToast(t))

	view, err := e.app.SearchView(ctx)
	require.NoError(t, err)
	require.Len(t, view.Rows, 120)
	assert.False(t, view.Searching)
	assert.Equal(t, readmodel.KindSearch, view.Rows[0].Kind)

	_, err = e.app.ToggleResult(ctx, 0)
	require.NoError(t, err)
	view, err = e.app.ToggleResult(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.SelectedCount)
	assert.True(t, view.Rows[2].Selected)

	require.NoError(t, e.app.Promote(ctx, nil))
	assert.Equal(t, "Added 2, skipped 0 duplicates", e.rec.waitToast(t).Message)
	assert.Equal(t, 1, e.images.Total(), "only the selected result with a poster is downloaded")

	listing, err := e.app.Items(ctx)
	require.NoError(t, err)
	require.Len(t, listing.Rows, 2)
	withArt := 0
	for _, row := range listing.Rows {
		if row.Artwork != "" {
			withArt++
		}
		assert.NotNil(t, row.TMDBID)
		assert.Equal(t, "On Drive", row.Status)
	}
	assert.Equal(t, 1, withArt)

	view, err = e.app.SearchView(ctx)
	require.NoError(t, err)
	assert.Zero(t, view.SelectedCount, "selection clears after promotion")

	require.NoError(t, e.app.Promote(ctx, []int{0, 2}))
	assert.Equal(t, "Added 0, skipped 2 duplicates", e.rec.waitToast(t).Message)
}

// heldSearchServer answers "first" with A0..A2 at once and holds "second"
// until release is closed, then answers with B0..B2.
func heldSearchServer(t *testing.T, release <-chan struct{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, base := "A", 1
		if r.URL.Query().Get("query") == "second" {
			<-release
			prefix, base = "B", 11
		}
		results := make([]map[string]any, 3)
		for i := range results {
			results[i] = map[string]any{"id": base + i, "title": fmt.Sprintf("%s%d", prefix, i)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"page": 1, "total_pages": 1, "results": results})
	}))
	t.Cleanup(server.Close)
	return server
}

func waitForToast(t *testing.T, r *recorder, message string) {
	t.Helper()
	for {
		if r.waitToast(t).Message == message {
			return
		}
	}
}

func TestPromote_SelectionDoesNotCarryIntoNextSearch(t *testing.T) {
	release := make(chan struct{})
	var releaseOnce sync.Once
	releaseSearch := func() { releaseOnce.Do(func() { close(release) }) }

	e := newEnvWithTMDB(t, "secret", heldSearchServer(t, release).URL)
	t.Cleanup(releaseSearch)
	ctx := context.Background()

	require.NoError(t, e.app.Search(ctx, "first", nil))
	waitForToast(t, e.rec, "Found 3 results")
	view, err := e.app.ToggleResult(ctx, 1)
	require.NoError(t, err)
	require.True(t, view.Rows[1].Selected)

	require.NoError(t, e.app.Search(ctx, "second", nil))
	view, err = e.app.SearchView(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Rows, "rows of the replaced search are dropped")
	assert.Zero(t, view.SelectedCount)

	// Hold the loop so the promote is queued while the second search completes.
	unblock := make(chan struct{})
	var unblockOnce sync.Once
	unblockLoop := func() { unblockOnce.Do(func() { close(unblock) }) }
	t.Cleanup(unblockLoop)
	require.NoError(t, e.app.loop.Post(func() { <-unblock }))

	promoted := make(chan error, 1)
	go func() { promoted <- e.app.Promote(ctx, nil) }()
	time.Sleep(20 * time.Millisecond)

	releaseSearch()
	require.Eventually(t, func() bool {
		s := e.app.coordinator.Session()
		return s.Query == "second" && s.State == ingest.StateResultsReady
	}, waitTimeout, 5*time.Millisecond)
	unblockLoop()

	select {
	case err := <-promoted:
		assert.True(t, errors.Is(err, ingest.ErrNoResults) || errors.Is(err, ingest.ErrNothingSelected),
			"Promote() error = %v, want no results or nothing selected", err)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for Promote")
	}

	waitForToast(t, e.rec, "Found 3 results")
	e.app.coordinator.Wait()
	listing, err := e.app.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, listing.Rows, "nothing from the second search was selected")

	_, err = e.app.ToggleResult(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, e.app.Promote(ctx, nil))
	waitForToast(t, e.rec, "Added 1, skipped 0 duplicates")

	listing, err = e.app.Items(ctx)
	require.NoError(t, err)
	require.Len(t, listing.Rows, 1)
	assert.Equal(t, "B1", listing.Rows[0].Title)
	assert.Equal(t, int64(12), *listing.Rows[0].TMDBID)
}

func TestSearch_MissingKeyFailsFast(t *testing.T) {
	e := newEnv(t, "")

	err := e.app.Search(context.Background(), "Inception", nil)
	assert.ErrorIs(t, err, ingest.ErrConfig)
	assert.Equal(t, Toast{
		Message: "Search failed: TMDB API key not set. Configure in Settings.",
		Kind:    ToastError,
	}, e.rec.waitToast(t))
}

func TestSaveSettings_AppliesKey(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	_, err := e.app.SaveSettings(ctx, SettingsInput{TMDBAPIKey: testutil.StringPtr("fresh")})
	require.NoError(t, err)
	assert.Equal(t, "Settings saved", e.rec.waitToast(t).Message)

	require.NoError(t, e.app.Search(ctx, "Inception", nil))
	assert.Equal(t, "Found 120 results", e.rec.waitToast(t).Message)
}

func TestSaveSettings_QualityGuard(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	_, err := e.app.SaveItem(ctx, ItemInput{Title: "Alien", Quality: "Remux"})
	require.NoError(t, err)
	e.rec.drain()

	text := "BluRay\nWebDL"
	_, err = e.app.SaveSettings(ctx, SettingsInput{QualityTypes: &text})
	assert.ErrorIs(t, err, preferences.ErrQualityInUse)
	assert.Contains(t, e.app.Settings().QualityTypes, "Remux")

	saved, err := e.app.SaveSettings(ctx, SettingsInput{QualityTypes: &text, Force: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"BluRay", "WebDL"}, saved.QualityTypes)
}

func TestDeleteItems_EvictsArtwork(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	dir := e.app.Artwork().Dir()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	fileA := filepath.Join(dir, "aaaaaaaaaaaaaaaa.jpg")
	fileB := filepath.Join(dir, "bbbbbbbbbbbbbbbb.jpg")
	require.NoError(t, os.WriteFile(fileA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("b"), 0o644))

	store := e.app.Store()
	ids := make([]int64, 0, 3)
	for i, poster := range []string{fileA, fileB, ""} {
		id, err := store.Insert(ctx, &catalog.Item{
			Title: fmt.Sprintf("Item %d", i), Category: catalog.CategoryMovie, Status: "On Drive", PosterPath: poster,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, e.app.DeleteItems(ctx, ids))
	assert.Equal(t, "Deleted 3 item(s)", e.rec.waitToast(t).Message)
	assert.NoFileExists(t, fileA)
	assert.NoFileExists(t, fileB)
}

func TestDeleteItems_KeepsSharedArtwork(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	dir := e.app.Artwork().Dir()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	shared := filepath.Join(dir, "cccccccccccccccc.jpg")
	require.NoError(t, os.WriteFile(shared, []byte("c"), 0o644))

	store := e.app.Store()
	first, err := store.Insert(ctx, &catalog.Item{Title: "Movie", Category: catalog.CategoryMovie, Status: "On Drive", PosterPath: shared})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &catalog.Item{Title: "Movie", Category: catalog.CategoryTV, Status: "On Drive", PosterPath: shared})
	require.NoError(t, err)

	require.NoError(t, e.app.DeleteItems(ctx, []int64{first}))
	assert.FileExists(t, shared)
}

func TestMoveAndRecategorize(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	id, err := e.app.SaveItem(ctx, ItemInput{Title: "Cowboy Bebop"})
	require.NoError(t, err)

	require.NoError(t, e.app.MoveItems(ctx, []int64{id}, "To Work On"))
	item, err := e.app.Store().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "To Work On", item.Status)

	newID, err := e.app.Recategorize(ctx, id, catalog.CategoryAnime)
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)

	counts, err := e.app.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[catalog.Category]int{catalog.CategoryMovie: 0, catalog.CategoryTV: 0, catalog.CategoryAnime: 1}, counts)

	assert.NoError(t, e.app.MoveItems(ctx, nil, "On Drive"), "empty move is a no-op")
	assert.NoError(t, e.app.DeleteItems(ctx, nil), "empty delete is a no-op")
}

func TestPruneArtwork_KeepsRecentAndReferenced(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	dir := e.app.Artwork().Dir()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	old := time.Now().Add(-time.Hour)
	orphan := filepath.Join(dir, "dddddddddddddddd.jpg")
	referenced := filepath.Join(dir, "eeeeeeeeeeeeeeee.jpg")
	fresh := filepath.Join(dir, "ffffffffffffffff.jpg")
	for _, p := range []string{orphan, referenced, fresh} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	require.NoError(t, os.Chtimes(orphan, old, old))
	require.NoError(t, os.Chtimes(referenced, old, old))

	_, err := e.app.Store().Insert(ctx, &catalog.Item{Title: "Kept", Category: catalog.CategoryMovie, Status: "On Drive", PosterPath: referenced})
	require.NoError(t, err)

	removed, err := e.app.PruneArtwork(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, orphan)
	assert.FileExists(t, referenced)
	assert.FileExists(t, fresh)
}

func TestClose_Idempotent(t *testing.T) {
	e := newEnv(t, "")
	require.NoError(t, e.app.Close())
	require.NoError(t, e.app.Close())

	_, err := e.app.CurrentView(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config", &ingest.ConfigError{Provider: metadata.ProviderTMDBTV}, "TMDB API key not set. Configure in Settings."},
		{"rate limited", &metadata.SearchError{Kind: metadata.KindRateLimited, Provider: metadata.ProviderAniList}, "AniList is rate limiting requests, try again later"},
		{"provider", &metadata.SearchError{Kind: metadata.KindProvider, Provider: metadata.ProviderTMDBMovie, StatusCode: 401}, "TMDB returned HTTP 401"},
		{"query error", &metadata.SearchError{Kind: metadata.KindProvider, Provider: metadata.ProviderAniList, Message: "Invalid search term"}, "AniList rejected the search: Invalid search term"},
		{"transport", &metadata.SearchError{Kind: metadata.KindTransport, Provider: metadata.ProviderAniList, Message: "dial tcp: refused"}, "could not reach AniList"},
		{"not found", fmt.Errorf("get: %w", catalog.ErrNotFound), "item not found"},
		{"store", &catalog.StoreError{Op: "insert", Err: errors.New("SQLITE_BUSY")}, "unexpected error, see the log for details"},
		{"nothing selected", ingest.ErrNothingSelected, "no results selected"},
		{"replaced search", ingest.ErrStaleSession, "search results changed, select again"},
		{"quality", &preferences.QualityInUseError{Quality: "Remux", Count: 2}, `quality type "Remux" is used by 2 item(s)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddedMessage(t *testing.T) {
	assert.Equal(t, "Added 3, skipped 1 duplicates", addedMessage(&catalog.BatchOutcome{Added: 3, Skipped: 1}))
	assert.Equal(t, "Added 1, skipped 0 duplicates, 2 failed", addedMessage(&catalog.BatchOutcome{Added: 1, Errors: 2}))
}
