package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/metadata/anilist"
	"github.com/mediashelf/mediashelf/internal/metadata/tmdb"
)

// tmdbPages serves totalPages pages of perPage movie results.
// failPages answers the listed page numbers with the given status.
func tmdbPages(t *testing.T, totalPages, perPage int, failPages map[int]int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if status, ok := failPages[page]; ok {
			w.WriteHeader(status)
			return
		}

		results := make([]map[string]any, 0, perPage)
		for i := 0; i < perPage; i++ {
			results = append(results, map[string]any{
				"id":           page*1000 + i,
				"title":        fmt.Sprintf("Inception %d-%d", page, i),
				"release_date": "2010-07-15",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"page":          page,
			"total_pages":   totalPages,
			"total_results": totalPages * perPage,
			"results":       results,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestAdapter(tmdbURL, anilistURL string) *Adapter {
	tc := tmdb.NewClient(config.TMDBConfig{APIKey: "key", BaseURL: tmdbURL, ImageBaseURL: "https://img", Timeout: 5}, zerolog.Nop())
	ac := anilist.NewClient(config.AniListConfig{URL: anilistURL, Timeout: 5}, zerolog.Nop())
	return NewAdapter(tc, ac, fastPolicy(), zerolog.Nop())
}

func TestAdapter_Search_TwoPages(t *testing.T) {
	var requests atomic.Int32
	server := tmdbPages(t, 2, 60, nil, &requests)
	adapter := newTestAdapter(server.URL, "")

	results, err := adapter.Search(context.Background(), ProviderTMDBMovie, "Inception", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 120 {
		t.Errorf("len(results) = %d, want 120", len(results))
	}
	if n := requests.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
	if results[0].Year == nil || *results[0].Year != 2010 {
		t.Errorf("Year = %v, want 2010", results[0].Year)
	}
}

func TestAdapter_Search_StopsAfterTwoPages(t *testing.T) {
	var requests atomic.Int32
	server := tmdbPages(t, 5, 20, nil, &requests)

	results, err := newTestAdapter(server.URL, "").Search(context.Background(), ProviderTMDBTV, "x", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 40 || requests.Load() != 2 {
		t.Errorf("results = %d, requests = %d; want 40, 2", len(results), requests.Load())
	}
}

func TestAdapter_Search_SinglePage(t *testing.T) {
	var requests atomic.Int32
	server := tmdbPages(t, 1, 3, nil, &requests)

	results, err := newTestAdapter(server.URL, "").Search(context.Background(), ProviderTMDBMovie, "x", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 || requests.Load() != 1 {
		t.Errorf("results = %d, requests = %d; want 3, 1", len(results), requests.Load())
	}
}

func TestAdapter_Search_SecondPageFailureIsNonFatal(t *testing.T) {
	var requests atomic.Int32
	server := tmdbPages(t, 2, 60, map[int]int{2: http.StatusInternalServerError}, &requests)

	results, err := newTestAdapter(server.URL, "").Search(context.Background(), ProviderTMDBMovie, "x", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 60 {
		t.Errorf("len(results) = %d, want first page only (60)", len(results))
	}
}

func TestAdapter_Search_RateLimitedExhausted(t *testing.T) {
	var requests atomic.Int32
	server := tmdbPages(t, 1, 1, map[int]int{1: http.StatusTooManyRequests}, &requests)

	results, err := newTestAdapter(server.URL, "").Search(context.Background(), ProviderTMDBMovie, "x", nil, false)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
	if n := requests.Load(); n != 4 {
		t.Errorf("requests = %d, want 1 initial + 3 retries", n)
	}
}

func TestAdapter_Search_ProviderError(t *testing.T) {
	var requests atomic.Int32
	server := tmdbPages(t, 1, 1, map[int]int{1: http.StatusUnauthorized}, &requests)

	_, err := newTestAdapter(server.URL, "").Search(context.Background(), ProviderTMDBMovie, "x", nil, false)

	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Fatalf("err = %v, want *SearchError", err)
	}
	if searchErr.Kind != KindProvider || searchErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("SearchError = %+v", searchErr)
	}
	if !errors.Is(err, ErrProvider) {
		t.Error("errors.Is(err, ErrProvider) = false")
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want no retry", requests.Load())
	}
}

func TestAdapter_Search_AniListQueryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Invalid search term"}]}`))
	}))
	t.Cleanup(server.Close)

	_, err := newTestAdapter("", server.URL).Search(context.Background(), ProviderAniList, "x", nil, false)

	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Fatalf("err = %v, want *SearchError", err)
	}
	if searchErr.Kind != KindProvider || searchErr.StatusCode != 0 || searchErr.Message != "Invalid search term" {
		t.Errorf("SearchError = %+v", searchErr)
	}
	if got, want := searchErr.Error(), "AniList error: Invalid search term"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAdapter_Search_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestAdapter(url, "").Search(context.Background(), ProviderTMDBMovie, "x", nil, false)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}

func TestAdapter_Search_AniList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"Page":{"media":[
			{"id":1,"title":{"english":null,"romaji":"Cowboy Bebop","native":"カウボーイビバップ"},
			 "seasonYear":1998,"description":"Space <b>bounty</b> hunters.<br>","coverImage":{"large":"https://img/c.jpg"}}
		]}}}`))
	}))
	defer server.Close()

	results, err := newTestAdapter("", server.URL).Search(context.Background(), ProviderAniList, "bebop", nil, true)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}

	got := results[0]
	if got.Title != "Cowboy Bebop" || got.RomajiTitle != "Cowboy Bebop" || got.NativeTitle != "カウボーイビバップ" {
		t.Errorf("titles = %q / %q / %q", got.Title, got.RomajiTitle, got.NativeTitle)
	}
	if got.Overview != "Space bounty hunters." {
		t.Errorf("Overview = %q", got.Overview)
	}
}

func TestAdapter_Search_AniListRateLimited(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestAdapter("", server.URL).Search(context.Background(), ProviderAniList, "x", nil, false)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if requests.Load() != 4 {
		t.Errorf("requests = %d, want 4", requests.Load())
	}
}

func TestAdapter_NotConfigured(t *testing.T) {
	tc := tmdb.NewClient(config.TMDBConfig{BaseURL: "http://127.0.0.1:0"}, zerolog.Nop())
	ac := anilist.NewClient(config.AniListConfig{}, zerolog.Nop())
	adapter := NewAdapter(tc, ac, fastPolicy(), zerolog.Nop())

	if adapter.IsConfigured(ProviderTMDBMovie) {
		t.Error("IsConfigured(TMDB) = true without key")
	}
	if !adapter.IsConfigured(ProviderAniList) {
		t.Error("IsConfigured(AniList) = false")
	}

	_, err := adapter.Search(context.Background(), ProviderTMDBMovie, "x", nil, false)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}

	adapter.SetTMDBKey("k")
	if !adapter.IsConfigured(ProviderTMDBTV) {
		t.Error("IsConfigured(TMDB) = false after SetTMDBKey")
	}
}

func TestAdapter_UnknownProvider(t *testing.T) {
	_, err := newTestAdapter("", "").Search(context.Background(), Provider("imdb"), "x", nil, false)
	if !errors.Is(err, ErrUnknown) {
		t.Errorf("err = %v, want ErrUnknown", err)
	}
}
