package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/metadata/anilist"
	"github.com/mediashelf/mediashelf/internal/metadata/tmdb"
)

// maxPages is how many TMDB result pages one search reads.
const maxPages = 2

// MovieTVClient is the TMDB surface the adapter uses.
type MovieTVClient interface {
	IsConfigured() bool
	SetAPIKey(key string)
	Search(ctx context.Context, kind tmdb.MediaKind, query string, year int, includeAdult bool, page int) (*tmdb.SearchPage, error)
}

// AnimeClient is the AniList surface the adapter uses.
type AnimeClient interface {
	SearchAnime(ctx context.Context, query string, year int, includeAdult bool) ([]anilist.NormalizedResult, error)
}

// Adapter normalizes TMDB and AniList searches into SearchResult lists.
// It does no caching and no persistence.
type Adapter struct {
	tmdb    MovieTVClient
	anilist AnimeClient
	retry   RetryPolicy
	logger  zerolog.Logger
}

// NewAdapter creates an adapter over the given provider clients.
func NewAdapter(tmdbClient MovieTVClient, anilistClient AnimeClient, retry RetryPolicy, logger zerolog.Logger) *Adapter {
	return &Adapter{
		tmdb:    tmdbClient,
		anilist: anilistClient,
		retry:   retry,
		logger:  logger.With().Str("component", "metadata").Logger(),
	}
}

// NewAdapterFromConfig builds both provider clients from cfg. tmdbKey
// overrides cfg.TMDB.APIKey.
func NewAdapterFromConfig(cfg config.MetadataConfig, tmdbKey string, logger zerolog.Logger) *Adapter {
	tmdbCfg := cfg.TMDB
	tmdbCfg.APIKey = tmdbKey
	retry := RetryPolicy{
		InitialDelay: cfg.Retry.InitialDelay,
		MaxRetries:   cfg.Retry.MaxRetries,
		Multiplier:   cfg.Retry.Multiplier,
	}
	if retry.InitialDelay <= 0 {
		retry = DefaultRetryPolicy()
	}
	return NewAdapter(tmdb.NewClient(tmdbCfg, logger), anilist.NewClient(cfg.AniList, logger), retry, logger)
}

// IsConfigured reports whether the provider's credential is present.
func (a *Adapter) IsConfigured(p Provider) bool {
	switch p {
	case ProviderTMDBMovie, ProviderTMDBTV:
		return a.tmdb.IsConfigured()
	case ProviderAniList:
		return true
	default:
		return false
	}
}

// SetTMDBKey updates the movie/TV credential.
func (a *Adapter) SetTMDBKey(key string) {
	a.tmdb.SetAPIKey(key)
}

// Search queries provider p. A nil year means no year filter. When
// includeAdult is false adult content is excluded by the upstream query.
func (a *Adapter) Search(ctx context.Context, p Provider, query string, year *int, includeAdult bool) ([]SearchResult, error) {
	y := 0
	if year != nil {
		y = *year
	}

	var (
		results []SearchResult
		err     error
	)
	switch p {
	case ProviderTMDBMovie:
		results, err = a.searchTMDB(ctx, p, tmdb.KindMovie, query, y, includeAdult)
	case ProviderTMDBTV:
		results, err = a.searchTMDB(ctx, p, tmdb.KindTV, query, y, includeAdult)
	case ProviderAniList:
		results, err = a.searchAniList(ctx, query, y, includeAdult)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, p)
	}
	if err != nil {
		a.logger.Warn().Err(err).Str("provider", string(p)).Str("query", query).Msg("Search failed")
		return nil, err
	}

	a.logger.Info().
		Str("provider", string(p)).
		Str("query", query).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

func (a *Adapter) searchTMDB(ctx context.Context, p Provider, kind tmdb.MediaKind, query string, year int, includeAdult bool) ([]SearchResult, error) {
	results := make([]SearchResult, 0)

	for page := 1; page <= maxPages; page++ {
		var resp *tmdb.SearchPage
		err := withRateLimitRetry(ctx, a.logger, string(p), a.retry, func() error {
			var err error
			resp, err = a.tmdb.Search(ctx, kind, query, year, includeAdult, page)
			return err
		})
		if err != nil {
			if page == 1 {
				return nil, classify(p, err)
			}
			a.logger.Warn().Err(err).Int("page", page).Msg("Failed to fetch additional page, keeping earlier results")
			break
		}

		for _, r := range resp.Results {
			results = append(results, SearchResult{
				ID:        r.ID,
				Title:     r.Title,
				Year:      optionalYear(r.Year),
				Overview:  r.Overview,
				PosterURL: r.PosterURL,
			})
		}

		if resp.TotalPages <= page {
			break
		}
	}

	return results, nil
}

func (a *Adapter) searchAniList(ctx context.Context, query string, year int, includeAdult bool) ([]SearchResult, error) {
	var hits []anilist.NormalizedResult
	err := withRateLimitRetry(ctx, a.logger, string(ProviderAniList), a.retry, func() error {
		var err error
		hits, err = a.anilist.SearchAnime(ctx, query, year, includeAdult)
		return err
	})
	if err != nil {
		return nil, classify(ProviderAniList, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			ID:          h.ID,
			Title:       h.Title,
			NativeTitle: h.NativeTitle,
			RomajiTitle: h.RomajiTitle,
			Year:        optionalYear(h.Year),
			Overview:    StripHTML(h.Description),
			PosterURL:   h.CoverURL,
		})
	}
	return results, nil
}

// statusCode extracts the HTTP status from a provider client error.
func statusCode(err error) (int, bool) {
	var tmdbErr *tmdb.StatusError
	if errors.As(err, &tmdbErr) {
		return tmdbErr.StatusCode, true
	}
	var anilistErr *anilist.StatusError
	if errors.As(err, &anilistErr) {
		return anilistErr.StatusCode, true
	}
	return 0, false
}

func isRateLimited(err error) bool {
	code, ok := statusCode(err)
	return ok && code == http.StatusTooManyRequests
}

// classify maps a client error onto the SearchError taxonomy.
func classify(p Provider, err error) error {
	if errors.Is(err, tmdb.ErrAPIKeyMissing) {
		return fmt.Errorf("%s: %w", p.Service(), ErrNotConfigured)
	}
	if code, ok := statusCode(err); ok {
		if code == http.StatusTooManyRequests {
			return &SearchError{Kind: KindRateLimited, Provider: p, StatusCode: code, Err: err}
		}
		return &SearchError{Kind: KindProvider, Provider: p, StatusCode: code, Err: err}
	}
	var queryErr *anilist.QueryError
	if errors.As(err, &queryErr) {
		return &SearchError{Kind: KindProvider, Provider: p, Message: queryErr.Message, Err: err}
	}
	return &SearchError{Kind: KindTransport, Provider: p, Message: err.Error(), Err: err}
}
