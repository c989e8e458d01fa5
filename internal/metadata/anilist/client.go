package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mediashelf/mediashelf/internal/config"
)

const perPage = 50

const searchFields = `
      id
      title {
        english
        romaji
        native
      }
      seasonYear
      description
      coverImage {
        large
      }`

// StatusError is returned for non-200 responses and for GraphQL error payloads.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("AniList API error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("AniList API error: status %d", e.StatusCode)
}

// QueryError is a GraphQL error payload that carries no HTTP status.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return "AniList query error: " + e.Message
}

// Client is an AniList GraphQL client.
type Client struct {
	httpClient *http.Client
	config     config.AniListConfig
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a new AniList client. Requests are paced to
// RequestsPerMinute; zero or less disables pacing.
func NewClient(cfg config.AniListConfig, logger zerolog.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:  cfg,
		limiter: rate.NewLimiter(limit, 5),
		logger:  logger.With().Str("component", "anilist").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anilist"
}

// IsConfigured always returns true; AniList needs no credential.
func (c *Client) IsConfigured() bool {
	return true
}

// SearchAnime runs a single-page anime search. When includeAdult is false the
// query itself carries isAdult:false.
func (c *Client) SearchAnime(ctx context.Context, query string, year int, includeAdult bool) ([]NormalizedResult, error) {
	variables := map[string]any{"search": query}
	if year > 0 {
		variables["seasonYear"] = year
	}

	var response searchResponse
	if err := c.doRequest(ctx, buildSearchQuery(includeAdult), variables, &response); err != nil {
		return nil, err
	}

	results := make([]NormalizedResult, 0, len(response.Data.Page.Media))
	for _, m := range response.Data.Page.Media {
		results = append(results, normalize(m))
	}

	c.logger.Debug().
		Str("query", query).
		Int("year", year).
		Bool("includeAdult", includeAdult).
		Int("results", len(results)).
		Msg("Anime search completed")

	return results, nil
}

func buildSearchQuery(includeAdult bool) string {
	filter := "search: $search, seasonYear: $seasonYear, type: ANIME, sort: SEARCH_MATCH"
	if !includeAdult {
		filter += ", isAdult: false"
	}
	return fmt.Sprintf(`query ($search: String, $seasonYear: Int) {
  Page(page: 1, perPage: %d) {
    media(%s) {%s
    }
  }
}`, perPage, filter, searchFields)
}

// ResolveTitle picks the display title: English, then romaji, then "".
func ResolveTitle(english, romaji *string) string {
	if english != nil && *english != "" {
		return *english
	}
	if romaji != nil && *romaji != "" {
		return *romaji
	}
	return ""
}

func normalize(m media) NormalizedResult {
	result := NormalizedResult{
		ID:          m.ID,
		Title:       ResolveTitle(m.Title.English, m.Title.Romaji),
		NativeTitle: deref(m.Title.Native),
		RomajiTitle: deref(m.Title.Romaji),
		Description: deref(m.Description),
		CoverURL:    deref(m.CoverImage.Large),
	}
	if m.SeasonYear != nil {
		result.Year = *m.SeasonYear
	}
	return result
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (c *Client) doRequest(ctx context.Context, query string, variables map[string]any, result *searchResponse) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.config.URL).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errResp searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && len(errResp.Errors) > 0 {
			statusErr.Message = errResp.Errors[0].Message
		}
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("message", statusErr.Message).
			Msg("AniList API error")
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Errors) > 0 {
		first := result.Errors[0]
		c.logger.Warn().
			Int("status", first.Status).
			Str("message", first.Message).
			Msg("AniList query error")
		if first.Status == 0 {
			return &QueryError{Message: first.Message}
		}
		return &StatusError{StatusCode: first.Status, Message: first.Message}
	}

	return nil
}
