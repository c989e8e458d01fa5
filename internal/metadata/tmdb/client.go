package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/config"
)

var ErrAPIKeyMissing = errors.New("TMDB API key is not configured")

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("TMDB API error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("TMDB API error: status %d", e.StatusCode)
}

// Client is a TMDB search client.
type Client struct {
	httpClient *http.Client
	config     config.TMDBConfig
	logger     zerolog.Logger

	mu     sync.RWMutex
	apiKey string
}

// NewClient creates a new TMDB client.
func NewClient(cfg config.TMDBConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		apiKey: cfg.APIKey,
		logger: logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tmdb"
}

// SetAPIKey replaces the credential used for subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.key() != ""
}

// Search fetches a single page of movie or TV results.
// year filters by release year for movies and first air year for TV; 0 disables it.
func (c *Client) Search(ctx context.Context, kind MediaKind, query string, year int, includeAdult bool, page int) (*SearchPage, error) {
	apiKey := c.key()
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/search/%s", c.config.BaseURL, kind)
	params := url.Values{}
	params.Set("api_key", apiKey)
	params.Set("query", query)
	params.Set("language", c.language())
	params.Set("include_adult", strconv.FormatBool(includeAdult))
	params.Set("page", strconv.Itoa(page))
	if year > 0 {
		if kind == KindTV {
			params.Set("first_air_date_year", strconv.Itoa(year))
		} else {
			params.Set("year", strconv.Itoa(year))
		}
	}

	var response searchResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]NormalizedResult, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, c.normalize(kind, r))
	}

	c.logger.Debug().
		Str("kind", string(kind)).
		Str("query", query).
		Int("page", page).
		Int("totalPages", response.TotalPages).
		Int("results", len(results)).
		Msg("Search page fetched")

	return &SearchPage{
		Page:         response.Page,
		TotalPages:   response.TotalPages,
		TotalResults: response.TotalResults,
		Results:      results,
	}, nil
}

// GetImageURL returns a full image URL for a given path and size.
func (c *Client) GetImageURL(path string, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.config.ImageBaseURL, size, path)
}

func (c *Client) language() string {
	if c.config.Language == "" {
		return "en-US"
	}
	return c.config.Language
}

func (c *Client) normalize(kind MediaKind, r searchResult) NormalizedResult {
	title, date := r.Title, r.ReleaseDate
	if kind == KindTV {
		title, date = r.Name, r.FirstAirDate
	}

	result := NormalizedResult{
		ID:       r.ID,
		Title:    title,
		Year:     parseYear(date),
		Overview: r.Overview,
	}
	if r.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*r.PosterPath, "w500")
	}
	return result
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// doRequest performs an HTTP GET request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			statusErr.Message = errResp.StatusMessage
		}
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("message", statusErr.Message).
			Msg("TMDB API error")
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
