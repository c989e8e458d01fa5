package ingest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/metadata"
)

// Searcher runs provider searches.
type Searcher interface {
	IsConfigured(p metadata.Provider) bool
	Search(ctx context.Context, p metadata.Provider, query string, year *int, includeAdult bool) ([]metadata.SearchResult, error)
}

// ArtworkCache materializes remote artwork locally.
type ArtworkCache interface {
	Materialize(ctx context.Context, url string) (string, error)
}

// Store persists promoted items.
type Store interface {
	InsertBatch(ctx context.Context, items []*catalog.Item, skipDuplicates bool) (*catalog.BatchOutcome, error)
}

// Poster hands a function to the interactive context.
type Poster interface {
	Post(fn func()) error
}

// Listener receives session transitions and promotion results. Every method
// runs on the interactive context.
type Listener interface {
	SearchStarted(s Session)
	SearchFinished(s Session)
	PromotionFinished(r PromotionResult)
}

// SearchRequest describes a user-initiated search.
type SearchRequest struct {
	Category     catalog.Category
	Query        string
	Year         *int
	IncludeAdult bool
}

// Coordinator drives search sessions and promotion of selected results.
// Provider calls, artwork downloads and batch inserts run on their own
// goroutines; results come back through the Poster.
type Coordinator struct {
	searcher Searcher
	artwork  ArtworkCache
	store    Store
	loop     Poster
	listener Listener
	logger   zerolog.Logger

	mu      sync.Mutex
	session *Session

	wg sync.WaitGroup
}

// NewCoordinator creates a coordinator in the Idle state.
func NewCoordinator(searcher Searcher, artwork ArtworkCache, store Store, loop Poster, listener Listener, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		searcher: searcher,
		artwork:  artwork,
		store:    store,
		loop:     loop,
		listener: listener,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// Session returns a snapshot of the current session. The zero Session in
// StateIdle is returned before the first search.
func (c *Coordinator) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{State: StateIdle}
	}
	return *c.session
}

// StartSearch replaces the current session with a new one and dispatches the
// provider call. A missing credential fails with a ConfigError before any
// network I/O.
func (c *Coordinator) StartSearch(req SearchRequest) (uuid.UUID, error) {
	provider, err := ProviderFor(req.Category)
	if err != nil {
		return uuid.Nil, err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return uuid.Nil, ErrEmptyQuery
	}
	if !c.searcher.IsConfigured(provider) {
		return uuid.Nil, &ConfigError{Provider: provider}
	}

	session := &Session{
		ID:        uuid.New(),
		Category:  req.Category,
		Provider:  provider,
		Query:     query,
		Year:      req.Year,
		State:     StateSearching,
		StartedAt: time.Now(),
	}

	c.mu.Lock()
	if c.session != nil && c.session.State == StateSearching {
		c.logger.Debug().Str("sessionId", c.session.ID.String()).Msg("Superseding in-flight search")
	}
	c.session = session
	snapshot := *session
	c.mu.Unlock()

	c.logger.Info().
		Str("sessionId", session.ID.String()).
		Str("provider", string(provider)).
		Str("query", query).
		Msg("Search started")

	c.post(session.ID, func() { c.listener.SearchStarted(snapshot) })

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		results, err := c.searcher.Search(context.Background(), provider, query, req.Year, req.IncludeAdult)
		c.finishSearch(session.ID, results, err)
	}()

	return session.ID, nil
}

func (c *Coordinator) finishSearch(id uuid.UUID, results []metadata.SearchResult, err error) {
	c.mu.Lock()
	if c.session == nil || c.session.ID != id {
		c.mu.Unlock()
		c.logger.Debug().Str("sessionId", id.String()).Msg("Ignoring stale search completion")
		return
	}

	next := *c.session
	if err != nil {
		next.State = StateFailed
		next.Err = err
		next.Results = nil
	} else {
		next.State = StateResultsReady
		next.Results = results
	}
	c.session = &next
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("sessionId", id.String()).Msg("Search failed")
	} else {
		c.logger.Info().Str("sessionId", id.String()).Int("results", len(results)).Msg("Search results ready")
	}

	c.post(id, func() { c.listener.SearchFinished(next) })
}

// PromoteSelections persists the selected results of session sessionID, the
// session the indices were taken from. It fails with ErrStaleSession once a
// newer search has replaced that session. Artwork is fetched only for
// selected results; a failed download leaves the item without artwork. The
// outcome is delivered to the listener.
func (c *Coordinator) PromoteSelections(sessionID uuid.UUID, indices []int, status string) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoResults
	}
	if c.session.ID != sessionID {
		current := c.session.ID
		c.mu.Unlock()
		c.logger.Warn().
			Str("sessionId", sessionID.String()).
			Str("currentSessionId", current.String()).
			Msg("Refusing promotion from a replaced search")
		return ErrStaleSession
	}
	if c.session.State != StateResultsReady {
		c.mu.Unlock()
		return ErrNoResults
	}
	session := *c.session
	c.mu.Unlock()

	seen := make(map[int]struct{}, len(indices))
	drafts := make([]*catalog.Item, 0, len(indices))
	urls := make([]string, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(session.Results) {
			c.logger.Warn().Int("index", i).Int("results", len(session.Results)).Msg("Ignoring out-of-range selection")
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}

		r := session.Results[i]
		drafts = append(drafts, Draft(r, session.Category, status))
		urls = append(urls, r.PosterURL)
	}
	if len(drafts) == 0 {
		return ErrNothingSelected
	}

	c.logger.Info().
		Str("sessionId", session.ID.String()).
		Int("selected", len(drafts)).
		Str("status", status).
		Msg("Promoting selections")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx := context.Background()

		for i, draft := range drafts {
			if urls[i] == "" {
				continue
			}
			path, err := c.artwork.Materialize(ctx, urls[i])
			if err != nil {
				c.logger.Warn().Err(err).Str("title", draft.Title).Msg("Artwork unavailable, saving without it")
				continue
			}
			draft.PosterPath = path
		}

		outcome, err := c.store.InsertBatch(ctx, drafts, true)
		result := PromotionResult{SessionID: session.ID, Category: session.Category, Outcome: outcome, Err: err}
		if err != nil {
			c.logger.Error().Err(err).Msg("Promotion failed")
		}

		if postErr := c.loop.Post(func() { c.listener.PromotionFinished(result) }); postErr != nil {
			c.logger.Warn().Err(postErr).Msg("Dropped promotion result")
		}
	}()

	return nil
}

// post delivers fn on the interactive context if id is still the current
// session when fn runs.
func (c *Coordinator) post(id uuid.UUID, fn func()) {
	err := c.loop.Post(func() {
		if !c.isCurrent(id) {
			return
		}
		fn()
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("sessionId", id.String()).Msg("Dropped session notification")
	}
}

func (c *Coordinator) isCurrent(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.ID == id
}

// Wait blocks until every background task has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
