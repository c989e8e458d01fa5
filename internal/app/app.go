// Package app is the application context. It wires every component once at
// startup, owns the view state on the interactive loop and exposes the
// operations the presentation layer invokes.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/artwork"
	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/database"
	"github.com/mediashelf/mediashelf/internal/ingest"
	"github.com/mediashelf/mediashelf/internal/interactive"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/preferences"
	"github.com/mediashelf/mediashelf/internal/readmodel"
)

// Notification types pushed to presentation clients.
const (
	EventItemsChanged  = "items:changed"
	EventCountsChanged = "counts:changed"
	EventSearchResults = "search:results"
	EventSearchState   = "search:state"
	EventToast         = "toast"
)

// Notifier delivers asynchronous notifications to presentation clients.
type Notifier interface {
	Broadcast(msgType string, payload interface{}) error
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(string, interface{}) error { return nil }

// App is the explicitly constructed application context.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger

	db          *database.DB
	store       *catalog.Store
	cache       *artwork.Cache
	adapter     *metadata.Adapter
	prefs       *preferences.Store
	loop        *interactive.Loop
	coordinator *ingest.Coordinator
	notifier    Notifier

	// Interactive state. Only touched on the loop.
	view      View
	results   []metadata.SearchResult
	resultsOf uuid.UUID // session that produced results
	selection *readmodel.Selection
	searching bool

	stopLoop  context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// New opens the database, loads settings and wires every component. The
// interactive loop is running when New returns; call Close to release it.
func New(cfg *config.Config, logger zerolog.Logger, notifier Notifier) (*App, error) {
	if notifier == nil {
		notifier = nopNotifier{}
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	prefs, err := preferences.Load(cfg.SettingsPath(), config.EmbeddedTMDBKey, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	adapter := metadata.NewAdapterFromConfig(cfg.Metadata, prefs.TMDBKey(), logger)

	a := &App{
		cfg:       cfg,
		logger:    logger.With().Str("component", "app").Logger(),
		db:        db,
		store:     catalog.NewStore(db.Conn(), logger),
		cache:     artwork.New(cfg.ArtworkDir(), time.Duration(cfg.Artwork.Timeout)*time.Second, logger),
		adapter:   adapter,
		prefs:     prefs,
		loop:      interactive.New(logger),
		notifier:  notifier,
		selection: readmodel.NewSelection(0),
	}
	a.coordinator = ingest.NewCoordinator(adapter, a.cache, a.store, a.loop, a, logger)

	settings := prefs.Get()
	a.view = View{
		Category: catalog.CategoryMovie,
		Status:   settings.Statuses[0],
	}
	a.view.Sort, a.view.Dir = catalog.NormalizeSort(catalog.SortKey(settings.SortField), catalog.SortDir(settings.SortDir))

	ctx, cancel := context.WithCancel(context.Background())
	a.stopLoop = cancel
	go a.loop.Run(ctx)

	a.logger.Info().
		Str("database", db.Path()).
		Str("artworkDir", a.cache.Dir()).
		Bool("tmdbConfigured", adapter.IsConfigured(metadata.ProviderTMDBMovie)).
		Msg("Application initialized")

	return a, nil
}

// Close waits for background searches and promotions, stops the interactive
// loop and closes the database. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.coordinator.Wait()
		a.stopLoop()
		<-a.loop.Done()
		a.closeErr = a.db.Close()
		a.logger.Info().Msg("Application closed")
	})
	return a.closeErr
}

// Store exposes the catalog store to maintenance tasks.
func (a *App) Store() *catalog.Store { return a.store }

// Artwork exposes the artwork cache.
func (a *App) Artwork() *artwork.Cache { return a.cache }

// do runs fn on the interactive loop and returns its error.
func (a *App) do(ctx context.Context, fn func() error) error {
	var err error
	if callErr := a.loop.Call(ctx, func() { err = fn() }); callErr != nil {
		if errors.Is(callErr, interactive.ErrStopped) {
			return ErrClosed
		}
		return callErr
	}
	return err
}

func (a *App) notify(msgType string, payload interface{}) {
	if err := a.notifier.Broadcast(msgType, payload); err != nil {
		a.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to broadcast notification")
	}
}
