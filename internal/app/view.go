package app

import (
	"context"
	"fmt"

	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/preferences"
	"github.com/mediashelf/mediashelf/internal/readmodel"
)

// View is the listing state the presentation layer is looking at.
type View struct {
	Category catalog.Category `json:"category"`
	Status   string           `json:"status"`
	Term     string           `json:"term"`
	Sort     catalog.SortKey  `json:"sort"`
	Dir      catalog.SortDir  `json:"dir"`
}

func (v View) filter() catalog.Filter {
	return catalog.Filter{
		Category: v.Category,
		Status:   v.Status,
		Term:     v.Term,
		Sort:     v.Sort,
		Dir:      v.Dir,
	}
}

// Listing is the projection of the current view.
type Listing struct {
	View  View                 `json:"view"`
	Rows  []readmodel.MediaRow `json:"rows"`
	Total int                  `json:"total"`
}

// CurrentView returns the view state.
func (a *App) CurrentView(ctx context.Context) (View, error) {
	var v View
	err := a.do(ctx, func() error {
		v = a.view
		return nil
	})
	return v, err
}

// Items lists the current view. Artwork references are re-resolved on every
// call.
func (a *App) Items(ctx context.Context) (*Listing, error) {
	var listing *Listing
	err := a.do(ctx, func() error {
		var err error
		listing, err = a.listing(ctx)
		return err
	})
	return listing, err
}

func (a *App) listing(ctx context.Context) (*Listing, error) {
	f := a.view.filter()
	items, err := a.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := a.store.CountFiltered(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Listing{View: a.view, Rows: readmodel.MediaRows(items), Total: total}, nil
}

// Counts returns the number of items per category.
func (a *App) Counts(ctx context.Context) (map[catalog.Category]int, error) {
	var counts map[catalog.Category]int
	err := a.do(ctx, func() error {
		var err error
		counts, err = a.store.CountsByCategory(ctx)
		return err
	})
	return counts, err
}

// Statuses returns the configured lifecycle statuses.
func (a *App) Statuses() []string {
	return a.prefs.Get().Statuses
}

// Navigate switches category. The status filter resets to the first
// configured status and the search term is cleared.
func (a *App) Navigate(ctx context.Context, category catalog.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	return a.do(ctx, func() error {
		a.view.Category = category
		a.view.Status = a.prefs.Get().Statuses[0]
		a.view.Term = ""
		a.reloadItems(ctx)
		a.reloadCounts(ctx)
		return nil
	})
}

// SetStatus changes the status filter.
func (a *App) SetStatus(ctx context.Context, status string) error {
	return a.do(ctx, func() error {
		a.view.Status = status
		a.reloadItems(ctx)
		return nil
	})
}

// SetTerm changes the free-text filter.
func (a *App) SetTerm(ctx context.Context, term string) error {
	return a.do(ctx, func() error {
		a.view.Term = term
		a.reloadItems(ctx)
		return nil
	})
}

// SetSort changes the listing order and persists it. Unknown keys fall back
// to title ascending.
func (a *App) SetSort(ctx context.Context, key catalog.SortKey, dir catalog.SortDir) error {
	return a.do(ctx, func() error {
		a.view.Sort, a.view.Dir = catalog.NormalizeSort(key, dir)
		if _, err := a.prefs.Update(func(s *preferences.Settings) {
			s.SortField = string(a.view.Sort)
			s.SortDir = string(a.view.Dir)
		}); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to persist sort order")
		}
		a.reloadItems(ctx)
		return nil
	})
}

func (a *App) reloadItems(ctx context.Context) {
	listing, err := a.listing(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to reload items")
		return
	}
	a.notify(EventItemsChanged, listing)
}

func (a *App) reloadCounts(ctx context.Context) {
	counts, err := a.store.CountsByCategory(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to reload counts")
		return
	}
	a.notify(EventCountsChanged, counts)
}
