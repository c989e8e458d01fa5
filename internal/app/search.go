package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mediashelf/mediashelf/internal/ingest"
	"github.com/mediashelf/mediashelf/internal/readmodel"
)

// Search starts an online search in the current category. It returns once
// the search is dispatched; results arrive as notifications.
func (a *App) Search(ctx context.Context, query string, year *int) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	return a.do(ctx, func() error {
		_, err := a.coordinator.StartSearch(ingest.SearchRequest{
			Category:     a.view.Category,
			Query:        query,
			Year:         positiveYear(year),
			IncludeAdult: a.prefs.Get().IncludeAdult,
		})
		if err != nil {
			a.toastError("Search failed", err)
			return err
		}
		a.clearResults()
		return nil
	})
}

// clearResults drops the transient rows and their selection. A selection
// never outlives the search that produced it.
func (a *App) clearResults() {
	a.results = nil
	a.resultsOf = uuid.Nil
	a.selection.Reset(0)
}

// SearchView returns the transient search rows with their selection state.
func (a *App) SearchView(ctx context.Context) (readmodel.SearchView, error) {
	var view readmodel.SearchView
	err := a.do(ctx, func() error {
		view = a.searchView()
		return nil
	})
	return view, err
}

func (a *App) searchView() readmodel.SearchView {
	return readmodel.NewSearchView(a.results, a.selection, a.searching)
}

// ToggleResult flips the selection of one search row.
func (a *App) ToggleResult(ctx context.Context, index int) (readmodel.SearchView, error) {
	var view readmodel.SearchView
	err := a.do(ctx, func() error {
		a.selection.Toggle(index)
		view = a.searchView()
		a.notify(EventSearchResults, view)
		return nil
	})
	return view, err
}

// Promote adds the given search rows to the catalog under the current status.
// A nil indices promotes the current selection. The outcome arrives as a
// toast once artwork and the batch insert have finished.
func (a *App) Promote(ctx context.Context, indices []int) error {
	return a.do(ctx, func() error {
		if indices == nil {
			indices = a.selection.Indices()
		}
		status := a.view.Status
		if status == "" {
			status = a.prefs.Get().Statuses[0]
		}

		if a.resultsOf == uuid.Nil {
			a.toastError("Add failed", ingest.ErrNoResults)
			return ingest.ErrNoResults
		}

		if err := a.coordinator.PromoteSelections(a.resultsOf, indices, status); err != nil {
			a.toastError("Add failed", err)
			return err
		}
		return nil
	})
}

// SearchStarted implements ingest.Listener.
func (a *App) SearchStarted(s ingest.Session) {
	a.searching = true
	a.clearResults()
	a.notify(EventSearchState, map[string]bool{"searching": true})
	a.notify(EventSearchResults, a.searchView())
}

// SearchFinished implements ingest.Listener.
func (a *App) SearchFinished(s ingest.Session) {
	a.searching = false
	a.notify(EventSearchState, map[string]bool{"searching": false})

	if s.State == ingest.StateFailed {
		a.clearResults()
		a.toastError("Search failed", s.Err)
		a.notify(EventSearchResults, a.searchView())
		return
	}

	a.results = s.Results
	a.resultsOf = s.ID
	a.selection.Reset(len(s.Results))
	a.toast(ToastSuccess, "Found %d results", len(s.Results))
	a.notify(EventSearchResults, a.searchView())
}

// PromotionFinished implements ingest.Listener.
func (a *App) PromotionFinished(r ingest.PromotionResult) {
	if r.Err != nil {
		a.toastError("Add failed", r.Err)
		return
	}

	a.selection.Reset(len(a.results))
	a.toast(ToastSuccess, "%s", addedMessage(r.Outcome))
	a.notify(EventSearchResults, a.searchView())

	ctx := context.Background()
	a.reloadItems(ctx)
	a.reloadCounts(ctx)
}
