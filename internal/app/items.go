package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mediashelf/mediashelf/internal/catalog"
)

// pruneGrace protects artwork downloaded for a promotion that has not been
// committed yet.
const pruneGrace = 10 * time.Minute

// ItemInput is a single-item save from an edit dialog. A zero ID inserts.
type ItemInput struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	NativeTitle string `json:"nativeTitle"`
	RomajiTitle string `json:"romajiTitle"`
	Year        *int   `json:"year"`
	Status      string `json:"status"`
	Quality     string `json:"quality"`
	Source      string `json:"source"`
	Notes       string `json:"notes"`
}

// SaveItem inserts a new item into the current category or updates an
// existing one. External ids and artwork of an existing item are kept.
func (a *App) SaveItem(ctx context.Context, in ItemInput) (int64, error) {
	if strings.TrimSpace(in.Title) == "" {
		err := fmt.Errorf("%w: title is required", ErrInvalidInput)
		a.toastError("Save failed", err)
		return 0, err
	}

	var id int64
	err := a.do(ctx, func() error {
		status := in.Status
		if status == "" {
			status = a.view.Status
		}

		item := &catalog.Item{
			ID:          in.ID,
			Title:       strings.TrimSpace(in.Title),
			NativeTitle: in.NativeTitle,
			RomajiTitle: in.RomajiTitle,
			Year:        positiveYear(in.Year),
			Category:    a.view.Category,
			Status:      status,
			Quality:     in.Quality,
			Source:      in.Source,
			Notes:       in.Notes,
		}

		if item.IsNew() {
			newID, err := a.store.Insert(ctx, item)
			if err != nil {
				a.toastError("Save failed", err)
				return err
			}
			id = newID
			a.toast(ToastSuccess, "Item added")
		} else {
			existing, err := a.store.Get(ctx, item.ID)
			if err != nil {
				a.toastError("Save failed", err)
				return err
			}
			item.Category = existing.Category
			item.TMDBID = existing.TMDBID
			item.AniListID = existing.AniListID
			item.PosterPath = existing.PosterPath
			if err := a.store.Update(ctx, item); err != nil {
				a.toastError("Save failed", err)
				return err
			}
			id = item.ID
			a.toast(ToastSuccess, "Item updated")
		}

		a.reloadItems(ctx)
		a.reloadCounts(ctx)
		return nil
	})
	return id, err
}

// DeleteItems removes items and evicts artwork no remaining item references.
// Eviction failures are logged only.
func (a *App) DeleteItems(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return a.do(ctx, func() error {
		paths, err := a.store.ArtworkPaths(ctx, ids)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to collect artwork before delete")
		}

		if err := a.store.DeleteBatch(ctx, ids); err != nil {
			a.toastError("Delete failed", err)
			return err
		}

		a.evictUnreferenced(ctx, paths)
		a.toast(ToastSuccess, "Deleted %d item(s)", len(ids))
		a.reloadItems(ctx)
		a.reloadCounts(ctx)
		return nil
	})
}

func (a *App) evictUnreferenced(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}

	still := map[string]struct{}{}
	remaining, err := a.store.AllArtworkPaths(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to check remaining artwork references")
		return
	}
	for _, p := range remaining {
		still[p] = struct{}{}
	}

	for _, p := range paths {
		if _, shared := still[p]; shared {
			continue
		}
		if _, err := a.cache.Evict(p); err != nil {
			a.logger.Warn().Err(err).Str("path", p).Msg("Failed to evict artwork")
		}
	}
}

// MoveItems sets the status of the given items.
func (a *App) MoveItems(ctx context.Context, ids []int64, status string) error {
	if len(ids) == 0 {
		return nil
	}
	return a.do(ctx, func() error {
		if err := a.store.MoveBatch(ctx, ids, status); err != nil {
			a.toastError("Move failed", err)
			return err
		}
		a.toast(ToastSuccess, "Moved %d item(s)", len(ids))
		a.reloadItems(ctx)
		return nil
	})
}

// Recategorize moves an item to another category and returns its new id.
func (a *App) Recategorize(ctx context.Context, id int64, category catalog.Category) (int64, error) {
	var newID int64
	err := a.do(ctx, func() error {
		var err error
		newID, err = a.store.Recategorize(ctx, id, category)
		if err != nil {
			a.toastError("Change category failed", err)
			return err
		}
		if newID != id {
			a.toast(ToastSuccess, "Moved to %s", category)
		}
		a.reloadItems(ctx)
		a.reloadCounts(ctx)
		return nil
	})
	return newID, err
}

// PruneArtwork removes cached files no catalog item references. It does not
// touch view state and runs on the caller's goroutine.
func (a *App) PruneArtwork(ctx context.Context) (int, error) {
	referenced, err := a.store.AllArtworkPaths(ctx)
	if err != nil {
		return 0, err
	}
	return a.cache.Prune(referenced, time.Now().Add(-pruneGrace))
}

func positiveYear(y *int) *int {
	if y == nil || *y <= 0 {
		return nil
	}
	v := *y
	return &v
}
