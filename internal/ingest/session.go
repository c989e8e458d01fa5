package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/metadata"
)

// State is the lifecycle of a search session.
type State string

const (
	StateIdle         State = "idle"
	StateSearching    State = "searching"
	StateResultsReady State = "results_ready"
	StateFailed       State = "failed"
)

// Session is a snapshot of one search-to-promotion cycle. Results is
// replaced wholesale by each search and is never mutated in place.
type Session struct {
	ID        uuid.UUID
	Category  catalog.Category
	Provider  metadata.Provider
	Query     string
	Year      *int
	State     State
	Results   []metadata.SearchResult
	Err       error
	StartedAt time.Time
}

// Searching reports whether the session is waiting on its provider.
func (s Session) Searching() bool {
	return s.State == StateSearching
}

// PromotionResult reports a finished promotion.
type PromotionResult struct {
	SessionID uuid.UUID
	Category  catalog.Category
	Outcome   *catalog.BatchOutcome
	Err       error
}

// ProviderFor maps a catalog category to its search provider.
func ProviderFor(c catalog.Category) (metadata.Provider, error) {
	switch c {
	case catalog.CategoryMovie:
		return metadata.ProviderTMDBMovie, nil
	case catalog.CategoryTV:
		return metadata.ProviderTMDBTV, nil
	case catalog.CategoryAnime:
		return metadata.ProviderAniList, nil
	default:
		return "", ErrUnknownCategory
	}
}

// Draft builds an unsaved catalog item from a search result. Quality, source
// and notes stay empty; the external id goes to the field for category.
func Draft(r metadata.SearchResult, category catalog.Category, status string) *catalog.Item {
	item := &catalog.Item{
		Title:       r.Title,
		NativeTitle: r.NativeTitle,
		RomajiTitle: r.RomajiTitle,
		Category:    category,
		Status:      status,
	}
	if r.Year != nil {
		y := *r.Year
		item.Year = &y
	}

	id := r.ID
	if category.UsesAniList() {
		item.AniListID = &id
	} else {
		item.TMDBID = &id
	}
	return item
}
