package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Category is the closed set of media kinds.
type Category string

const (
	CategoryMovie Category = "Movie"
	CategoryTV    Category = "TV"
	CategoryAnime Category = "Anime"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryMovie, CategoryTV, CategoryAnime}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidItem, s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMovie, CategoryTV, CategoryAnime:
		return true
	}
	return false
}

// UsesAniList reports whether items of this category carry an AniList id
// rather than a TMDB id.
func (c Category) UsesAniList() bool {
	return c == CategoryAnime
}

// DefaultStatuses is the initial lifecycle vocabulary.
var DefaultStatuses = []string{"On Drive", "To Download", "To Work On"}

// Item is a persisted catalog entry. ID is zero until the item is saved.
// Empty strings and nil pointers are stored as NULL.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	NativeTitle string    `json:"nativeTitle,omitempty"`
	RomajiTitle string    `json:"romajiTitle,omitempty"`
	Year        *int      `json:"year,omitempty"`
	Category    Category  `json:"category"`
	Status      string    `json:"status"`
	Quality     string    `json:"quality,omitempty"`
	Source      string    `json:"source,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	TMDBID      *int64    `json:"tmdbId,omitempty"`
	AniListID   *int64    `json:"anilistId,omitempty"`
	PosterPath  string    `json:"posterPath,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsNew reports whether the item has not been persisted yet.
func (i *Item) IsNew() bool {
	return i.ID == 0
}

// ExternalID returns the category-appropriate provider id, if any.
func (i *Item) ExternalID() (int64, bool) {
	if i.Category.UsesAniList() {
		if i.AniListID != nil {
			return *i.AniListID, true
		}
		return 0, false
	}
	if i.TMDBID != nil {
		return *i.TMDBID, true
	}
	return 0, false
}

func (i *Item) validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidItem)
	}
	if !i.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidItem, i.Category)
	}
	if strings.TrimSpace(i.Status) == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidItem)
	}
	return nil
}

// BatchOutcome reports the per-item results of InsertBatch.
type BatchOutcome struct {
	Added         int      `json:"added"`
	Skipped       int      `json:"skipped"`
	Errors        int      `json:"errors"`
	AddedTitles   []string `json:"addedTitles"`
	SkippedTitles []string `json:"skippedTitles"`
	ErrorItems    []string `json:"errorItems"`
	AddedIDs      []int64  `json:"addedIds"`
}

func newBatchOutcome() *BatchOutcome {
	return &BatchOutcome{
		AddedTitles:   []string{},
		SkippedTitles: []string{},
		ErrorItems:    []string{},
		AddedIDs:      []int64{},
	}
}
