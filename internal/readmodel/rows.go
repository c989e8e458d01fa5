// Package readmodel derives presentation rows from catalog items and
// transient search results. Rows are rebuilt on every reload and never stored.
package readmodel

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/metadata"
)

// Kind tags which entity a row was derived from.
type Kind string

const (
	KindMedia  Kind = "media"
	KindSearch Kind = "search"
)

// MediaRow is the listing projection of a catalog item.
type MediaRow struct {
	Kind         Kind             `json:"kind"`
	ID           int64            `json:"id"`
	Title        string           `json:"title"`
	DisplayTitle string           `json:"displayTitle"`
	NativeTitle  string           `json:"nativeTitle,omitempty"`
	RomajiTitle  string           `json:"romajiTitle,omitempty"`
	Year         *int             `json:"year,omitempty"`
	Category     catalog.Category `json:"category"`
	Status       string           `json:"status"`
	Quality      string           `json:"quality,omitempty"`
	Source       string           `json:"source,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	TMDBID       *int64           `json:"tmdbId,omitempty"`
	AniListID    *int64           `json:"anilistId,omitempty"`
	Artwork      string           `json:"artwork"`
	ArtworkName  string           `json:"artworkName,omitempty"`
}

// SearchRow is the projection of one transient search result.
type SearchRow struct {
	Kind        Kind   `json:"kind"`
	Index       int    `json:"index"`
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	NativeTitle string `json:"nativeTitle,omitempty"`
	RomajiTitle string `json:"romajiTitle,omitempty"`
	Year        *int   `json:"year,omitempty"`
	Overview    string `json:"overview,omitempty"`
	PosterURL   string `json:"posterUrl,omitempty"`
	Selected    bool   `json:"selected"`
}

// SearchView is the full search panel projection.
type SearchView struct {
	Rows          []SearchRow `json:"rows"`
	SelectedCount int         `json:"selectedCount"`
	Searching     bool        `json:"searching"`
}

// ResolveArtwork returns a file URI for path if it still names a regular
// file, or "" when there is no usable artwork.
func ResolveArtwork(path string) string {
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// DisplayTitle picks the first non-empty of title, romanized, native.
func DisplayTitle(title, romaji, native string) string {
	switch {
	case title != "":
		return title
	case romaji != "":
		return romaji
	default:
		return native
	}
}

// MediaRowFor projects a single item.
func MediaRowFor(item *catalog.Item) MediaRow {
	row := MediaRow{
		Kind:         KindMedia,
		ID:           item.ID,
		Title:        item.Title,
		DisplayTitle: DisplayTitle(item.Title, item.RomajiTitle, item.NativeTitle),
		NativeTitle:  item.NativeTitle,
		RomajiTitle:  item.RomajiTitle,
		Year:         item.Year,
		Category:     item.Category,
		Status:       item.Status,
		Quality:      item.Quality,
		Source:       item.Source,
		Notes:        item.Notes,
		TMDBID:       item.TMDBID,
		AniListID:    item.AniListID,
		Artwork:      ResolveArtwork(item.PosterPath),
	}
	if row.Artwork != "" {
		row.ArtworkName = filepath.Base(item.PosterPath)
	}
	return row
}

// MediaRows projects a listing.
func MediaRows(items []*catalog.Item) []MediaRow {
	rows := make([]MediaRow, len(items))
	for i, item := range items {
		rows[i] = MediaRowFor(item)
	}
	return rows
}

// SearchRows projects search results with their selection state.
func SearchRows(results []metadata.SearchResult, sel *Selection) []SearchRow {
	rows := make([]SearchRow, len(results))
	for i, r := range results {
		rows[i] = SearchRow{
			Kind:        KindSearch,
			Index:       i,
			ID:          r.ID,
			Title:       r.Title,
			NativeTitle: r.NativeTitle,
			RomajiTitle: r.RomajiTitle,
			Year:        r.Year,
			Overview:    r.Overview,
			PosterURL:   r.PosterURL,
			Selected:    sel.Has(i),
		}
	}
	return rows
}

// NewSearchView builds the search panel projection.
func NewSearchView(results []metadata.SearchResult, sel *Selection, searching bool) SearchView {
	return SearchView{
		Rows:          SearchRows(results, sel),
		SelectedCount: sel.Count(),
		Searching:     searching,
	}
}
