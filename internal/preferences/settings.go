// Package preferences holds user settings persisted as a YAML file.
package preferences

import (
	"strings"

	"github.com/mediashelf/mediashelf/internal/catalog"
)

const (
	ViewGrid  = "grid"
	ViewTable = "table"

	MinRowHeight     = 30
	MaxRowHeight     = 200
	DefaultRowHeight = 44
)

// DefaultQualityTypes is the initial quality vocabulary.
var DefaultQualityTypes = []string{
	"BluRay",
	"BluRay 1080p",
	"BluRay 2160p",
	"Remux",
	"Remux 1080p",
	"Remux 2160p",
	"WEB-DL 1080p",
	"WEB-DL 2160p",
	"WebDL",
}

// Settings are the user-editable preferences.
type Settings struct {
	TMDBAPIKey   string   `yaml:"tmdbApiKey" json:"tmdbApiKey"`
	IncludeAdult bool     `yaml:"includeAdult" json:"includeAdult"`
	ViewMode     string   `yaml:"viewMode" json:"viewMode"`
	QualityTypes []string `yaml:"qualityTypes" json:"qualityTypes"`
	Statuses     []string `yaml:"statuses" json:"statuses"`
	RowHeight    int      `yaml:"rowHeight" json:"rowHeight"`
	SortField    string   `yaml:"sortField" json:"sortField"`
	SortDir      string   `yaml:"sortDir" json:"sortDir"`
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{
		ViewMode:     ViewGrid,
		QualityTypes: append([]string(nil), DefaultQualityTypes...),
		Statuses:     append([]string(nil), catalog.DefaultStatuses...),
		RowHeight:    DefaultRowHeight,
		SortField:    string(catalog.SortTitle),
		SortDir:      string(catalog.SortAsc),
	}
}

// Normalize fills missing values and clamps out-of-range ones.
func (s *Settings) Normalize() {
	s.TMDBAPIKey = strings.TrimSpace(s.TMDBAPIKey)
	if s.ViewMode != ViewTable {
		s.ViewMode = ViewGrid
	}
	if s.QualityTypes == nil {
		s.QualityTypes = append([]string(nil), DefaultQualityTypes...)
	} else {
		s.QualityTypes = cleanList(s.QualityTypes)
	}
	s.Statuses = cleanList(s.Statuses)
	if len(s.Statuses) == 0 {
		s.Statuses = append([]string(nil), catalog.DefaultStatuses...)
	}
	s.RowHeight = ClampRowHeight(s.RowHeight)

	key, dir := catalog.NormalizeSort(catalog.SortKey(s.SortField), catalog.SortDir(s.SortDir))
	s.SortField, s.SortDir = string(key), string(dir)
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.QualityTypes = append([]string(nil), s.QualityTypes...)
	s.Statuses = append([]string(nil), s.Statuses...)
	return s
}

// ClampRowHeight bounds h to [MinRowHeight, MaxRowHeight]; zero or less
// means the default.
func ClampRowHeight(h int) int {
	switch {
	case h <= 0:
		return DefaultRowHeight
	case h < MinRowHeight:
		return MinRowHeight
	case h > MaxRowHeight:
		return MaxRowHeight
	default:
		return h
	}
}

// ParseQualityTypes splits newline-delimited text into a trimmed list.
func ParseQualityTypes(text string) []string {
	return cleanList(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}

// FormatQualityTypes joins a list back into newline-delimited text.
func FormatQualityTypes(types []string) string {
	return strings.Join(types, "\n")
}

// cleanList trims entries and drops empties and repeats, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
