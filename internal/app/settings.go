package app

import (
	"context"

	"github.com/mediashelf/mediashelf/internal/preferences"
)

// SettingsInput is a settings form submission. QualityTypes is
// newline-delimited text; nil fields are left unchanged.
type SettingsInput struct {
	TMDBAPIKey   *string `json:"tmdbApiKey"`
	IncludeAdult *bool   `json:"includeAdult"`
	ViewMode     *string `json:"viewMode"`
	QualityTypes *string `json:"qualityTypes"`
	RowHeight    *int    `json:"rowHeight"`
	// Force removes quality types even when items still use them.
	Force bool `json:"force"`
}

// Settings returns the current user settings.
func (a *App) Settings() preferences.Settings {
	return a.prefs.Get()
}

// SaveSettings validates and persists a settings change, then applies the
// provider credential to the adapter.
func (a *App) SaveSettings(ctx context.Context, in SettingsInput) (preferences.Settings, error) {
	var saved preferences.Settings
	err := a.do(ctx, func() error {
		current := a.prefs.Get()

		var qualities []string
		if in.QualityTypes != nil {
			qualities = preferences.ParseQualityTypes(*in.QualityTypes)
			if err := preferences.CheckQualityRemoval(ctx, a.store, current.QualityTypes, qualities, in.Force); err != nil {
				a.toastError("Save failed", err)
				return err
			}
		}

		next, err := a.prefs.Update(func(s *preferences.Settings) {
			if in.TMDBAPIKey != nil {
				s.TMDBAPIKey = *in.TMDBAPIKey
			}
			if in.IncludeAdult != nil {
				s.IncludeAdult = *in.IncludeAdult
			}
			if in.ViewMode != nil {
				s.ViewMode = *in.ViewMode
			}
			if in.QualityTypes != nil {
				s.QualityTypes = qualities
			}
			if in.RowHeight != nil {
				s.RowHeight = *in.RowHeight
			}
		})
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to save settings")
			a.toast(ToastError, "Save failed: could not write settings file")
			return err
		}

		a.adapter.SetTMDBKey(a.prefs.TMDBKey())
		saved = next
		a.toast(ToastSuccess, "Settings saved")
		return nil
	})
	return saved, err
}
