package ingest

import (
	"errors"
	"fmt"

	"github.com/mediashelf/mediashelf/internal/metadata"
)

var (
	ErrConfig          = errors.New("provider credential missing")
	ErrUnknownCategory = errors.New("unknown category")
	ErrEmptyQuery      = errors.New("search query is empty")
	ErrNoResults       = errors.New("no search results to promote")
	ErrNothingSelected = errors.New("no results selected")
	ErrStaleSession    = errors.New("search results have been replaced")
)

// ConfigError reports a search refused before any network call because the
// provider's credential is absent. It matches ErrConfig.
type ConfigError struct {
	Provider metadata.Provider
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s API key is not configured", e.Provider.Service())
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
