package app

import (
	"errors"
	"fmt"

	"github.com/mediashelf/mediashelf/internal/catalog"
	"github.com/mediashelf/mediashelf/internal/ingest"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/preferences"
)

var (
	ErrClosed       = errors.New("application is shutting down")
	ErrInvalidInput = errors.New("invalid input")
)

// ToastKind classifies a toast.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a short user-facing message.
type Toast struct {
	Message string    `json:"message"`
	Kind    ToastKind `json:"kind"`
}

func (a *App) toast(kind ToastKind, format string, args ...interface{}) {
	a.notify(EventToast, Toast{Message: fmt.Sprintf(format, args...), Kind: kind})
}

func (a *App) toastError(prefix string, err error) {
	a.toast(ToastError, "%s: %s", prefix, UserMessage(err))
}

// UserMessage turns an error into a short sentence for the presentation
// layer. Internal detail such as SQL errors or wrapped chains is never
// included.
func UserMessage(err error) string {
	var (
		cfgErr     *ingest.ConfigError
		searchErr  *metadata.SearchError
		qualityErr *preferences.QualityInUseError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("%s API key not set. Configure in Settings.", cfgErr.Provider.Service())
	case errors.As(err, &searchErr):
		service := searchErr.Provider.Service()
		switch searchErr.Kind {
		case metadata.KindRateLimited:
			return fmt.Sprintf("%s is rate limiting requests, try again later", service)
		case metadata.KindProvider:
			if searchErr.StatusCode == 0 {
				return fmt.Sprintf("%s rejected the search: %s", service, searchErr.Message)
			}
			return fmt.Sprintf("%s returned HTTP %d", service, searchErr.StatusCode)
		default:
			return fmt.Sprintf("could not reach %s", service)
		}
	case errors.Is(err, metadata.ErrNotConfigured):
		return "API key not set. Configure in Settings."
	case errors.As(err, &qualityErr):
		return qualityErr.Error()
	case errors.Is(err, ingest.ErrEmptyQuery):
		return "enter something to search for"
	case errors.Is(err, ingest.ErrUnknownCategory), errors.Is(err, metadata.ErrUnknown):
		return "unknown category"
	case errors.Is(err, ingest.ErrNoResults):
		return "no search results to add"
	case errors.Is(err, ingest.ErrNothingSelected):
		return "no results selected"
	case errors.Is(err, ingest.ErrStaleSession):
		return "search results changed, select again"
	case errors.Is(err, catalog.ErrNotFound):
		return "item not found"
	case errors.Is(err, catalog.ErrCategoryImmutable):
		return "category cannot be changed here, use recategorize"
	case errors.Is(err, catalog.ErrInvalidItem), errors.Is(err, ErrInvalidInput):
		return err.Error()
	case errors.Is(err, ErrClosed):
		return ErrClosed.Error()
	default:
		return "unexpected error, see the log for details"
	}
}

func addedMessage(o *catalog.BatchOutcome) string {
	msg := fmt.Sprintf("Added %d, skipped %d duplicates", o.Added, o.Skipped)
	if o.Errors > 0 {
		msg += fmt.Sprintf(", %d failed", o.Errors)
	}
	return msg
}
