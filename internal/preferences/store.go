package preferences

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var ErrQualityInUse = errors.New("quality type is in use")

// QualityInUseError names a quality type that items still reference.
type QualityInUseError struct {
	Quality string
	Count   int
}

func (e *QualityInUseError) Error() string {
	return fmt.Sprintf("quality type %q is used by %d item(s)", e.Quality, e.Count)
}

func (e *QualityInUseError) Is(target error) bool {
	return target == ErrQualityInUse
}

// QualityCounter counts items using a quality descriptor.
type QualityCounter interface {
	CountWithQuality(ctx context.Context, quality string) (int, error)
}

// Store owns the settings file. Reads are served from memory; every change
// is written back before the call returns.
type Store struct {
	mu          sync.RWMutex
	path        string
	current     Settings
	fallbackKey string
	logger      zerolog.Logger
}

// Load reads settings from path, falling back to defaults when the file does
// not exist. fallbackKey is used when no TMDB key was saved.
func Load(path, fallbackKey string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:        path,
		current:     Defaults(),
		fallbackKey: fallbackKey,
		logger:      logger.With().Str("component", "preferences").Logger(),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info().Str("path", path).Msg("No settings file, using defaults")
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	loaded := Defaults()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	loaded.Normalize()
	s.current = loaded

	s.logger.Debug().Str("path", path).Msg("Settings loaded")
	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// TMDBKey returns the saved key, or the fallback key when none was saved.
func (s *Store) TMDBKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.TMDBAPIKey != "" {
		return s.current.TMDBAPIKey
	}
	return s.fallbackKey
}

// Update applies fn to a copy of the settings, normalizes and saves the
// result. On a save error the in-memory settings are unchanged.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	fn(&next)
	next.Normalize()

	if err := s.save(next); err != nil {
		return s.current.Clone(), err
	}
	s.current = next
	return next.Clone(), nil
}

func (s *Store) save(settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Msg("Settings saved")
	return nil
}

// CheckQualityRemoval refuses to drop quality types that items still use,
// unless force is set.
func CheckQualityRemoval(ctx context.Context, counter QualityCounter, before, after []string, force bool) error {
	if force {
		return nil
	}

	kept := make(map[string]struct{}, len(after))
	for _, q := range after {
		kept[q] = struct{}{}
	}

	for _, q := range before {
		if _, ok := kept[q]; ok {
			continue
		}
		n, err := counter.CountWithQuality(ctx, q)
		if err != nil {
			return err
		}
		if n > 0 {
			return &QualityInUseError{Quality: q, Count: n}
		}
	}
	return nil
}
