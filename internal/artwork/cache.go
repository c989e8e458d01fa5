package artwork

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DirName is the default cache directory name and the marker segment Evict requires.
const DirName = "image_cache"

const defaultExt = "jpg"

// Cache is a content-addressed local store for remote poster images.
// A URL maps to <dir>/<first 16 hex of sha256(url)>.<ext>.
type Cache struct {
	dir        string
	marker     string
	httpClient *http.Client
	group      singleflight.Group
	logger     zerolog.Logger
}

// New creates a cache rooted at dir. The directory is created lazily.
func New(dir string, timeout time.Duration, logger zerolog.Logger) *Cache {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Cache{
		dir:    dir,
		marker: filepath.Base(filepath.Clean(dir)),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "artwork").Logger(),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// FileName returns the cache file name for a source URL.
func FileName(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])[:16] + "." + extension(sourceURL)
}

// PathFor returns where sourceURL is, or would be, cached.
func (c *Cache) PathFor(sourceURL string) string {
	return filepath.Join(c.dir, FileName(sourceURL))
}

// extension recovers the file extension from the URL's last path segment.
func extension(sourceURL string) string {
	p := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		p = u.Path
	}

	ext := strings.TrimPrefix(path.Ext(path.Base(p)), ".")
	if ext == "" || len(ext) > 5 {
		return defaultExt
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return defaultExt
		}
	}
	return strings.ToLower(ext)
}

// Materialize ensures a local copy of sourceURL exists and returns its path.
// An existing file is returned without a network request. Concurrent calls
// for the same URL share one download.
func (c *Cache) Materialize(ctx context.Context, sourceURL string) (string, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return "", transportErr(sourceURL, ErrInvalidURL)
	}

	dest := c.PathFor(sourceURL)
	if exists(dest) {
		return dest, nil
	}

	v, err, _ := c.group.Do(dest, func() (interface{}, error) {
		if exists(dest) {
			return dest, nil
		}
		return dest, c.download(ctx, sourceURL, dest)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) download(ctx context.Context, sourceURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return transportErr(sourceURL, fmt.Errorf("%w: %v", ErrInvalidURL, err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", sourceURL).Msg("Artwork download failed")
		return transportErr(sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("url", sourceURL).Msg("Artwork download failed")
		return transportErr(sourceURL, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Error().Err(err).Str("dir", c.dir).Msg("Failed to create artwork directory")
		return ioErr(sourceURL, err)
	}

	written, err := writeAtomic(dest, resp.Body)
	if err != nil {
		var readErr *bodyReadError
		if errors.As(err, &readErr) {
			return transportErr(sourceURL, readErr.err)
		}
		c.logger.Error().Err(err).Str("path", dest).Msg("Failed to write artwork file")
		return ioErr(sourceURL, err)
	}

	c.logger.Info().
		Str("url", sourceURL).
		Str("path", dest).
		Int64("bytes", written).
		Msg("Artwork downloaded")

	return nil
}

type bodyReadError struct{ err error }

func (e *bodyReadError) Error() string { return e.err.Error() }

type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// writeAtomic streams r into a hidden temp file beside dest and renames it
// into place. The temp file is removed on any failure.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	dir, name := filepath.Split(dest)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	src := &trackingReader{r: r}
	written, err := io.Copy(tmp, src)
	if err != nil {
		if src.err != nil {
			return 0, &bodyReadError{err: src.err}
		}
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, err
	}
	return written, nil
}

// Managed reports whether p lies under a directory carrying the cache marker.
func (c *Cache) Managed(p string) bool {
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Clean(p)), "/") {
		if seg == c.marker {
			return true
		}
	}
	return false
}

// Evict deletes a cached file. Paths without the cache marker segment are
// refused and reported as not removed. A missing file is not an error.
func (c *Cache) Evict(p string) (bool, error) {
	if !c.Managed(p) {
		if p != "" {
			c.logger.Warn().Str("path", p).Msg("Refusing to evict path outside artwork cache")
		}
		return false, nil
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("evict %s: %w", p, err)
	}

	c.logger.Debug().Str("path", p).Msg("Artwork evicted")
	return true, nil
}

// Prune removes cache files not present in referenced, including leftover
// temp files. Files modified at or after before are kept so that artwork
// downloaded for an insert still in flight survives. It returns the number
// of files removed.
func (c *Cache) Prune(referenced []string, before time.Time) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read artwork directory: %w", err)
	}

	keep := make(map[string]struct{}, len(referenced))
	for _, p := range referenced {
		if p != "" {
			keep[filepath.Base(p)] = struct{}{}
		}
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := keep[entry.Name()]; ok {
			continue
		}
		if info, err := entry.Info(); err != nil || !info.ModTime().Before(before) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to prune artwork")
			continue
		}
		removed++
	}

	c.logger.Info().Int("removed", removed).Int("referenced", len(keep)).Msg("Artwork prune completed")
	return removed, nil
}

func exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
