package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const itemColumns = `id, title, native_title, romaji_title, year, media_type, status,
	quality_type, source, notes, tmdb_id, anilist_id, poster_path, created_at, updated_at`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides typed catalog operations. One mutex serializes every call,
// so at most one statement or transaction runs at a time.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a catalog store over an open, migrated database.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// List returns items matching f in the requested order.
func (s *Store) List(ctx context.Context, f Filter) ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := f.where()
	query := "SELECT " + itemColumns + " FROM media_items" + where + orderBy(f.Sort, f.Dir)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list", err)
	}
	defer rows.Close()

	items := make([]*Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storeErr("list", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	return items, nil
}

// CountFiltered returns how many items match f.
func (s *Store) CountFiltered(ctx context.Context, f Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := f.where()
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_items"+where, args...).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// CountsByCategory returns the item count per category; every category is present.
func (s *Store) CountsByCategory(ctx context.Context) (map[Category]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}

	rows, err := s.db.QueryContext(ctx, "SELECT media_type, COUNT(*) FROM media_items GROUP BY media_type")
	if err != nil {
		return nil, storeErr("counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, storeErr("counts", err)
		}
		counts[Category(category)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("counts", err)
	}
	return counts, nil
}

// Get retrieves an item by id.
func (s *Store) Get(ctx context.Context, id int64) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getItem(ctx, s.db, id)
}

func getItem(ctx context.Context, q querier, id int64) (*Item, error) {
	row := q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM media_items WHERE id = ?", id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get", err)
	}
	return item, nil
}

// Insert persists a new item and returns its id.
func (s *Store) Insert(ctx context.Context, item *Item) (int64, error) {
	if err := item.validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := insertItem(ctx, s.db, item)
	if err != nil {
		return 0, storeErr("insert", err)
	}

	s.logger.Info().Int64("itemId", id).Str("title", item.Title).Str("category", string(item.Category)).Msg("Created item")
	return id, nil
}

func insertItem(ctx context.Context, q querier, item *Item) (int64, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO media_items (title, native_title, romaji_title, year, media_type, status,
			quality_type, source, notes, tmdb_id, anilist_id, poster_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(item.Title),
		nullString(item.NativeTitle),
		nullString(item.RomajiTitle),
		nullInt(item.Year),
		string(item.Category),
		item.Status,
		nullString(item.Quality),
		nullString(item.Source),
		nullString(item.Notes),
		nullInt64(item.TMDBID),
		nullInt64(item.AniListID),
		nullString(item.PosterPath),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Update overwrites an existing item's fields and refreshes updated_at.
// The category cannot change; use Recategorize.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item.IsNew() {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if err := item.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := getItem(ctx, s.db, item.ID)
	if err != nil {
		return err
	}
	if existing.Category != item.Category {
		return ErrCategoryImmutable
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE media_items SET title = ?, native_title = ?, romaji_title = ?, year = ?, status = ?,
			quality_type = ?, source = ?, notes = ?, tmdb_id = ?, anilist_id = ?, poster_path = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		strings.TrimSpace(item.Title),
		nullString(item.NativeTitle),
		nullString(item.RomajiTitle),
		nullInt(item.Year),
		item.Status,
		nullString(item.Quality),
		nullString(item.Source),
		nullString(item.Notes),
		nullInt64(item.TMDBID),
		nullInt64(item.AniListID),
		nullString(item.PosterPath),
		item.ID,
	)
	if err != nil {
		return storeErr("update", err)
	}

	s.logger.Info().Int64("itemId", item.ID).Msg("Updated item")
	return nil
}

// Delete removes one item.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM media_items WHERE id = ?", id)
	if err != nil {
		return storeErr("delete", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBatch removes the given items. Unknown ids are ignored; an empty list is a no-op.
func (s *Store) DeleteBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders, args := inClause(ids)
	result, err := s.db.ExecContext(ctx, "DELETE FROM media_items WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return storeErr("delete batch", err)
	}

	n, _ := result.RowsAffected()
	s.logger.Info().Int("requested", len(ids)).Int64("deleted", n).Msg("Deleted items")
	return nil
}

// MoveBatch sets the status of the given items. An empty list is a no-op.
func (s *Store) MoveBatch(ctx context.Context, ids []int64, status string) error {
	if len(ids) == 0 {
		return nil
	}
	if strings.TrimSpace(status) == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders, args := inClause(ids)
	args = append([]any{status}, args...)
	_, err := s.db.ExecContext(ctx,
		"UPDATE media_items SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return storeErr("move batch", err)
	}

	s.logger.Info().Int("count", len(ids)).Str("status", status).Msg("Moved items")
	return nil
}

// IsDuplicate reports whether item already exists in the catalog.
func (s *Store) IsDuplicate(ctx context.Context, item *Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dup, err := isDuplicate(ctx, s.db, item)
	if err != nil {
		return false, storeErr("duplicate check", err)
	}
	return dup, nil
}

// isDuplicate matches on the category-appropriate external id when the item
// has one: AniList ids globally, TMDB ids within the same category. Items
// without an external id match on title, year and category, where two
// unknown years are equal.
func isDuplicate(ctx context.Context, q querier, item *Item) (bool, error) {
	var (
		query string
		args  []any
	)
	if id, ok := item.ExternalID(); ok {
		if item.Category.UsesAniList() {
			query = "SELECT EXISTS(SELECT 1 FROM media_items WHERE anilist_id = ?)"
			args = []any{id}
		} else {
			query = "SELECT EXISTS(SELECT 1 FROM media_items WHERE tmdb_id = ? AND media_type = ?)"
			args = []any{id, string(item.Category)}
		}
	} else {
		query = "SELECT EXISTS(SELECT 1 FROM media_items WHERE title = ? AND year IS ? AND media_type = ?)"
		args = []any{strings.TrimSpace(item.Title), nullInt(item.Year), string(item.Category)}
	}

	var exists bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// InsertBatch inserts items in one transaction. Per-item failures are
// recorded in the outcome and do not abort the batch; the transaction
// commits once. Only transaction-level failures are returned as errors.
func (s *Store) InsertBatch(ctx context.Context, items []*Item, skipDuplicates bool) (*BatchOutcome, error) {
	outcome := newBatchOutcome()
	if len(items) == 0 {
		return outcome, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin batch", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, item := range items {
		if err := item.validate(); err != nil {
			outcome.Errors++
			outcome.ErrorItems = append(outcome.ErrorItems, fmt.Sprintf("%s: %v", item.Title, err))
			continue
		}

		if skipDuplicates {
			dup, err := isDuplicate(ctx, tx, item)
			if err != nil {
				outcome.Errors++
				outcome.ErrorItems = append(outcome.ErrorItems, fmt.Sprintf("%s: %v", item.Title, err))
				continue
			}
			if dup {
				outcome.Skipped++
				outcome.SkippedTitles = append(outcome.SkippedTitles, item.Title)
				continue
			}
		}

		id, err := insertItem(ctx, tx, item)
		if err != nil {
			outcome.Errors++
			outcome.ErrorItems = append(outcome.ErrorItems, fmt.Sprintf("%s: %v", item.Title, err))
			continue
		}
		outcome.Added++
		outcome.AddedTitles = append(outcome.AddedTitles, item.Title)
		outcome.AddedIDs = append(outcome.AddedIDs, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit batch", err)
	}

	s.logger.Info().
		Int("added", outcome.Added).
		Int("skipped", outcome.Skipped).
		Int("errors", outcome.Errors).
		Msg("Batch insert completed")

	return outcome, nil
}

// Recategorize moves an item to another category by inserting a copy without
// external ids and deleting the original, in one transaction. It returns the
// id of the new row.
func (s *Store) Recategorize(ctx context.Context, id int64, category Category) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("%w: unknown category %q", ErrInvalidItem, category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin recategorize", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	item, err := getItem(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if item.Category == category {
		return id, nil
	}

	from := item.Category
	item.Category = category
	item.TMDBID = nil
	item.AniListID = nil

	newID, err := insertItem(ctx, tx, item)
	if err != nil {
		return 0, storeErr("recategorize insert", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM media_items WHERE id = ?", id); err != nil {
		return 0, storeErr("recategorize delete", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("commit recategorize", err)
	}

	s.logger.Info().
		Int64("oldId", id).
		Int64("newId", newID).
		Str("from", string(from)).
		Str("to", string(category)).
		Msg("Recategorized item")

	return newID, nil
}

// ArtworkPaths returns the distinct non-empty artwork paths of the given items.
func (s *Store) ArtworkPaths(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders, args := inClause(ids)
	return queryPaths(ctx, s.db,
		"SELECT DISTINCT poster_path FROM media_items WHERE poster_path IS NOT NULL AND poster_path != '' AND id IN ("+placeholders+")",
		args...)
}

// AllArtworkPaths returns every distinct artwork path referenced by the catalog.
func (s *Store) AllArtworkPaths(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return queryPaths(ctx, s.db,
		"SELECT DISTINCT poster_path FROM media_items WHERE poster_path IS NOT NULL AND poster_path != ''")
}

// CountWithQuality returns how many items use the quality descriptor q.
func (s *Store) CountWithQuality(ctx context.Context, q string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_items WHERE quality_type = ?", q).Scan(&n); err != nil {
		return 0, storeErr("count quality", err)
	}
	return n, nil
}

func queryPaths(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("artwork paths", err)
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, storeErr("artwork paths", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("artwork paths", err)
	}
	return paths, nil
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*Item, error) {
	var (
		item                            Item
		category                        string
		native, romaji, quality, source sql.NullString
		notes, poster, created, updated sql.NullString
		year, tmdbID, anilistID         sql.NullInt64
	)
	err := row.Scan(&item.ID, &item.Title, &native, &romaji, &year, &category, &item.Status,
		&quality, &source, &notes, &tmdbID, &anilistID, &poster, &created, &updated)
	if err != nil {
		return nil, err
	}

	item.Category = Category(category)
	item.NativeTitle = native.String
	item.RomajiTitle = romaji.String
	item.Quality = quality.String
	item.Source = source.String
	item.Notes = notes.String
	item.PosterPath = poster.String
	if year.Valid {
		y := int(year.Int64)
		item.Year = &y
	}
	if tmdbID.Valid {
		v := tmdbID.Int64
		item.TMDBID = &v
	}
	if anilistID.Valid {
		v := anilistID.Int64
		item.AniListID = &v
	}
	item.CreatedAt = parseTime(created.String)
	item.UpdatedAt = parseTime(updated.String)
	return &item, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
