package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/shared"
)

// PlaylistRepository implements models.Repository[*models.PersistedPlaylist] and stores playlist items.
//
// It also satisfies tasks.PlaylistStore, so the detector host mutates playlists through it.
type PlaylistRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.PersistedPlaylist] = (*PlaylistRepository)(nil)

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.PersistedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	playlist.SetID(id)
	playlist.SetSequence(sequence)

	query := `
		INSERT INTO playlists (id, sequence, name, lock_mask, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		playlist.Name(),
		uint32(playlist.LockMask()),
		playlist.CreatedAt(),
		playlist.UpdatedAt(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistExists, playlist.Name())
		}
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist by ID
func (r *PlaylistRepository) Get(id string) (*models.PersistedPlaylist, error) {
	query := `
		SELECT id, sequence, name, lock_mask, created_at, updated_at
		FROM playlists
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByName retrieves a playlist by its unique name
func (r *PlaylistRepository) GetByName(name string) (*models.PersistedPlaylist, error) {
	query := `
		SELECT id, sequence, name, lock_mask, created_at, updated_at
		FROM playlists
		WHERE name = ?
	`

	return r.scanOne(r.db.QueryRow(query, name), name)
}

// SetLockMask replaces the lock filters of a playlist
func (r *PlaylistRepository) SetLockMask(id string, mask models.LockMask) error {
	result, err := r.db.Exec(`UPDATE playlists SET lock_mask = ?, updated_at = ? WHERE id = ?`, uint32(mask), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lock mask: %w", err)
	}
	return requireRow(result, id)
}

// Delete removes a playlist and, through the foreign key, its items
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return requireRow(result, id)
}

// List retrieves all playlists matching the given criteria.
//
// Supported criteria: "locked" (bool) filters on whether removal is locked.
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.PersistedPlaylist, error) {
	query := `
		SELECT id, sequence, name, lock_mask, created_at, updated_at
		FROM playlists
		WHERE 1 = 1
	`

	args := []any{}

	if locked, ok := criteria["locked"].(bool); ok {
		if locked {
			query += " AND (lock_mask & ?) != 0"
		} else {
			query += " AND (lock_mask & ?) = 0"
		}
		args = append(args, uint32(models.LockFilterRemove))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.PersistedPlaylist
	for rows.Next() {
		playlist, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// AppendItems adds handles to the end of a playlist and returns the position of the first one
func (r *PlaylistRepository) AppendItems(id string, handles []models.ItemHandle) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := playlistExists(tx, id); err != nil {
		return 0, err
	}

	var start int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM playlist_items WHERE playlist_id = ?`, id).Scan(&start); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO playlist_items (playlist_id, position, location, subsong) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, h := range handles {
		if _, err := stmt.Exec(id, start+i, h.Location, h.Subsong); err != nil {
			return 0, fmt.Errorf("failed to insert item %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now(), id); err != nil {
		return 0, fmt.Errorf("failed to touch playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit items: %w", err)
	}
	return start, nil
}

// Items returns every item of a playlist in position order
func (r *PlaylistRepository) Items(id string) ([]models.ItemHandle, error) {
	if err := playlistExists(r.db, id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`SELECT location, subsong FROM playlist_items WHERE playlist_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []models.ItemHandle{}
	for rows.Next() {
		var h models.ItemHandle
		if err := rows.Scan(&h.Location, &h.Subsong); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// RemoveItems deletes the items at positions and closes the gaps.
//
// The removed handles are returned in ascending position order. An out of
// range position fails the whole call without removing anything.
func (r *PlaylistRepository) RemoveItems(id string, positions []int) ([]models.ItemHandle, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := playlistExists(tx, id); err != nil {
		return nil, err
	}

	rows, err := tx.Query(`SELECT location, subsong FROM playlist_items WHERE playlist_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	var items []models.ItemHandle
	for rows.Next() {
		var h models.ItemHandle
		if err := rows.Scan(&h.Location, &h.Subsong); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	drop := make(map[int]bool, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(items) {
			return nil, fmt.Errorf("%w: position %d of %d", shared.ErrInvalidIndex, p, len(items))
		}
		drop[p] = true
	}

	sorted := make([]int, 0, len(drop))
	for p := range drop {
		sorted = append(sorted, p)
	}
	sort.Ints(sorted)

	removed := make([]models.ItemHandle, 0, len(sorted))
	for _, p := range sorted {
		removed = append(removed, items[p])
	}

	if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to clear items: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO playlist_items (playlist_id, position, location, subsong) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	next := 0
	for i, h := range items {
		if drop[i] {
			continue
		}
		if _, err := stmt.Exec(id, next, h.Location, h.Subsong); err != nil {
			return nil, fmt.Errorf("failed to reinsert item: %w", err)
		}
		next++
	}

	if _, err := tx.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now(), id); err != nil {
		return nil, fmt.Errorf("failed to touch playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit removal: %w", err)
	}
	return removed, nil
}

// LockMask returns the lock filters of a playlist
func (r *PlaylistRepository) LockMask(id string) (models.LockMask, error) {
	p, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	return p.LockMask(), nil
}

// Name returns the display name of a playlist
func (r *PlaylistRepository) Name(id string) (string, error) {
	p, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func playlistExists(q queryRower, id string) error {
	var one int
	err := q.QueryRow(`SELECT 1 FROM playlists WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to look up playlist: %w", err)
	}
	return nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return nil
}

// scanOne scans a single row into a [models.PersistedPlaylist]
func (r *PlaylistRepository) scanOne(row *sql.Row, key string) (*models.PersistedPlaylist, error) {
	var (
		id        string
		sequence  int
		name      string
		lockMask  uint32
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &sequence, &name, &lockMask, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist := models.NewPersistedPlaylist(sequence, name, models.LockMask(lockMask))
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	return playlist, nil
}

// scanRow scans a row from [sql.Rows] into a [models.PersistedPlaylist]
func (r *PlaylistRepository) scanRow(rows *sql.Rows) (*models.PersistedPlaylist, error) {
	var (
		id        string
		sequence  int
		name      string
		lockMask  uint32
		createdAt time.Time
		updatedAt time.Time
	)

	if err := rows.Scan(&id, &sequence, &name, &lockMask, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist := models.NewPersistedPlaylist(sequence, name, models.LockMask(lockMask))
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	return playlist, nil
}
