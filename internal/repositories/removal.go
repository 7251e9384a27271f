package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/shared"
)

// ErrRemovalRunNotFound is returned when a removal run lookup has no match.
var ErrRemovalRunNotFound = errors.New("removal run not found")

// RemovalRepository implements models.Repository[*models.RemovalRun] for removal history.
type RemovalRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.RemovalRun] = (*RemovalRepository)(nil)

// NewRemovalRepository creates a new RemovalRepository with the given database connection
func NewRemovalRepository(db *sql.DB) *RemovalRepository {
	return &RemovalRepository{db: db}
}

// Create inserts a removal run and its entries in one transaction
func (r *RemovalRepository) Create(run *models.RemovalRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "removal_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.ID() == "" {
		run.SetID(shared.GenerateID())
	}
	run.SetSequence(sequence)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO removal_runs (id, sequence, playlist_id, playlist_name, removed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		run.ID(),
		sequence,
		run.PlaylistID(),
		run.PlaylistName(),
		run.Removed(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert removal run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO removal_entries (run_id, position, location, subsong, reason) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range run.Entries() {
		if _, err := stmt.Exec(run.ID(), e.Position, e.Location, e.Subsong, e.Reason.String()); err != nil {
			return fmt.Errorf("failed to insert removal entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal run: %w", err)
	}
	return nil
}

// Get retrieves a removal run by ID together with its entries
func (r *RemovalRepository) Get(id string) (*models.RemovalRun, error) {
	query := `
		SELECT id, sequence, playlist_id, playlist_name, created_at, updated_at
		FROM removal_runs
		WHERE id = ?
	`

	run, err := r.scanOne(r.db.QueryRow(query, id), id)
	if err != nil {
		return nil, err
	}

	entries, err := r.entries(id)
	if err != nil {
		return nil, err
	}
	run.SetEntries(entries)
	return run, nil
}

// Delete removes a removal run and its entries
func (r *RemovalRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM removal_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete removal run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRemovalRunNotFound, id)
	}
	return nil
}

// List retrieves removal runs, newest first.
//
// Supported criteria: "playlist_id" (string) and "limit" (int, values <= 0 mean no limit).
// Entries are loaded for every returned run.
func (r *RemovalRepository) List(criteria map[string]any) ([]*models.RemovalRun, error) {
	query := `
		SELECT id, sequence, playlist_id, playlist_name, created_at, updated_at
		FROM removal_runs
		WHERE 1 = 1
	`

	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query removal runs: %w", err)
	}

	var runs []*models.RemovalRun
	for rows.Next() {
		run, err := r.scanRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, run := range runs {
		entries, err := r.entries(run.ID())
		if err != nil {
			return nil, err
		}
		run.SetEntries(entries)
	}

	return runs, nil
}

func (r *RemovalRepository) entries(runID string) ([]models.RemovalEntry, error) {
	rows, err := r.db.Query(`
		SELECT position, location, subsong, reason
		FROM removal_entries
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query removal entries: %w", err)
	}
	defer rows.Close()

	var entries []models.RemovalEntry
	for rows.Next() {
		var (
			e      models.RemovalEntry
			reason string
		)
		if err := rows.Scan(&e.Position, &e.Location, &e.Subsong, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan removal entry: %w", err)
		}
		e.Reason = models.ParseRemovalReason(reason)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// scanOne scans a single [sql.Row] into a [models.RemovalRun] without entries
func (r *RemovalRepository) scanOne(row *sql.Row, key string) (*models.RemovalRun, error) {
	var (
		id           string
		sequence     int
		playlistID   string
		playlistName string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&id, &sequence, &playlistID, &playlistName, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRemovalRunNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan removal run: %w", err)
	}

	run := models.NewRemovalRun(sequence, playlistID, playlistName, nil)
	run.SetID(id)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	return run, nil
}

// scanRow scans a row from [sql.Rows] into a [models.RemovalRun] without entries
func (r *RemovalRepository) scanRow(rows *sql.Rows) (*models.RemovalRun, error) {
	var (
		id           string
		sequence     int
		playlistID   string
		playlistName string
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := rows.Scan(&id, &sequence, &playlistID, &playlistName, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan removal run: %w", err)
	}

	run := models.NewRemovalRun(sequence, playlistID, playlistName, nil)
	run.SetID(id)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	return run, nil
}
