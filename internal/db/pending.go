// Package db provides the SQLite-backed pending-conflict repository.
package db

import (
	"database/sql"
	"encoding/json"

	"github.com/caretab/caresync/internal/errors"
	"github.com/caretab/caresync/internal/models"
)

// PendingRepository persists conflicts awaiting human resolution, keyed by
// conflict ID. Entries are removed exactly once, when a user supplies a
// final choice.
type PendingRepository struct {
	db *DB
}

// NewPendingRepository creates a PendingRepository.
func NewPendingRepository(db *DB) *PendingRepository {
	return &PendingRepository{db: db}
}

// Put durably stores a pending conflict.
func (r *PendingRepository) Put(pending *models.PendingConflict) error {
	record, err := json.Marshal(pending.Record)
	if err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to encode pending conflict", err)
	}

	query := `
	INSERT INTO pending_conflicts (conflict_id, record, reasoning, stored_at)
	VALUES (?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, pending.ConflictID, string(record),
		nullableString(pending.Reasoning), pending.StoredAt)
	if err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to store pending conflict", err)
	}
	return nil
}

// Get retrieves a pending conflict by ID.
func (r *PendingRepository) Get(conflictID string) (*models.PendingConflict, error) {
	query := `
	SELECT conflict_id, record, reasoning, stored_at
	FROM pending_conflicts WHERE conflict_id = ?
	`
	row := r.db.QueryRow(query, conflictID)

	pending, err := scanPendingConflict(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrNotFound, "no pending conflict with id %q", conflictID)
	}
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// List returns all pending conflicts, oldest first.
func (r *PendingRepository) List() ([]*models.PendingConflict, error) {
	query := `
	SELECT conflict_id, record, reasoning, stored_at
	FROM pending_conflicts ORDER BY stored_at ASC, conflict_id ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "failed to query pending conflicts", err)
	}
	defer rows.Close()

	var pendings []*models.PendingConflict
	for rows.Next() {
		pending, err := scanPendingConflict(rows)
		if err != nil {
			return nil, err
		}
		pendings = append(pendings, pending)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "failed to iterate pending conflicts", err)
	}
	return pendings, nil
}

// Remove deletes a pending conflict by ID.
func (r *PendingRepository) Remove(conflictID string) error {
	result, err := r.db.Exec("DELETE FROM pending_conflicts WHERE conflict_id = ?", conflictID)
	if err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to remove pending conflict", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to check pending removal", err)
	}
	if affected == 0 {
		return errors.Newf(errors.ErrNotFound, "no pending conflict with id %q", conflictID)
	}
	return nil
}

// Count returns the number of pending conflicts.
func (r *PendingRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM pending_conflicts").Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrPersistence, "failed to count pending conflicts", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPendingConflict reads one pending-conflict row.
func scanPendingConflict(row rowScanner) (*models.PendingConflict, error) {
	var pending models.PendingConflict
	var record string
	var reasoning sql.NullString

	err := row.Scan(&pending.ConflictID, &record, &reasoning, &pending.StoredAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "failed to scan pending conflict", err)
	}

	var rec models.ConflictRecord
	if err := json.Unmarshal([]byte(record), &rec); err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "failed to decode pending conflict record", err)
	}
	pending.Record = &rec
	if reasoning.Valid {
		pending.Reasoning = reasoning.String
	}
	return &pending, nil
}
