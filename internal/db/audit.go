// Package db provides the SQLite-backed audit trail repository.
package db

import (
	"database/sql"

	"github.com/caretab/caresync/internal/errors"
	"github.com/caretab/caresync/internal/models"
)

// AuditRepository persists resolution audit entries as a bounded ring:
// every append is committed before returning and evicts the oldest entries
// beyond the capacity within the same transaction.
type AuditRepository struct {
	db       *DB
	capacity int
}

// NewAuditRepository creates an AuditRepository with the given capacity.
func NewAuditRepository(db *DB, capacity int) *AuditRepository {
	return &AuditRepository{
		db:       db,
		capacity: capacity,
	}
}

// Append durably writes an audit entry and enforces the ring bound.
func (r *AuditRepository) Append(entry *models.AuditEntry) error {
	resolved, err := marshalEntity(entry.ResolvedData)
	if err != nil {
		return err
	}
	local, err := marshalEntity(entry.LocalData)
	if err != nil {
		return err
	}
	server, err := marshalEntity(entry.ServerData)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to begin audit transaction", err)
	}
	defer tx.Rollback()

	insert := `
	INSERT INTO audit_trail (conflict_id, entity_id, entity_type, strategy, resolved_data,
		confidence, requires_user_review, reasoning, local_data, server_data, user_id, applied_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(insert, entry.ConflictID, entry.EntityID, string(entry.EntityType),
		string(entry.Strategy), resolved, entry.Confidence, entry.RequiresUserReview,
		entry.Reasoning, local, server, nullableString(entry.UserID), entry.AppliedAt)
	if err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to append audit entry", err)
	}

	// Ring bound: keep only the newest capacity entries
	evict := `
	DELETE FROM audit_trail
	WHERE seq NOT IN (SELECT seq FROM audit_trail ORDER BY seq DESC LIMIT ?)
	`
	if _, err := tx.Exec(evict, r.capacity); err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to evict old audit entries", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to commit audit entry", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *AuditRepository) Recent(limit int) ([]*models.AuditEntry, error) {
	query := `
	SELECT conflict_id, entity_id, entity_type, strategy, resolved_data,
		   confidence, requires_user_review, reasoning, local_data, server_data, user_id, applied_at
	FROM audit_trail ORDER BY seq DESC LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "failed to query audit trail", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// ByEntity returns up to limit entries for one entity, newest first.
func (r *AuditRepository) ByEntity(entityID string, limit int) ([]*models.AuditEntry, error) {
	query := `
	SELECT conflict_id, entity_id, entity_type, strategy, resolved_data,
		   confidence, requires_user_review, reasoning, local_data, server_data, user_id, applied_at
	FROM audit_trail WHERE entity_id = ? ORDER BY seq DESC LIMIT ?
	`
	rows, err := r.db.Query(query, entityID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "failed to query audit trail by entity", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// Count returns the number of stored audit entries.
func (r *AuditRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM audit_trail").Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrPersistence, "failed to count audit entries", err)
	}
	return count, nil
}

// scanAuditEntries reads audit rows into model entries.
func scanAuditEntries(rows *sql.Rows) ([]*models.AuditEntry, error) {
	var entries []*models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var entityType, strategy string
		var resolved, local, server, userID sql.NullString

		err := rows.Scan(&entry.ConflictID, &entry.EntityID, &entityType, &strategy,
			&resolved, &entry.Confidence, &entry.RequiresUserReview, &entry.Reasoning,
			&local, &server, &userID, &entry.AppliedAt)
		if err != nil {
			return nil, errors.Wrap(errors.ErrPersistence, "failed to scan audit entry", err)
		}

		entry.EntityType = models.EntityType(entityType)
		entry.Strategy = models.Strategy(strategy)
		if userID.Valid {
			entry.UserID = userID.String
		}
		if entry.ResolvedData, err = unmarshalEntity(resolved); err != nil {
			return nil, err
		}
		if entry.LocalData, err = unmarshalEntity(local); err != nil {
			return nil, err
		}
		if entry.ServerData, err = unmarshalEntity(server); err != nil {
			return nil, err
		}

		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "failed to iterate audit entries", err)
	}
	return entries, nil
}

// nullableString maps an empty string to NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
