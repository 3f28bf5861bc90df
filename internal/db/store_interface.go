// Package db provides store interfaces for the conflict engine's persistence.
package db

import (
	"github.com/caretab/caresync/internal/models"
)

// AuditStore defines operations for the append-only audit trail.
// Appends are durable before they return; the trail is bounded and evicts
// oldest entries first. This interface allows mocking for testing.
type AuditStore interface {
	// Append durably writes an audit entry, evicting the oldest entries
	// beyond the configured capacity.
	Append(entry *models.AuditEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(limit int) ([]*models.AuditEntry, error)

	// ByEntity returns up to limit entries for one entity, newest first.
	ByEntity(entityID string, limit int) ([]*models.AuditEntry, error)

	// Count returns the number of stored entries.
	Count() (int, error)
}

// PendingStore defines operations for the durable pending-conflict map.
type PendingStore interface {
	// Put durably stores a pending conflict keyed by its conflict ID.
	Put(pending *models.PendingConflict) error

	// Get retrieves a pending conflict, or a NOT_FOUND error if absent.
	Get(conflictID string) (*models.PendingConflict, error)

	// List returns all pending conflicts, oldest first.
	List() ([]*models.PendingConflict, error)

	// Remove deletes a pending conflict, or a NOT_FOUND error if absent.
	Remove(conflictID string) error

	// Count returns the number of pending conflicts.
	Count() (int, error)
}

// Ensure the repositories implement the interfaces at compile time.
var (
	_ AuditStore   = (*AuditRepository)(nil)
	_ PendingStore = (*PendingRepository)(nil)
)
