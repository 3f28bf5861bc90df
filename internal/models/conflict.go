// Package models provides data model definitions for the CareSync conflict core.
package models

import (
	"fmt"
	"time"
)

// EntityType identifies the kind of entity a conflict concerns.
type EntityType string

const (
	EntityMedication   EntityType = "medication"
	EntitySchedule     EntityType = "schedule"
	EntityAdherence    EntityType = "adherence"
	EntityPreference   EntityType = "preference"
	EntityFamilyMember EntityType = "family_member"
)

// IsValid reports whether the entity type is a known value.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityMedication, EntitySchedule, EntityAdherence, EntityPreference, EntityFamilyMember:
		return true
	}
	return false
}

// ConflictType classifies how the local and server histories diverged.
type ConflictType string

const (
	ConflictUpdateUpdate    ConflictType = "update_update"
	ConflictUpdateDelete    ConflictType = "update_delete"
	ConflictDeleteUpdate    ConflictType = "delete_update"
	ConflictStructureChange ConflictType = "structure_change"
)

// IsValid reports whether the conflict type is a known value.
func (t ConflictType) IsValid() bool {
	switch t {
	case ConflictUpdateUpdate, ConflictUpdateDelete, ConflictDeleteUpdate, ConflictStructureChange:
		return true
	}
	return false
}

// IsDeleteRelated reports whether one side of the conflict is a deletion.
func (t ConflictType) IsDeleteRelated() bool {
	return t == ConflictUpdateDelete || t == ConflictDeleteUpdate
}

// ConflictRecord describes divergent edits to one entity, as detected by the
// sync collaborator. BaseVersion is nil when no common ancestor is known.
// Timestamps are unix milliseconds of the last write on each side.
type ConflictRecord struct {
	EntityID        string       `json:"entity_id"`
	EntityType      EntityType   `json:"entity_type"`
	LocalVersion    Entity       `json:"local_version,omitempty"`
	ServerVersion   Entity       `json:"server_version,omitempty"`
	BaseVersion     Entity       `json:"base_version,omitempty"`
	LocalTimestamp  int64        `json:"local_timestamp"`
	ServerTimestamp int64        `json:"server_timestamp"`
	ConflictType    ConflictType `json:"conflict_type"`
	DetectedAt      int64        `json:"detected_at"`
}

// Validate checks the record is well formed before any strategy selection.
func (r *ConflictRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("conflict record is nil")
	}
	if r.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if r.EntityType == "" {
		return fmt.Errorf("entity_type is required")
	}
	if !r.EntityType.IsValid() {
		return fmt.Errorf("unknown entity_type %q", r.EntityType)
	}
	if r.ConflictType != "" && !r.ConflictType.IsValid() {
		return fmt.Errorf("unknown conflict_type %q", r.ConflictType)
	}
	return nil
}

// HasBase reports whether a common ancestor snapshot is available.
func (r *ConflictRecord) HasBase() bool {
	return r.BaseVersion != nil
}

// DetectedAtTime returns DetectedAt as time.Time.
func (r *ConflictRecord) DetectedAtTime() time.Time {
	return time.UnixMilli(r.DetectedAt)
}

// PendingConflict is a conflict whose resolution awaits a human decision,
// keyed by the conflict ID assigned when it was escalated.
type PendingConflict struct {
	ConflictID string          `json:"conflict_id"`
	Record     *ConflictRecord `json:"record"`
	Reasoning  string          `json:"reasoning,omitempty"`
	StoredAt   int64           `json:"stored_at"`
}

// TableName returns the table name for PendingConflict.
func (PendingConflict) TableName() string {
	return "pending_conflicts"
}
