// Package models provides data model definitions for the CareSync conflict core.
package models

import "time"

// Strategy identifies which executor produced (or should produce) a resolution.
type Strategy string

const (
	StrategyLastWriteWins      Strategy = "last_write_wins"
	StrategyThreeWayMerge      Strategy = "three_way_merge"
	StrategySafetyPriorityGate Strategy = "safety_priority_gate"
	StrategyFixedLocal         Strategy = "fixed_local"
	StrategyFixedServer        Strategy = "fixed_server"
	StrategyUserChoiceRequired Strategy = "user_choice_required"
)

// IsValid reports whether the strategy is a known value.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyLastWriteWins, StrategyThreeWayMerge, StrategySafetyPriorityGate,
		StrategyFixedLocal, StrategyFixedServer, StrategyUserChoiceRequired:
		return true
	}
	return false
}

// Resolution is the outcome of resolving one ConflictRecord. ResolvedData is
// nil when the conflict was escalated for human review. Confidence is the
// engine's self-assessed probability in [0, 1] that the automatic resolution
// is correct.
type Resolution struct {
	ConflictID         string   `json:"conflict_id"`
	Strategy           Strategy `json:"strategy"`
	ResolvedData       Entity   `json:"resolved_data,omitempty"`
	Confidence         float64  `json:"confidence"`
	RequiresUserReview bool     `json:"requires_user_review"`
	Reasoning          string   `json:"reasoning"`
	AppliedAt          int64    `json:"applied_at"`
}

// AppliedAtTime returns AppliedAt as time.Time.
func (r *Resolution) AppliedAtTime() time.Time {
	return time.UnixMilli(r.AppliedAt)
}

// AuditEntry is the immutable durable record of one applied resolution,
// automatic or user-driven. UserID is empty for automatic resolutions.
type AuditEntry struct {
	ConflictID         string     `json:"conflict_id"`
	EntityID           string     `json:"entity_id"`
	EntityType         EntityType `json:"entity_type"`
	Strategy           Strategy   `json:"strategy"`
	ResolvedData       Entity     `json:"resolved_data,omitempty"`
	Confidence         float64    `json:"confidence"`
	RequiresUserReview bool       `json:"requires_user_review"`
	Reasoning          string     `json:"reasoning"`
	LocalData          Entity     `json:"local_data,omitempty"`
	ServerData         Entity     `json:"server_data,omitempty"`
	UserID             string     `json:"user_id,omitempty"`
	AppliedAt          int64      `json:"applied_at"`
}

// TableName returns the table name for AuditEntry.
func (AuditEntry) TableName() string {
	return "audit_trail"
}

// AppliedAtTime returns AppliedAt as time.Time.
func (e *AuditEntry) AppliedAtTime() time.Time {
	return time.UnixMilli(e.AppliedAt)
}
