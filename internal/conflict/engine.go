// Package conflict provides the persistence-aware engine façade.
package conflict

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/caretab/caresync/internal/config"
	"github.com/caretab/caresync/internal/db"
	"github.com/caretab/caresync/internal/errors"
	"github.com/caretab/caresync/internal/logging"
	"github.com/caretab/caresync/internal/models"
	"github.com/caretab/caresync/internal/uuid"
)

// Engine orchestrates strategy selection, execution, and persistence of
// resolutions. One Engine instance owns all mutation of its audit and
// pending stores; a mutex serializes those mutations so each conflict
// produces exactly one audit entry.
//
// A successful return from any public operation means its persistence
// writes are durable.
type Engine struct {
	mu       sync.Mutex
	cfg      *config.Config
	resolver *Resolver
	audit    db.AuditStore
	pending  db.PendingStore

	resolved     int
	escalated    int
	lastResolved time.Time
}

// NewEngine creates an Engine with injected configuration and stores.
func NewEngine(cfg *config.Config, audit db.AuditStore, pending db.PendingStore) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		cfg:      cfg,
		resolver: NewResolver(cfg),
		audit:    audit,
		pending:  pending,
	}
}

// ResolveConflict resolves one conflict record. Aside from validation
// errors and persistence failures, every submitted conflict yields a
// Resolution: unexpected executor failures are converted into a forced
// user-review resolution rather than propagated.
//
// Auto-resolved conflicts are logged to the audit trail immediately;
// escalated conflicts are stored in the pending map and audited when a user
// later resolves them, so each conflict is audited exactly once, at its
// terminal state.
func (e *Engine) ResolveConflict(ctx context.Context, record *models.ConflictRecord) (*models.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "invalid conflict record", err)
	}

	strategy := SelectStrategy(record, e.cfg)
	resolution := e.executeSafely(strategy, record)
	resolution.ConflictID = uuid.New()
	resolution.AppliedAt = time.Now().UnixMilli()

	e.mu.Lock()
	defer e.mu.Unlock()

	if resolution.RequiresUserReview {
		pending := &models.PendingConflict{
			ConflictID: resolution.ConflictID,
			Record:     record,
			Reasoning:  resolution.Reasoning,
			StoredAt:   resolution.AppliedAt,
		}
		if err := e.pending.Put(pending); err != nil {
			return nil, err
		}
		e.escalated++

		logging.Warn("conflict escalated for user review",
			map[string]any{
				"conflict_id": resolution.ConflictID,
				"entity_id":   record.EntityID,
				"entity_type": record.EntityType,
				"strategy":    resolution.Strategy,
				"confidence":  resolution.Confidence,
				"reasoning":   resolution.Reasoning,
			})
		return resolution, nil
	}

	if e.cfg.AuditTrailEnabled {
		if err := e.audit.Append(auditEntryFrom(record, resolution, "")); err != nil {
			return nil, err
		}
	}
	e.resolved++
	e.lastResolved = time.Now()

	logging.Info("conflict resolved",
		map[string]any{
			"conflict_id":      resolution.ConflictID,
			"entity_id":        record.EntityID,
			"entity_type":      record.EntityType,
			"strategy":         resolution.Strategy,
			"confidence":       resolution.Confidence,
			"local_timestamp":  record.LocalTimestamp,
			"server_timestamp": record.ServerTimestamp,
		})
	return resolution, nil
}

// ResolveBatch resolves conflicts sequentially, in order, to keep audit
// ordering deterministic. The first error aborts the batch.
func (e *Engine) ResolveBatch(ctx context.Context, records []*models.ConflictRecord) ([]*models.Resolution, error) {
	resolutions := make([]*models.Resolution, 0, len(records))

	for _, record := range records {
		resolution, err := e.ResolveConflict(ctx, record)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, resolution)
	}

	return resolutions, nil
}

// ResolveWithUserChoice applies a human decision to a pending conflict.
// This is the sole state transition out of pending: the chosen data is
// audited, then the pending entry is removed. Fails with NOT_FOUND for an
// unknown conflict ID, leaving the pending store unchanged.
func (e *Engine) ResolveWithUserChoice(ctx context.Context, conflictID string, chosenData models.Entity, reasoning, userID string) (*models.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pending, err := e.pending.Get(conflictID)
	if err != nil {
		return nil, err
	}

	if reasoning == "" {
		reasoning = "resolved by user choice"
	}
	resolution := &models.Resolution{
		ConflictID:   conflictID,
		Strategy:     models.StrategyUserChoiceRequired,
		ResolvedData: chosenData.Clone(),
		Confidence:   1.0,
		Reasoning:    reasoning,
		AppliedAt:    time.Now().UnixMilli(),
	}

	// Audit before removal: if removal fails the caller retries and at
	// worst re-logs a duplicate entry, never loses the decision.
	if e.cfg.AuditTrailEnabled {
		if err := e.audit.Append(auditEntryFrom(pending.Record, resolution, userID)); err != nil {
			return nil, err
		}
	}
	if err := e.pending.Remove(conflictID); err != nil {
		return nil, err
	}
	e.resolved++
	e.lastResolved = time.Now()

	logging.Info("pending conflict resolved by user",
		map[string]any{
			"conflict_id": conflictID,
			"entity_id":   pending.Record.EntityID,
			"user_id":     userID,
		})
	return resolution, nil
}

// ListPendingConflicts returns all conflicts awaiting a user decision,
// oldest first.
func (e *Engine) ListPendingConflicts() ([]*models.PendingConflict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.List()
}

// AuditTrail returns up to limit recent audit entries, newest first.
func (e *Engine) AuditTrail(limit int) ([]*models.AuditEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audit.Recent(limit)
}

// ResolvedCount returns the number of terminal resolutions since construction.
func (e *Engine) ResolvedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolved
}

// EscalatedCount returns the number of conflicts escalated since construction.
func (e *Engine) EscalatedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escalated
}

// LastResolvedAt returns the instant of the last terminal resolution, or nil.
func (e *Engine) LastResolvedAt() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastResolved.IsZero() {
		return nil
	}
	t := e.lastResolved
	return &t
}

// executeSafely runs the executor and converts any failure, including a
// panic, into a forced user-review resolution so ResolveConflict stays total.
func (e *Engine) executeSafely(strategy models.Strategy, record *models.ConflictRecord) (resolution *models.Resolution) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("resolution panicked, forcing user review",
				fmt.Errorf("%v", r),
				map[string]any{"entity_id": record.EntityID, "strategy": strategy})
			resolution = forcedReviewResolution(fmt.Sprintf("internal failure during resolution: %v", r))
		}
	}()

	resolution, err := e.resolver.Execute(strategy, record)
	if err != nil {
		logging.Error("executor failed, forcing user review", err,
			map[string]any{"entity_id": record.EntityID, "strategy": strategy})
		return forcedReviewResolution(fmt.Sprintf("internal failure during resolution: %v", err))
	}
	return resolution
}

// forcedReviewResolution is the total-function fallback for internal failures.
func forcedReviewResolution(reasoning string) *models.Resolution {
	return &models.Resolution{
		Strategy:           models.StrategyUserChoiceRequired,
		Confidence:         0,
		RequiresUserReview: true,
		Reasoning:          reasoning,
	}
}

// auditEntryFrom mirrors a resolution into an immutable audit entry.
func auditEntryFrom(record *models.ConflictRecord, resolution *models.Resolution, userID string) *models.AuditEntry {
	return &models.AuditEntry{
		ConflictID:         resolution.ConflictID,
		EntityID:           record.EntityID,
		EntityType:         record.EntityType,
		Strategy:           resolution.Strategy,
		ResolvedData:       resolution.ResolvedData,
		Confidence:         resolution.Confidence,
		RequiresUserReview: resolution.RequiresUserReview,
		Reasoning:          resolution.Reasoning,
		LocalData:          record.LocalVersion,
		ServerData:         record.ServerVersion,
		UserID:             userID,
		AppliedAt:          resolution.AppliedAt,
	}
}
