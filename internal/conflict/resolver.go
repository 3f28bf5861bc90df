// Package conflict provides the resolution executors.
package conflict

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/caretab/caresync/internal/config"
	"github.com/caretab/caresync/internal/errors"
	"github.com/caretab/caresync/internal/logging"
	"github.com/caretab/caresync/internal/models"
)

// criticalMedicationFields must never be merged silently. Any divergence on
// these fields forces human review regardless of timestamps or merge
// feasibility; this invariant is not configurable.
var criticalMedicationFields = []string{"dosage", "frequency", "timing", "warnings", "interactions"}

// Resolver executes resolution strategies over conflict records. All
// executors are pure with respect to storage; persistence is the engine's
// concern.
type Resolver struct {
	cfg *config.Config
}

// NewResolver creates a Resolver with the given policy configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Execute runs the given strategy against the record. The returned
// resolution has no conflict ID or applied-at instant; the engine assigns
// those. Review is forced whenever confidence falls below the configured
// threshold, whatever the executor decided.
func (r *Resolver) Execute(strategy models.Strategy, record *models.ConflictRecord) (*models.Resolution, error) {
	var resolution *models.Resolution

	switch strategy {
	case models.StrategyLastWriteWins:
		resolution = r.resolveLastWriteWins(record)
	case models.StrategyThreeWayMerge:
		resolution = r.resolveThreeWayMerge(record)
	case models.StrategySafetyPriorityGate:
		resolution = r.resolveSafetyGate(record)
	case models.StrategyFixedLocal, models.StrategyFixedServer:
		resolution = r.resolveFixed(record, strategy)
	case models.StrategyUserChoiceRequired:
		resolution = r.escalate(record, escalationReason(record))
	default:
		return nil, errors.Newf(errors.ErrStrategyUnknown, "no executor for strategy %q", strategy)
	}

	if resolution.Confidence < r.cfg.UserReviewThreshold {
		resolution.RequiresUserReview = true
	}

	logging.Debug("strategy executed",
		map[string]any{
			"entity_id":            record.EntityID,
			"entity_type":          record.EntityType,
			"strategy":             resolution.Strategy,
			"confidence":           resolution.Confidence,
			"requires_user_review": resolution.RequiresUserReview,
		})

	return resolution, nil
}

// resolveLastWriteWins prefers the side with the newer timestamp. Gaps
// within the ambiguity window (equal timestamps included) are too close to
// trust and escalate instead.
func (r *Resolver) resolveLastWriteWins(record *models.ConflictRecord) *models.Resolution {
	delta := record.LocalTimestamp - record.ServerTimestamp
	if delta < 0 {
		delta = -delta
	}

	if delta < r.cfg.AmbiguityWindowMs {
		return &models.Resolution{
			Strategy:           models.StrategyLastWriteWins,
			Confidence:         0.3,
			RequiresUserReview: true,
			Reasoning: fmt.Sprintf(
				"timestamps are %dms apart, within the %dms ambiguity window; too close to trust either side",
				delta, r.cfg.AmbiguityWindowMs),
		}
	}

	winner := record.LocalVersion
	side := "local"
	if record.ServerTimestamp > record.LocalTimestamp {
		winner = record.ServerVersion
		side = "server"
	}

	// Confidence grows with the time gap, capped at 0.95
	minutes := float64(delta) / 60000.0
	confidence := math.Min(0.95, 0.5+minutes)

	return &models.Resolution{
		Strategy:     models.StrategyLastWriteWins,
		ResolvedData: winner.Clone(),
		Confidence:   confidence,
		Reasoning: fmt.Sprintf("%s version is newer by %s",
			side, time.Duration(delta)*time.Millisecond),
	}
}

// resolveThreeWayMerge merges field by field against the common ancestor.
// Without an ancestor, or when the merge itself fails, it falls back to
// last-write-wins rather than aborting.
func (r *Resolver) resolveThreeWayMerge(record *models.ConflictRecord) *models.Resolution {
	if !record.HasBase() {
		fallback := r.resolveLastWriteWins(record)
		fallback.Reasoning = "no common ancestor available for three-way merge; " + fallback.Reasoning
		return fallback
	}

	result, err := MergeThreeWay(record.BaseVersion, record.LocalVersion, record.ServerVersion, r.cfg.MaxMergeDepth)
	if err != nil {
		logging.Warn("three-way merge failed, falling back to last-write-wins",
			map[string]any{
				"entity_id": record.EntityID,
				"error":     err.Error(),
			})
		fallback := r.resolveLastWriteWins(record)
		fallback.Reasoning = fmt.Sprintf("three-way merge failed (%v); %s", err, fallback.Reasoning)
		return fallback
	}

	if len(result.Conflicts) == 0 {
		return &models.Resolution{
			Strategy:     models.StrategyThreeWayMerge,
			ResolvedData: result.Merged,
			Confidence:   0.9,
			Reasoning:    "all fields merged cleanly against the common ancestor",
		}
	}

	return &models.Resolution{
		Strategy:           models.StrategyThreeWayMerge,
		ResolvedData:       result.Merged,
		Confidence:         0.5,
		RequiresUserReview: true,
		Reasoning: fmt.Sprintf("merge left %d conflicting field(s): %s (local values kept)",
			len(result.Conflicts), strings.Join(conflictPaths(result.Conflicts), ", ")),
	}
}

// resolveSafetyGate checks the critical medication fields before allowing
// any automatic merge. Divergence on a critical field is an absolute stop.
func (r *Resolver) resolveSafetyGate(record *models.ConflictRecord) *models.Resolution {
	differing := criticalFieldDiffs(record.LocalVersion, record.ServerVersion)
	if len(differing) > 0 {
		logging.Warn("critical medication fields differ, forcing review",
			map[string]any{
				"entity_id": record.EntityID,
				"fields":    strings.Join(differing, ","),
			})
		return &models.Resolution{
			Strategy:           models.StrategySafetyPriorityGate,
			Confidence:         0,
			RequiresUserReview: true,
			Reasoning: fmt.Sprintf("critical medication fields differ between local and server: %s",
				strings.Join(differing, ", ")),
		}
	}

	// Critical fields agree; the remaining fields merge normally
	delegated := r.resolveThreeWayMerge(record)
	delegated.Strategy = models.StrategySafetyPriorityGate
	delegated.Reasoning = "no critical medication fields differ; " + delegated.Reasoning
	return delegated
}

// resolveFixed deterministically keeps one configured side. Used only for
// entity types explicitly configured as low-stakes.
func (r *Resolver) resolveFixed(record *models.ConflictRecord, strategy models.Strategy) *models.Resolution {
	chosen := record.LocalVersion
	side := "local"
	if strategy == models.StrategyFixedServer {
		chosen = record.ServerVersion
		side = "server"
	}
	return &models.Resolution{
		Strategy:     strategy,
		ResolvedData: chosen.Clone(),
		Confidence:   0.8,
		Reasoning:    fmt.Sprintf("configured to keep the %s version for %s entities", side, record.EntityType),
	}
}

// escalate declines automatic resolution entirely.
func (r *Resolver) escalate(record *models.ConflictRecord, reason string) *models.Resolution {
	return &models.Resolution{
		Strategy:           models.StrategyUserChoiceRequired,
		Confidence:         0,
		RequiresUserReview: true,
		Reasoning:          reason,
	}
}

// escalationReason explains why a conflict was never attempted automatically.
func escalationReason(record *models.ConflictRecord) string {
	if record.ConflictType.IsDeleteRelated() {
		return "one side deleted the entity; deletions are irreversible and require an explicit decision"
	}
	return "conflict requires an explicit user decision"
}

// criticalFieldDiffs returns the critical fields whose values differ between
// the two snapshots, counting presence on only one side as a difference.
func criticalFieldDiffs(local, server models.Entity) []string {
	var differing []string
	for _, name := range criticalMedicationFields {
		localVal, localOk := local[name]
		serverVal, serverOk := server[name]
		if !sameField(localVal, localOk, serverVal, serverOk) {
			differing = append(differing, name)
		}
	}
	return differing
}

// conflictPaths lists the dotted paths of field conflicts.
func conflictPaths(conflicts []FieldConflict) []string {
	paths := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		paths = append(paths, c.Path)
	}
	return paths
}
