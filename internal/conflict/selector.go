// Package conflict provides strategy selection for detected conflicts.
package conflict

import (
	"github.com/caretab/caresync/internal/config"
	"github.com/caretab/caresync/internal/models"
)

// SelectStrategy chooses the executor for a conflict record. Pure function
// of the record and configuration; the first matching rule wins:
//  1. medication conflicts go through the safety-priority gate
//  2. a known common ancestor enables three-way merge
//  3. local-preferred entity types keep the local side
//  4. deletions are destructive and irreversible, so delete-related
//     conflicts always require an explicit user decision
//  5. otherwise the configured default strategy applies
func SelectStrategy(record *models.ConflictRecord, cfg *config.Config) models.Strategy {
	if record.EntityType == models.EntityMedication && cfg.MedicationSafetyPriority {
		return models.StrategySafetyPriorityGate
	}
	if record.HasBase() {
		return models.StrategyThreeWayMerge
	}
	if cfg.IsLocalPreferred(record.EntityType) {
		return models.StrategyFixedLocal
	}
	if record.ConflictType.IsDeleteRelated() {
		return models.StrategyUserChoiceRequired
	}
	return cfg.DefaultStrategy
}
