// Package conflict provides unit tests for strategy selection.
package conflict

import (
	"testing"

	"github.com/caretab/caresync/internal/config"
	"github.com/caretab/caresync/internal/models"
)

// TestSelectStrategyOrder verifies the selection rules in priority order.
func TestSelectStrategyOrder(t *testing.T) {
	base := models.Entity{"a": models.Number(1)}

	tests := []struct {
		name   string
		record *models.ConflictRecord
		mutate func(*config.Config)
		want   models.Strategy
	}{
		{
			name: "medication goes through safety gate",
			record: &models.ConflictRecord{
				EntityID:     "med-1",
				EntityType:   models.EntityMedication,
				ConflictType: models.ConflictUpdateUpdate,
			},
			want: models.StrategySafetyPriorityGate,
		},
		{
			name: "medication with base still gated",
			record: &models.ConflictRecord{
				EntityID:     "med-1",
				EntityType:   models.EntityMedication,
				BaseVersion:  base,
				ConflictType: models.ConflictUpdateUpdate,
			},
			want: models.StrategySafetyPriorityGate,
		},
		{
			name: "medication without safety priority uses base",
			record: &models.ConflictRecord{
				EntityID:     "med-1",
				EntityType:   models.EntityMedication,
				BaseVersion:  base,
				ConflictType: models.ConflictUpdateUpdate,
			},
			mutate: func(c *config.Config) { c.MedicationSafetyPriority = false },
			want:   models.StrategyThreeWayMerge,
		},
		{
			name: "base version enables three-way merge",
			record: &models.ConflictRecord{
				EntityID:     "sched-1",
				EntityType:   models.EntitySchedule,
				BaseVersion:  base,
				ConflictType: models.ConflictUpdateUpdate,
			},
			want: models.StrategyThreeWayMerge,
		},
		{
			name: "preferences keep local",
			record: &models.ConflictRecord{
				EntityID:     "pref-1",
				EntityType:   models.EntityPreference,
				ConflictType: models.ConflictUpdateUpdate,
			},
			want: models.StrategyFixedLocal,
		},
		{
			name: "update_delete requires user choice",
			record: &models.ConflictRecord{
				EntityID:     "sched-1",
				EntityType:   models.EntitySchedule,
				ConflictType: models.ConflictUpdateDelete,
			},
			want: models.StrategyUserChoiceRequired,
		},
		{
			name: "delete_update requires user choice",
			record: &models.ConflictRecord{
				EntityID:     "adh-1",
				EntityType:   models.EntityAdherence,
				ConflictType: models.ConflictDeleteUpdate,
			},
			want: models.StrategyUserChoiceRequired,
		},
		{
			name: "otherwise the default strategy applies",
			record: &models.ConflictRecord{
				EntityID:     "adh-1",
				EntityType:   models.EntityAdherence,
				ConflictType: models.ConflictUpdateUpdate,
			},
			want: models.StrategyLastWriteWins,
		},
		{
			name: "configured default is honored",
			record: &models.ConflictRecord{
				EntityID:     "fam-1",
				EntityType:   models.EntityFamilyMember,
				ConflictType: models.ConflictStructureChange,
			},
			mutate: func(c *config.Config) { c.DefaultStrategy = models.StrategyFixedServer },
			want:   models.StrategyFixedServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			if got := SelectStrategy(tt.record, cfg); got != tt.want {
				t.Errorf("SelectStrategy() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestSelectStrategyNonDeleteNoBase verifies the documented property: any
// non-delete conflict without a base selects last_write_wins unless the
// entity type is medication or configured local-preferred.
func TestSelectStrategyNonDeleteNoBase(t *testing.T) {
	cfg := config.Default()

	for _, entityType := range []models.EntityType{
		models.EntitySchedule,
		models.EntityAdherence,
		models.EntityFamilyMember,
	} {
		for _, conflictType := range []models.ConflictType{
			models.ConflictUpdateUpdate,
			models.ConflictStructureChange,
		} {
			record := &models.ConflictRecord{
				EntityID:     "e-1",
				EntityType:   entityType,
				ConflictType: conflictType,
			}
			if got := SelectStrategy(record, cfg); got != models.StrategyLastWriteWins {
				t.Errorf("SelectStrategy(%s, %s) = %q, want last_write_wins",
					entityType, conflictType, got)
			}
		}
	}
}
