// Package conflict provides unit tests for the resolution executors.
package conflict

import (
	"math"
	"strings"
	"testing"

	"github.com/caretab/caresync/internal/config"
	"github.com/caretab/caresync/internal/models"
)

// lwwRecord builds a schedule conflict with the given timestamp gap.
func lwwRecord(localTs, serverTs int64) *models.ConflictRecord {
	return &models.ConflictRecord{
		EntityID:        "sched-1",
		EntityType:      models.EntitySchedule,
		LocalVersion:    models.Entity{"timing": models.String("am")},
		ServerVersion:   models.Entity{"timing": models.String("pm")},
		LocalTimestamp:  localTs,
		ServerTimestamp: serverTs,
		ConflictType:    models.ConflictUpdateUpdate,
	}
}

// TestLastWriteWinsAmbiguousWindow verifies gaps inside the ambiguity
// window escalate with confidence 0.3.
func TestLastWriteWinsAmbiguousWindow(t *testing.T) {
	resolver := NewResolver(config.Default())

	// 2000ms apart, window is 5000ms
	res, err := resolver.Execute(models.StrategyLastWriteWins, lwwRecord(1700000002000, 1700000000000))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !res.RequiresUserReview {
		t.Error("ambiguous timestamps should require review")
	}
	if res.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want 0.3", res.Confidence)
	}
	if res.ResolvedData != nil {
		t.Error("ambiguous resolution should carry no resolved data")
	}
	if !strings.Contains(res.Reasoning, "ambiguity window") {
		t.Errorf("Reasoning should mention the ambiguity window: %q", res.Reasoning)
	}
}

// TestLastWriteWinsEqualTimestamps verifies equal timestamps are ambiguous.
func TestLastWriteWinsEqualTimestamps(t *testing.T) {
	resolver := NewResolver(config.Default())

	res, err := resolver.Execute(models.StrategyLastWriteWins, lwwRecord(1700000000000, 1700000000000))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.RequiresUserReview || res.Confidence != 0.3 {
		t.Errorf("equal timestamps should be ambiguous, got confidence %v review %v",
			res.Confidence, res.RequiresUserReview)
	}
}

// TestLastWriteWinsServerNewer verifies a clear gap picks the newer side
// with capped confidence and no review.
func TestLastWriteWinsServerNewer(t *testing.T) {
	resolver := NewResolver(config.Default())

	// Server newer by 120000ms (2 minutes)
	res, err := resolver.Execute(models.StrategyLastWriteWins, lwwRecord(1700000000000, 1700000120000))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.RequiresUserReview {
		t.Error("clear winner should not require review")
	}
	if res.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want cap 0.95", res.Confidence)
	}
	want := models.Entity{"timing": models.String("pm")}
	if !res.ResolvedData.Equal(want) {
		t.Errorf("ResolvedData = %v, want server version %v", res.ResolvedData, want)
	}
	if !strings.Contains(res.Reasoning, "server") {
		t.Errorf("Reasoning should name the winning side: %q", res.Reasoning)
	}
}

// TestLastWriteWinsLocalNewer verifies the local side can win too, and
// mid-range gaps produce proportional confidence.
func TestLastWriteWinsLocalNewer(t *testing.T) {
	resolver := NewResolver(config.Default())

	// Local newer by 12000ms (0.2 minutes): confidence 0.5 + 0.2 = 0.7
	res, err := resolver.Execute(models.StrategyLastWriteWins, lwwRecord(1700000012000, 1700000000000))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if math.Abs(res.Confidence-0.7) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.7", res.Confidence)
	}
	if res.RequiresUserReview {
		t.Error("confidence at threshold should not require review")
	}
	want := models.Entity{"timing": models.String("am")}
	if !res.ResolvedData.Equal(want) {
		t.Errorf("ResolvedData = %v, want local version %v", res.ResolvedData, want)
	}
}

// TestLastWriteWinsBelowThreshold verifies sub-threshold confidence forces
// review even outside the ambiguity window.
func TestLastWriteWinsBelowThreshold(t *testing.T) {
	resolver := NewResolver(config.Default())

	// 6000ms gap (0.1 minutes): confidence 0.6, below the 0.7 threshold
	res, err := resolver.Execute(models.StrategyLastWriteWins, lwwRecord(1700000006000, 1700000000000))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if math.Abs(res.Confidence-0.6) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.6", res.Confidence)
	}
	if !res.RequiresUserReview {
		t.Error("confidence below threshold should require review")
	}
}

// TestThreeWayMergeClean verifies a clean merge yields confidence 0.9.
func TestThreeWayMergeClean(t *testing.T) {
	resolver := NewResolver(config.Default())

	record := &models.ConflictRecord{
		EntityID:      "sched-1",
		EntityType:    models.EntitySchedule,
		BaseVersion:   models.Entity{"a": models.Number(1), "b": models.Number(2)},
		LocalVersion:  models.Entity{"a": models.Number(1), "b": models.Number(3)},
		ServerVersion: models.Entity{"a": models.Number(5), "b": models.Number(2)},
		ConflictType:  models.ConflictUpdateUpdate,
	}

	res, err := resolver.Execute(models.StrategyThreeWayMerge, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", res.Confidence)
	}
	if res.RequiresUserReview {
		t.Error("clean merge should not require review")
	}
	want := models.Entity{"a": models.Number(5), "b": models.Number(3)}
	if !res.ResolvedData.Equal(want) {
		t.Errorf("ResolvedData = %v, want %v", res.ResolvedData, want)
	}
}

// TestThreeWayMergeWithConflicts verifies field conflicts drop confidence
// to 0.5 and force review.
func TestThreeWayMergeWithConflicts(t *testing.T) {
	resolver := NewResolver(config.Default())

	record := &models.ConflictRecord{
		EntityID:      "sched-1",
		EntityType:    models.EntitySchedule,
		BaseVersion:   models.Entity{"timing": models.String("am")},
		LocalVersion:  models.Entity{"timing": models.String("pm")},
		ServerVersion: models.Entity{"timing": models.String("noon")},
		ConflictType:  models.ConflictUpdateUpdate,
	}

	res, err := resolver.Execute(models.StrategyThreeWayMerge, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", res.Confidence)
	}
	if !res.RequiresUserReview {
		t.Error("merge with conflicts should require review")
	}
	if !strings.Contains(res.Reasoning, "timing") {
		t.Errorf("Reasoning should name the conflicting field: %q", res.Reasoning)
	}
}

// TestThreeWayMergeFallsBackWithoutBase verifies the executor degrades to
// last-write-wins when no ancestor exists.
func TestThreeWayMergeFallsBackWithoutBase(t *testing.T) {
	resolver := NewResolver(config.Default())

	record := lwwRecord(1700000000000, 1700000120000)
	res, err := resolver.Execute(models.StrategyThreeWayMerge, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Strategy != models.StrategyLastWriteWins {
		t.Errorf("Strategy = %q, want last_write_wins fallback", res.Strategy)
	}
	if res.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", res.Confidence)
	}
}

// TestThreeWayMergeDepthFallback verifies a merge failure is recovered by
// last-write-wins rather than surfaced.
func TestThreeWayMergeDepthFallback(t *testing.T) {
	cfg := config.Default()
	cfg.MaxMergeDepth = 1
	resolver := NewResolver(cfg)

	nest := func(depth int, leaf models.Value) models.Value {
		v := leaf
		for i := 0; i < depth; i++ {
			v = models.RecordOf(map[string]models.Value{"n": v})
		}
		return v
	}

	record := &models.ConflictRecord{
		EntityID:        "sched-1",
		EntityType:      models.EntitySchedule,
		BaseVersion:     models.Entity{"tree": nest(5, models.String("base"))},
		LocalVersion:    models.Entity{"tree": nest(5, models.String("local"))},
		ServerVersion:   models.Entity{"tree": nest(5, models.String("server"))},
		LocalTimestamp:  1700000000000,
		ServerTimestamp: 1700000600000,
		ConflictType:    models.ConflictUpdateUpdate,
	}

	res, err := resolver.Execute(models.StrategyThreeWayMerge, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Strategy != models.StrategyLastWriteWins {
		t.Errorf("Strategy = %q, want last_write_wins fallback", res.Strategy)
	}
	if !strings.Contains(res.Reasoning, "merge failed") {
		t.Errorf("Reasoning should mention the merge failure: %q", res.Reasoning)
	}
}

// TestSafetyGateCriticalFieldDiffers verifies the absolute safety invariant:
// any critical-field divergence forces review with zero confidence.
func TestSafetyGateCriticalFieldDiffers(t *testing.T) {
	resolver := NewResolver(config.Default())

	record := &models.ConflictRecord{
		EntityID:        "med-1",
		EntityType:      models.EntityMedication,
		LocalVersion:    models.Entity{"dosage": models.String("10mg")},
		ServerVersion:   models.Entity{"dosage": models.String("20mg")},
		LocalTimestamp:  1700000000000,
		ServerTimestamp: 1700600000000, // huge gap must not matter
		ConflictType:    models.ConflictUpdateUpdate,
	}

	res, err := resolver.Execute(models.StrategySafetyPriorityGate, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !res.RequiresUserReview {
		t.Error("critical divergence must require review")
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", res.Confidence)
	}
	if res.Strategy != models.StrategySafetyPriorityGate {
		t.Errorf("Strategy = %q, want safety_priority_gate", res.Strategy)
	}
	if res.ResolvedData != nil {
		t.Error("gated resolution must not carry merged data")
	}
	if !strings.Contains(res.Reasoning, "dosage") {
		t.Errorf("Reasoning should name the critical field: %q", res.Reasoning)
	}
}

// TestSafetyGateCriticalFieldOnOneSide verifies a critical field present on
// only one side counts as divergence.
func TestSafetyGateCriticalFieldOnOneSide(t *testing.T) {
	resolver := NewResolver(config.Default())

	record := &models.ConflictRecord{
		EntityID:      "med-1",
		EntityType:    models.EntityMedication,
		LocalVersion:  models.Entity{"warnings": models.ListOf(models.String("dizziness"))},
		ServerVersion: models.Entity{},
		ConflictType:  models.ConflictUpdateUpdate,
	}

	res, err := resolver.Execute(models.StrategySafetyPriorityGate, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.RequiresUserReview || res.Confidence != 0 {
		t.Errorf("one-sided critical field should gate: confidence %v review %v",
			res.Confidence, res.RequiresUserReview)
	}
}

// TestSafetyGateDelegatesWhenCriticalAgree verifies non-critical fields
// merge normally once critical fields agree.
func TestSafetyGateDelegatesWhenCriticalAgree(t *testing.T) {
	resolver := NewResolver(config.Default())

	record := &models.ConflictRecord{
		EntityID:   "med-1",
		EntityType: models.EntityMedication,
		BaseVersion: models.Entity{
			"dosage": models.String("10mg"),
			"notes":  models.String("original"),
		},
		LocalVersion: models.Entity{
			"dosage": models.String("10mg"),
			"notes":  models.String("take with food"),
		},
		ServerVersion: models.Entity{
			"dosage": models.String("10mg"),
			"notes":  models.String("original"),
		},
		ConflictType: models.ConflictUpdateUpdate,
	}

	res, err := resolver.Execute(models.StrategySafetyPriorityGate, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.RequiresUserReview {
		t.Errorf("clean non-critical merge should not require review: %q", res.Reasoning)
	}
	if res.Strategy != models.StrategySafetyPriorityGate {
		t.Errorf("Strategy = %q, want safety_priority_gate", res.Strategy)
	}
	if got := res.ResolvedData["notes"]; !got.Equal(models.String("take with food")) {
		t.Errorf("notes = %v, want local edit", got)
	}
}

// TestFixedExecutors verifies deterministic side selection.
func TestFixedExecutors(t *testing.T) {
	resolver := NewResolver(config.Default())

	record := &models.ConflictRecord{
		EntityID:      "pref-1",
		EntityType:    models.EntityPreference,
		LocalVersion:  models.Entity{"theme": models.String("dark")},
		ServerVersion: models.Entity{"theme": models.String("light")},
		ConflictType:  models.ConflictUpdateUpdate,
	}

	local, err := resolver.Execute(models.StrategyFixedLocal, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !local.ResolvedData.Equal(record.LocalVersion) {
		t.Errorf("fixed_local should keep local: %v", local.ResolvedData)
	}
	if local.Confidence != 0.8 || local.RequiresUserReview {
		t.Errorf("fixed_local confidence %v review %v, want 0.8/false",
			local.Confidence, local.RequiresUserReview)
	}

	server, err := resolver.Execute(models.StrategyFixedServer, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !server.ResolvedData.Equal(record.ServerVersion) {
		t.Errorf("fixed_server should keep server: %v", server.ResolvedData)
	}
}

// TestUserChoiceRequiredExecutor verifies deletions escalate outright.
func TestUserChoiceRequiredExecutor(t *testing.T) {
	resolver := NewResolver(config.Default())

	record := &models.ConflictRecord{
		EntityID:      "sched-1",
		EntityType:    models.EntitySchedule,
		LocalVersion:  models.Entity{"timing": models.String("am")},
		ServerVersion: nil, // deleted on the server
		ConflictType:  models.ConflictUpdateDelete,
	}

	res, err := resolver.Execute(models.StrategyUserChoiceRequired, record)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.RequiresUserReview || res.Confidence != 0 {
		t.Errorf("deletion conflicts must escalate: confidence %v review %v",
			res.Confidence, res.RequiresUserReview)
	}
	if !strings.Contains(res.Reasoning, "irreversible") {
		t.Errorf("Reasoning should explain the deletion policy: %q", res.Reasoning)
	}
}

// TestExecuteUnknownStrategy verifies unknown strategies are rejected.
func TestExecuteUnknownStrategy(t *testing.T) {
	resolver := NewResolver(config.Default())

	if _, err := resolver.Execute("coin_flip", lwwRecord(0, 0)); err == nil {
		t.Error("unknown strategy should fail")
	}
}

// TestConfidenceAlwaysInRange verifies confidence stays in [0, 1] across
// executors and inputs.
func TestConfidenceAlwaysInRange(t *testing.T) {
	resolver := NewResolver(config.Default())

	records := []*models.ConflictRecord{
		lwwRecord(0, 0),
		lwwRecord(1700000000000, 1700000002000),
		lwwRecord(0, 1700000000000), // enormous gap
		{
			EntityID:      "med-1",
			EntityType:    models.EntityMedication,
			LocalVersion:  models.Entity{"dosage": models.String("10mg")},
			ServerVersion: models.Entity{"dosage": models.String("20mg")},
			ConflictType:  models.ConflictUpdateUpdate,
		},
	}
	strategies := []models.Strategy{
		models.StrategyLastWriteWins,
		models.StrategyThreeWayMerge,
		models.StrategySafetyPriorityGate,
		models.StrategyFixedLocal,
		models.StrategyFixedServer,
		models.StrategyUserChoiceRequired,
	}

	for _, record := range records {
		for _, strategy := range strategies {
			res, err := resolver.Execute(strategy, record)
			if err != nil {
				t.Fatalf("Execute(%s) failed: %v", strategy, err)
			}
			if res.Confidence < 0 || res.Confidence > 1 {
				t.Errorf("confidence %v out of range for strategy %s", res.Confidence, strategy)
			}
			if res.Confidence < 0.7 && !res.RequiresUserReview {
				t.Errorf("confidence %v below threshold but review not required (strategy %s)",
					res.Confidence, strategy)
			}
		}
	}
}
