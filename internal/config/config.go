// Package config provides configuration management for the conflict engine.
// It supports YAML configuration files layered over sensible defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/caretab/caresync/internal/errors"
	"github.com/caretab/caresync/internal/models"
)

// Config holds the resolution policy for the conflict engine. All numeric
// thresholds are heuristic policy, not fixed constants, and are expected to
// be tuned by clinical/product review.
type Config struct {
	// DefaultStrategy applies when no other selection rule matches.
	DefaultStrategy models.Strategy `yaml:"default_strategy"`

	// UserReviewThreshold is the minimum confidence for an automatic
	// resolution to skip human review, in [0, 1].
	UserReviewThreshold float64 `yaml:"user_review_threshold"`

	// MedicationSafetyPriority routes all medication conflicts through the
	// safety-priority gate.
	MedicationSafetyPriority bool `yaml:"medication_safety_priority"`

	// PreserveLocalPreferences resolves preference conflicts by keeping the
	// local side without review.
	PreserveLocalPreferences bool `yaml:"preserve_local_preferences"`

	// AuditTrailEnabled controls whether resolutions are written to the
	// audit store.
	AuditTrailEnabled bool `yaml:"audit_trail_enabled"`

	// AmbiguityWindowMs is the timestamp gap below which last-write-wins
	// refuses to pick a side.
	AmbiguityWindowMs int64 `yaml:"ambiguity_window_ms"`

	// AuditCapacity bounds the audit trail; oldest entries are evicted first.
	AuditCapacity int `yaml:"audit_capacity"`

	// MaxMergeDepth bounds three-way merge recursion over nested records.
	MaxMergeDepth int `yaml:"max_merge_depth"`

	// LocalPreferredTypes lists additional entity types resolved by keeping
	// the local side.
	LocalPreferredTypes []models.EntityType `yaml:"local_preferred_types,omitempty"`
}

// Default returns the default engine configuration.
func Default() *Config {
	return &Config{
		DefaultStrategy:          models.StrategyLastWriteWins,
		UserReviewThreshold:      0.7,
		MedicationSafetyPriority: true,
		PreserveLocalPreferences: true,
		AuditTrailEnabled:        true,
		AmbiguityWindowMs:        5000,
		AuditCapacity:            500,
		MaxMergeDepth:            32,
	}
}

// Load reads a YAML configuration file layered over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrConfig, fmt.Sprintf("failed to read config file %s", path), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfig, fmt.Sprintf("failed to parse config file %s", path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configured values are within their allowed ranges.
func (c *Config) Validate() error {
	if !c.DefaultStrategy.IsValid() {
		return errors.Newf(errors.ErrConfig, "unknown default_strategy %q", c.DefaultStrategy)
	}
	if c.UserReviewThreshold < 0 || c.UserReviewThreshold > 1 {
		return errors.Newf(errors.ErrConfig, "user_review_threshold %v out of range [0, 1]", c.UserReviewThreshold)
	}
	if c.AmbiguityWindowMs < 0 {
		return errors.Newf(errors.ErrConfig, "ambiguity_window_ms must not be negative, got %d", c.AmbiguityWindowMs)
	}
	if c.AuditCapacity <= 0 {
		return errors.Newf(errors.ErrConfig, "audit_capacity must be positive, got %d", c.AuditCapacity)
	}
	if c.MaxMergeDepth <= 0 {
		return errors.Newf(errors.ErrConfig, "max_merge_depth must be positive, got %d", c.MaxMergeDepth)
	}
	for _, t := range c.LocalPreferredTypes {
		if !t.IsValid() {
			return errors.Newf(errors.ErrConfig, "unknown entity type %q in local_preferred_types", t)
		}
	}
	return nil
}

// IsLocalPreferred reports whether conflicts for the entity type should be
// resolved by keeping the local side.
func (c *Config) IsLocalPreferred(entityType models.EntityType) bool {
	if entityType == models.EntityPreference && c.PreserveLocalPreferences {
		return true
	}
	for _, t := range c.LocalPreferredTypes {
		if t == entityType {
			return true
		}
	}
	return false
}
