// Package conflict implements the conflict detection-to-resolution engine for
// offline-first synchronization: strategy selection, resolution executors,
// field-level three-way merge, and the persistence-aware engine façade.
package conflict

import (
	"sort"

	"github.com/caretab/caresync/internal/errors"
	"github.com/caretab/caresync/internal/models"
)

// FieldConflict records a field where local and server diverged and no
// structural merge was possible. Path is dotted for nested records.
type FieldConflict struct {
	Path   string
	Local  *models.Value // nil when the local side deleted the field
	Server *models.Value // nil when the server side deleted the field
}

// MergeResult is the outcome of a three-way merge. Conflicts lists the
// fields that could not be merged automatically; for those fields the local
// value was kept in Merged.
type MergeResult struct {
	Merged    models.Entity
	Conflicts []FieldConflict
}

// MergeThreeWay merges the local and server snapshots against their common
// ancestor, field by field. Pure function; recursion over nested records is
// bounded by maxDepth to fail safely on pathological input.
func MergeThreeWay(base, local, server models.Entity, maxDepth int) (*MergeResult, error) {
	merged, conflicts, err := mergeRecords(base, local, server, "", 0, maxDepth)
	if err != nil {
		return nil, err
	}
	return &MergeResult{
		Merged:    merged,
		Conflicts: conflicts,
	}, nil
}

// mergeRecords applies the three-way field rules to one record level.
func mergeRecords(base, local, server map[string]models.Value, path string, depth, maxDepth int) (map[string]models.Value, []FieldConflict, error) {
	if depth > maxDepth {
		return nil, nil, errors.Newf(errors.ErrMergeDepth,
			"merge recursion exceeded depth %d at %q", maxDepth, path)
	}

	merged := make(map[string]models.Value)
	var conflicts []FieldConflict

	for _, name := range unionFieldNames(base, local, server) {
		fieldPath := joinPath(path, name)
		baseVal, baseOk := base[name]
		localVal, localOk := local[name]
		serverVal, serverOk := server[name]

		localChanged := !sameField(localVal, localOk, baseVal, baseOk)
		serverChanged := !sameField(serverVal, serverOk, baseVal, baseOk)

		switch {
		case !localChanged && !serverChanged:
			// Unchanged on both sides: keep the base value
			if baseOk {
				merged[name] = baseVal.Clone()
			}

		case localChanged && !serverChanged:
			if localOk {
				merged[name] = localVal.Clone()
			}

		case serverChanged && !localChanged:
			if serverOk {
				merged[name] = serverVal.Clone()
			}

		case sameField(localVal, localOk, serverVal, serverOk):
			// Both sides made the identical change: no conflict
			if localOk {
				merged[name] = localVal.Clone()
			}

		case localOk && serverOk && localVal.Kind == models.KindList && serverVal.Kind == models.KindList:
			merged[name] = models.Value{Kind: models.KindList, List: mergeListUnion(localVal.List, serverVal.List)}

		case localOk && serverOk && localVal.Kind == models.KindRecord && serverVal.Kind == models.KindRecord:
			var baseRecord map[string]models.Value
			if baseOk && baseVal.Kind == models.KindRecord {
				baseRecord = baseVal.Record
			}
			subMerged, subConflicts, err := mergeRecords(baseRecord, localVal.Record, serverVal.Record, fieldPath, depth+1, maxDepth)
			if err != nil {
				return nil, nil, err
			}
			merged[name] = models.Value{Kind: models.KindRecord, Record: subMerged}
			conflicts = append(conflicts, subConflicts...)

		default:
			// Scalars (or mismatched kinds) disagree: record the conflict
			// and keep the local value for this field
			conflicts = append(conflicts, FieldConflict{
				Path:   fieldPath,
				Local:  cloneValueRef(localVal, localOk),
				Server: cloneValueRef(serverVal, serverOk),
			})
			if localOk {
				merged[name] = localVal.Clone()
			}
		}
	}

	return merged, conflicts, nil
}

// mergeListUnion returns the distinct elements of both lists, by value
// equality, preserving local order then appending new server elements.
func mergeListUnion(local, server []models.Value) []models.Value {
	merged := make([]models.Value, 0, len(local)+len(server))
	contains := func(v models.Value) bool {
		for _, existing := range merged {
			if existing.Equal(v) {
				return true
			}
		}
		return false
	}
	for _, v := range local {
		if !contains(v) {
			merged = append(merged, v.Clone())
		}
	}
	for _, v := range server {
		if !contains(v) {
			merged = append(merged, v.Clone())
		}
	}
	return merged
}

// sameField compares a field across two snapshots, treating absence as a
// distinct state from any present value.
func sameField(a models.Value, aOk bool, b models.Value, bOk bool) bool {
	if aOk != bOk {
		return false
	}
	if !aOk {
		return true
	}
	return a.Equal(b)
}

// unionFieldNames returns the sorted union of field names from all versions.
func unionFieldNames(base, local, server map[string]models.Value) []string {
	seen := make(map[string]bool)
	for name := range base {
		seen[name] = true
	}
	for name := range local {
		seen[name] = true
	}
	for name := range server {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// joinPath appends a field name to a dotted path.
func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// cloneValueRef clones a present value into a pointer, or nil when absent.
func cloneValueRef(v models.Value, ok bool) *models.Value {
	if !ok {
		return nil
	}
	cloned := v.Clone()
	return &cloned
}
