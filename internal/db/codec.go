// Package db provides JSON codecs for persisted entity snapshots.
package db

import (
	"database/sql"
	"encoding/json"

	"github.com/caretab/caresync/internal/errors"
	"github.com/caretab/caresync/internal/models"
)

// marshalEntity encodes an entity snapshot for a nullable text column.
// A nil entity (no snapshot, e.g. a deleted side) maps to NULL.
func marshalEntity(entity models.Entity) (sql.NullString, error) {
	if entity == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return sql.NullString{}, errors.Wrap(errors.ErrPersistence, "failed to encode entity snapshot", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalEntity decodes a nullable text column into an entity snapshot.
func unmarshalEntity(column sql.NullString) (models.Entity, error) {
	if !column.Valid {
		return nil, nil
	}
	var raw map[string]models.Value
	if err := json.Unmarshal([]byte(column.String), &raw); err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "failed to decode entity snapshot", err)
	}
	return models.Entity(raw), nil
}
