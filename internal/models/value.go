// Package models provides data model definitions for the CareSync conflict core.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind discriminates the variants of a Value node.
type ValueKind string

const (
	KindScalar ValueKind = "scalar"
	KindList   ValueKind = "list"
	KindRecord ValueKind = "record"
)

// Value is one node of an entity snapshot tree: a scalar leaf, a list of
// values, or a record of named fields. Exactly one payload is set, selected
// by Kind, so merge dispatch can switch exhaustively instead of inspecting
// runtime types.
type Value struct {
	Kind   ValueKind
	Scalar any // string, float64, bool or nil when Kind == KindScalar
	List   []Value
	Record map[string]Value
}

// Entity is a snapshot of an entity: a record of named top-level fields.
type Entity map[string]Value

// String constructs a scalar string Value.
func String(s string) Value {
	return Value{Kind: KindScalar, Scalar: s}
}

// Number constructs a scalar numeric Value.
func Number(n float64) Value {
	return Value{Kind: KindScalar, Scalar: n}
}

// Bool constructs a scalar boolean Value.
func Bool(b bool) Value {
	return Value{Kind: KindScalar, Scalar: b}
}

// Null constructs a scalar null Value.
func Null() Value {
	return Value{Kind: KindScalar, Scalar: nil}
}

// ListOf constructs a list Value from the given elements.
func ListOf(elems ...Value) Value {
	return Value{Kind: KindList, List: elems}
}

// RecordOf constructs a record Value from the given fields.
func RecordOf(fields map[string]Value) Value {
	return Value{Kind: KindRecord, Record: fields}
}

// Equal reports whether two values are deeply equal by value, not identity.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindScalar:
		return v.Scalar == other.Scalar
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.Record) != len(other.Record) {
			return false
		}
		for name, val := range v.Record {
			otherVal, ok := other.Record[name]
			if !ok || !val.Equal(otherVal) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	switch v.Kind {
	case KindList:
		list := make([]Value, len(v.List))
		for i := range v.List {
			list[i] = v.List[i].Clone()
		}
		return Value{Kind: KindList, List: list}
	case KindRecord:
		record := make(map[string]Value, len(v.Record))
		for name, val := range v.Record {
			record[name] = val.Clone()
		}
		return Value{Kind: KindRecord, Record: record}
	default:
		return v
	}
}

// MarshalJSON encodes the value as its plain JSON shape (no kind tags).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindScalar:
		return json.Marshal(v.Scalar)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindRecord:
		if v.Record == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Record)
	default:
		return nil, fmt.Errorf("unknown value kind: %q", v.Kind)
	}
}

// UnmarshalJSON decodes any JSON document into the tagged tree form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// FromAny converts a decoded JSON value (map/slice/scalar) into a Value tree.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	case []any:
		list := make([]Value, 0, len(t))
		for _, elem := range t {
			val, err := FromAny(elem)
			if err != nil {
				return Value{}, err
			}
			list = append(list, val)
		}
		return Value{Kind: KindList, List: list}, nil
	case map[string]any:
		record := make(map[string]Value, len(t))
		for name, elem := range t {
			val, err := FromAny(elem)
			if err != nil {
				return Value{}, err
			}
			record[name] = val
		}
		return Value{Kind: KindRecord, Record: record}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Equal reports whether two entity snapshots hold the same fields and values.
// A nil entity equals only another nil entity (nil means "no snapshot").
func (e Entity) Equal(other Entity) bool {
	if (e == nil) != (other == nil) {
		return false
	}
	if len(e) != len(other) {
		return false
	}
	for name, val := range e {
		otherVal, ok := other[name]
		if !ok || !val.Equal(otherVal) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the entity snapshot.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	copied := make(Entity, len(e))
	for name, val := range e {
		copied[name] = val.Clone()
	}
	return copied
}

// FieldNames returns the entity's field names in sorted order.
func (e Entity) FieldNames() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
