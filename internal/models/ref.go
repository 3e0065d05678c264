package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque entity identifier. The upstream emits numeric keys while
// clients pass strings, so both JSON forms decode into the same value.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the raw identifier.
func (id ID) String() string {
	return string(id)
}

// IDFromInt formats a numeric key.
func IDFromInt(v int64) ID {
	return ID(strconv.FormatInt(v, 10))
}

// Ref is a foreign key that is either Unresolved (only ID set) or Resolved
// (Record set). The zero value is an absent reference.
type Ref[T any] struct {
	ID     ID
	Record *T
}

// RefTo builds an unresolved reference.
func RefTo[T any](id ID) Ref[T] {
	return Ref[T]{ID: id}
}

// RefWith builds a resolved reference.
func RefWith[T any](id ID, record T) Ref[T] {
	return Ref[T]{ID: id, Record: &record}
}

// Resolved reports whether the record has been expanded.
func (r Ref[T]) Resolved() bool {
	return r.Record != nil
}

// Empty reports whether the reference points nowhere.
func (r Ref[T]) Empty() bool {
	return r.ID == "" && r.Record == nil
}

// MarshalJSON writes the record when resolved and the bare id otherwise.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Record != nil {
		return json.Marshal(r.Record)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r.ID))
}

// UnmarshalJSON accepts null, a raw id or an expanded object carrying "id".
func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = Ref[T]{}
		return nil
	}
	if trimmed[0] == '{' {
		var probe struct {
			ID ID `json:"id"`
		}
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return fmt.Errorf("decode reference id: %w", err)
		}
		var record T
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return fmt.Errorf("decode reference record: %w", err)
		}
		*r = Ref[T]{ID: probe.ID, Record: &record}
		return nil
	}
	var id ID
	if err := id.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	*r = Ref[T]{ID: id}
	return nil
}
