package model

import (
	"bytes"
	"encoding/json"
)

// RowUpdates is an insertion-ordered field name → value map describing the
// cells to write back into one spreadsheet row. Overwriting a key keeps its
// original position.
type RowUpdates struct {
	keys   []string
	values map[string]string
}

// NewRowUpdates returns an empty update set.
func NewRowUpdates() *RowUpdates {
	return &RowUpdates{values: make(map[string]string)}
}

// Set stores value under field.
func (u *RowUpdates) Set(field, value string) {
	if u.values == nil {
		u.values = make(map[string]string)
	}
	if _, ok := u.values[field]; !ok {
		u.keys = append(u.keys, field)
	}
	u.values[field] = value
}

// Get returns the value for field.
func (u *RowUpdates) Get(field string) (string, bool) {
	if u == nil {
		return "", false
	}
	v, ok := u.values[field]
	return v, ok
}

// Keys returns field names in insertion order.
func (u *RowUpdates) Keys() []string {
	if u == nil {
		return nil
	}
	out := make([]string, len(u.keys))
	copy(out, u.keys)
	return out
}

// Len returns the number of fields.
func (u *RowUpdates) Len() int {
	if u == nil {
		return 0
	}
	return len(u.keys)
}

// Merge copies every field of other into u; other's values win.
func (u *RowUpdates) Merge(other *RowUpdates) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		u.Set(k, other.values[k])
	}
}

// Map returns an unordered copy.
func (u *RowUpdates) Map() map[string]string {
	out := make(map[string]string, u.Len())
	if u == nil {
		return out
	}
	for k, v := range u.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the fields as a JSON object in insertion order.
func (u *RowUpdates) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range u.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(u.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
