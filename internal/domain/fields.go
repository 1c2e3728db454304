package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// FieldData is an ordered field-name to value mapping. Insertion order is
// preserved so that serialization round-trips byte-for-byte; values are
// always strings (non-primitive inputs are rejected at construction).
type FieldData struct {
	keys []string
	vals map[string]string
}

func NewFieldData() *FieldData {
	return &FieldData{vals: make(map[string]string)}
}

// FieldDataFrom builds a FieldData from arbitrary values, sorted by key so
// the result is deterministic regardless of map iteration order. Values
// must be primitives (string, number, bool); anything else fails with
// MalformedFieldError.
func FieldDataFrom(values map[string]any) (*FieldData, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := NewFieldData()
	for _, k := range keys {
		s, err := primitiveString(k, values[k])
		if err != nil {
			return nil, err
		}
		d.Set(k, s)
	}
	return d, nil
}

func primitiveString(key string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", &MalformedFieldError{Field: key, Value: v}
	}
}

// Set adds or replaces a field, appending new names to the order.
func (d *FieldData) Set(key, value string) {
	if _, ok := d.vals[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.vals[key] = value
}

func (d *FieldData) Get(key string) (string, bool) {
	v, ok := d.vals[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (d *FieldData) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *FieldData) Len() int {
	return len(d.keys)
}

// StripEmpty returns a copy without empty-valued fields. Content hashing
// works on the stripped mapping so notes differing only in blank fields
// collide.
func (d *FieldData) StripEmpty() *FieldData {
	out := NewFieldData()
	for _, k := range d.keys {
		if v := d.vals[k]; v != "" {
			out.Set(k, v)
		}
	}
	return out
}

// MarshalJSON encodes as an array of [name, value] pairs, keeping order.
func (d *FieldData) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, 0, len(d.keys))
	for _, k := range d.keys {
		pairs = append(pairs, [2]string{k, d.vals[k]})
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON accepts either the pair-array encoding or a plain JSON
// object (order of an object is not recoverable; pairs are preferred).
func (d *FieldData) UnmarshalJSON(b []byte) error {
	d.keys = nil
	d.vals = make(map[string]string)

	var pairs [][2]string
	if err := json.Unmarshal(b, &pairs); err == nil {
		for _, p := range pairs {
			d.Set(p[0], p[1])
		}
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("field data is neither pairs nor object: %w", err)
	}
	parsed, err := FieldDataFrom(obj)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}
