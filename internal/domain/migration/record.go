package migration

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Record is one exported entity instance: a source uid plus an open set of
// fields. Known fields are read through typed payloads at the serialize
// boundary; everything else passes through untouched.
type Record struct {
	UID    string
	Fields map[string]any
}

// NewRecord creates a record, copying fields
func NewRecord(uid string, fields map[string]any) Record {
	r := Record{UID: uid, Fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		if k == "uid" {
			continue
		}
		r.Fields[k] = v
	}
	return r
}

// Get returns a field value
func (r Record) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// String returns a string field or "" when absent or not a string
func (r Record) String(key string) string {
	if s, ok := r.Fields[key].(string); ok {
		return s
	}
	return ""
}

// Set assigns a field, allocating the field map on first use
func (r *Record) Set(key string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = value
}

// Delete removes a field and returns its previous value
func (r *Record) Delete(key string) (any, bool) {
	v, ok := r.Fields[key]
	delete(r.Fields, key)
	return v, ok
}

// Name returns a label for progress and ledger output
func (r Record) Name() string {
	for _, key := range []string{"name", "title"} {
		if s := r.String(key); s != "" {
			return s
		}
	}
	return r.UID
}

// Clone returns a deep copy so that pipeline rewrites never leak into the
// loaded collection.
func (r Record) Clone() Record {
	out := Record{UID: r.UID, Fields: make(map[string]any, len(r.Fields))}
	for k, v := range r.Fields {
		out.Fields[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Validate checks the record carries a source uid
func (r Record) Validate() error {
	if r.UID == "" {
		return ErrMissingUID
	}
	return nil
}

// Decode converts the record into a typed payload
func (r Record) Decode(v any) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// MarshalJSON flattens the record into a single object
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["uid"] = r.UID
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat object, lifting "uid" out of the field map
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	uid, _ := raw["uid"].(string)
	*r = NewRecord(uid, raw)
	return nil
}

// DecodeRecords parses an export artifact holding either an object keyed by
// uid or an array of records. Object entries without a uid field take their
// key. Object input is returned sorted by key so runs are deterministic.
func DecodeRecords(data []byte) ([]Record, error) {
	var asMap map[string]Record
	if err := json.Unmarshal(data, &asMap); err == nil {
		keys := make([]string, 0, len(asMap))
		for k := range asMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make([]Record, 0, len(keys))
		for _, k := range keys {
			rec := asMap[k]
			if rec.UID == "" {
				rec.UID = k
			}
			out = append(out, rec)
		}
		return out, nil
	}

	var asList []Record
	if err := json.Unmarshal(data, &asList); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return asList, nil
}
