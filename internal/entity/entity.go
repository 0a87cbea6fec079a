// Package entity defines the entity types handled by the admin client and the
// schema-tolerant document representation shared by the cache, the resolver
// and the diff engine.
package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type identifies an entity collection. Its value doubles as the REST
// collection name.
type Type string

const (
	University Type = "universities"
	College    Type = "colleges"
	Department Type = "departments"
	Program    Type = "programs"
	Faculty    Type = "faculty"
	Student    Type = "students"
)

var allTypes = []Type{University, College, Department, Program, Faculty, Student}

// Types returns every entity type, parents before children.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid reports whether t is a known entity type.
func (t Type) Valid() bool {
	for _, k := range allTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Label returns the singular, human-readable name of the type.
func (t Type) Label() string {
	switch t {
	case University:
		return "University"
	case College:
		return "College"
	case Department:
		return "Department"
	case Program:
		return "Program"
	case Faculty:
		return "Faculty"
	case Student:
		return "Student"
	}
	return string(t)
}

// ParseType accepts the collection name or the singular label, case-insensitively.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range allTypes {
		if s == string(t) || s == strings.ToLower(t.Label()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// System keys carried by every stored entity. They are never part of an
// update payload.
const (
	KeyID        = "_id"
	KeyAltID     = "id"
	KeyRevision  = "__v"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
	KeyName      = "name"
	KeyPrograms  = "programs"
)

// SystemKeys lists the immutable/system fields excluded from diffs.
func SystemKeys() []string {
	return []string{KeyID, KeyAltID, KeyRevision, KeyCreatedAt, KeyUpdatedAt}
}

// Doc is one entity record as decoded from the wire. Field shapes are not
// guaranteed: references may be ids, nested objects or alias keys.
type Doc map[string]any

// ID returns the record's own id, looking at "_id" then "id".
func (d Doc) ID() string {
	for _, k := range []string{KeyID, KeyAltID} {
		if s := scalarString(d[k]); s != "" {
			return s
		}
	}
	return ""
}

// Name returns the display name, or "" when absent.
func (d Doc) Name() string {
	s, _ := d[KeyName].(string)
	return s
}

// Lookup walks a dotted path such as "head.name" through nested objects.
func (d Doc) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of the document.
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}
	return Doc(cloneMap(d))
}

// Decode converts the document into a typed value through JSON.
func (d Doc) Decode(v any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode doc: %w", err)
	}
	return nil
}

// FromValue converts a typed value (struct, map) into a Doc through JSON.
func FromValue(v any) (Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	var d Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("value is not an object: %w", err)
	}
	return d, nil
}

// CloneAll deep-copies a collection.
func CloneAll(docs []Doc) []Doc {
	out := make([]Doc, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// CloneValue deep-copies a decoded JSON value. Maps and slices are copied
// recursively; scalars are returned as is.
func CloneValue(v any) any { return cloneValue(v) }

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Doc:
		return m, true
	}
	return nil, false
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		return fmt.Sprint(s)
	}
	return ""
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Doc:
		return Doc(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	}
	return v
}
