// Package relation resolves foreign-key references between independently
// fetched entity collections.
//
// A reference may arrive as a bare id, as a populated object carrying its own
// id, or under a differently named field. Every lookup goes through
// ResolveForeignKey so the shape checks live in one place.
package relation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"campus-admin/internal/entity"
)

// Sentinel display names for lookup misses.
const (
	UnknownCollege = "Unknown College"
	NotAvailable   = "N/A"
)

// Sentinel returns the display value used when a reference into t misses.
func Sentinel(t entity.Type) string {
	if t == entity.College {
		return UnknownCollege
	}
	return NotAvailable
}

// ResolveForeignKey normalizes a reference value to a bare id string.
// It returns "" for nil, empty or unrecognized input and never panics.
func ResolveForeignKey(ref any) string {
	return resolve(ref, 0)
}

const maxDepth = 4

func resolve(ref any, depth int) string {
	if depth > maxDepth {
		return ""
	}
	switch v := ref.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case *string:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(*v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case entity.Doc:
		return resolveObject(v, depth)
	case map[string]any:
		return resolveObject(v, depth)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	}
	return ""
}

func resolveObject(m map[string]any, depth int) string {
	for _, k := range []string{entity.KeyID, entity.KeyAltID} {
		if id := resolve(m[k], depth+1); id != "" {
			return id
		}
	}
	return ""
}

// ForeignKey reads the reference held by record under the first candidate key
// that yields a non-empty id.
func ForeignKey(record entity.Doc, candidateKeys []string) string {
	for _, k := range candidateKeys {
		if id := ResolveForeignKey(record[k]); id != "" {
			return id
		}
	}
	return ""
}

// Find returns the item of collection whose id matches ref.
func Find(collection []entity.Doc, ref any) (entity.Doc, bool) {
	id := ResolveForeignKey(ref)
	if id == "" {
		return nil, false
	}
	for _, item := range collection {
		if item.ID() == id {
			return item, true
		}
	}
	return nil, false
}

// ResolveName returns the display name of the item ref points at, or sentinel
// when there is no match.
func ResolveName(collection []entity.Doc, ref any, sentinel string) string {
	item, ok := Find(collection, ref)
	if !ok {
		return sentinel
	}
	if name := item.Name(); name != "" {
		return name
	}
	return sentinel
}

// ChildrenOf returns the children whose foreign key, read through
// candidateKeys, equals parentRef. An empty parentRef means "no filter" and
// yields every child.
func ChildrenOf(children []entity.Doc, parentRef any, candidateKeys []string) []entity.Doc {
	parentID := ResolveForeignKey(parentRef)
	if parentID == "" {
		out := make([]entity.Doc, len(children))
		copy(out, children)
		return out
	}
	var out []entity.Doc
	for _, child := range children {
		if ForeignKey(child, candidateKeys) == parentID {
			out = append(out, child)
		}
	}
	return out
}

// DedupIDs normalizes a set of references to unique ids, keeping the first
// occurrence order. Unresolvable members are dropped.
func DedupIDs(refs any) []string {
	var items []any
	switch v := refs.(type) {
	case nil:
		return []string{}
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case []entity.Doc:
		items = make([]any, len(v))
		for i, d := range v {
			items[i] = d
		}
	default:
		items = []any{v}
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		id := ResolveForeignKey(item)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Canonical returns a copy of doc with every parent link of t rewritten to a
// bare id under its canonical key. Alias keys are folded in and removed.
// Department programs are deduplicated.
func Canonical(t entity.Type, doc entity.Doc) entity.Doc {
	out := doc.Clone()
	if out == nil {
		out = entity.Doc{}
	}
	for _, link := range entity.Links(t) {
		id := ForeignKey(out, link.Candidates)
		for _, k := range link.Candidates {
			if k != link.Key {
				delete(out, k)
			}
		}
		if id != "" {
			out[link.Key] = id
		} else if _, present := out[link.Key]; present {
			out[link.Key] = ""
		}
	}
	if t == entity.Department {
		if progs, ok := out[entity.KeyPrograms]; ok {
			out[entity.KeyPrograms] = toAny(DedupIDs(progs))
		}
	}
	return out
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
