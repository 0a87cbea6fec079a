// Package diff computes minimal update payloads between two snapshots of the
// same entity.
package diff

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/google/go-cmp/cmp"

	"campus-admin/internal/entity"
	"campus-admin/internal/relation"
)

// ErrNoChanges is returned by Patch when the edited snapshot matches the
// original on every comparable field. Callers must not issue a write.
var ErrNoChanges = errors.New("no changes made")

type options struct {
	setKeys map[string]struct{}
}

// Option tunes the comparison.
type Option func(*options)

// WithSetKeys marks keys whose array values are compared as unordered sets of
// ids. Duplicates are ignored on both sides.
func WithSetKeys(keys ...string) Option {
	return func(o *options) {
		for _, k := range keys {
			o.setKeys[k] = struct{}{}
		}
	}
}

// ComputeDiff returns the keys of edited whose values differ from original,
// skipping every key in excluded. Values are compared by content: nested
// objects rebuilt by a form compare equal to the originals they mirror.
func ComputeDiff(original, edited entity.Doc, excluded []string, opts ...Option) entity.Doc {
	o := options{setKeys: map[string]struct{}{}}
	for _, opt := range opts {
		opt(&o)
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, k := range excluded {
		skip[k] = struct{}{}
	}

	out := entity.Doc{}
	for key, newVal := range edited {
		if _, ok := skip[key]; ok {
			continue
		}
		oldVal := original[key]
		if _, isSet := o.setKeys[key]; isSet {
			oldSet, newSet := sortedSet(oldVal), sortedSet(newVal)
			if !cmp.Equal(oldSet, newSet) {
				out[key] = relation.DedupIDs(newVal)
			}
			continue
		}
		if !Equal(oldVal, newVal) {
			out[key] = entity.CloneValue(newVal)
		}
	}
	return out
}

// Patch is ComputeDiff with the no-op case surfaced as ErrNoChanges.
func Patch(original, edited entity.Doc, excluded []string, opts ...Option) (entity.Doc, error) {
	patch := ComputeDiff(original, edited, excluded, opts...)
	if len(patch) == 0 {
		return nil, ErrNoChanges
	}
	return patch, nil
}

// Equal reports whether two field values are equal by content. Both sides are
// normalized through JSON first so numeric and container types produced by
// different decoders compare alike.
func Equal(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return cmp.Equal(a, b)
	}
	return cmp.Equal(na, nb)
}

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedSet(v any) []string {
	ids := relation.DedupIDs(v)
	sort.Strings(ids)
	return ids
}
