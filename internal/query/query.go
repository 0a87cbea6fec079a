// Package query derives the visible rows of a list screen: a case-insensitive
// text filter followed by a stable sort.
package query

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"campus-admin/internal/entity"
)

// Field extracts the searchable text of one attribute of a row.
type Field func(entity.Doc) string

// Key reads a top-level or dotted nested attribute as text.
func Key(path string) Field {
	return func(d entity.Doc) string {
		v, ok := d.Lookup(path)
		if !ok {
			return ""
		}
		return Text(v)
	}
}

// Text renders a scalar value for matching and display. Containers render as "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool, int, int64, int32, uint, uint64, json.Number:
		return fmt.Sprint(t)
	}
	return ""
}

// FilterByText keeps the rows where any field contains term,
// case-insensitively. A blank term returns the whole collection in order.
func FilterByText(collection []entity.Doc, term string, fields ...Field) []entity.Doc {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || len(fields) == 0 {
		return slices.Clone(collection)
	}
	var out []entity.Doc
	for _, row := range collection {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f(row)), term) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// Comparator orders two attribute values, returning <0, 0 or >0.
type Comparator func(a, b any) int

// Strings compares values as text using the collation rules of tag.
func Strings(tag language.Tag) Comparator {
	var mu sync.Mutex
	c := collate.New(tag)
	return func(a, b any) int {
		mu.Lock()
		defer mu.Unlock()
		return c.CompareString(Text(a), Text(b))
	}
}

// Numbers compares values numerically after coercion. Values that do not
// coerce rank below every number and tie with each other.
func Numbers() Comparator {
	return func(a, b any) int {
		x, okA := Number(a)
		y, okB := Number(b)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return -1
		case !okB:
			return 1
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
}

// Number coerces v to a float.
func Number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// SortBy returns a stably sorted copy of collection ordered by the attribute
// at key. Ties keep their original relative order.
func SortBy(collection []entity.Doc, key string, cmp Comparator) []entity.Doc {
	out := slices.Clone(collection)
	slices.SortStableFunc(out, func(a, b entity.Doc) int {
		va, _ := a.Lookup(key)
		vb, _ := b.Lookup(key)
		return cmp(va, vb)
	})
	return out
}

// Order is one sort criterion.
type Order struct {
	Key  string
	Desc bool
	Cmp  Comparator
}

// Apply filters collection by term and then sorts by orders, the first order
// being the primary key.
func Apply(collection []entity.Doc, term string, fields []Field, orders ...Order) []entity.Doc {
	out := FilterByText(collection, term, fields...)
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		cmp := o.Cmp
		if cmp == nil {
			cmp = Strings(language.Und)
		}
		if o.Desc {
			asc := cmp
			cmp = func(a, b any) int { return asc(b, a) }
		}
		out = SortBy(out, o.Key, cmp)
	}
	return out
}
