// Package parse turns command-line arguments into sort orders, list scopes and
// entity field assignments.
package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"campus-admin/internal/entity"
	"campus-admin/internal/query"
	"campus-admin/internal/transport"
)

var (
	keyRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	pairRe = regexp.MustCompile(`^\s*([^=\s]+)\s*=(.*)$`)
	// numRe rejects forms like "0123" or "+1555" that are really identifiers.
	numRe = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)
)

// numericKeys are compared as numbers when sorting.
var numericKeys = map[string]bool{
	"duration":       true,
	"enrollmentYear": true,
	"graduationYear": true,
	"__v":            true,
}

// Sort parses a comma-separated sort spec such as "collegeName,-duration".
// A leading '-' sorts descending; '+' is accepted and ignored.
func Sort(spec string, locale language.Tag) ([]query.Order, error) {
	var orders []query.Order
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := false
		switch part[0] {
		case '-':
			desc = true
			part = part[1:]
		case '+':
			part = part[1:]
		}
		if !keyRe.MatchString(part) {
			return nil, fmt.Errorf("invalid sort key %q", part)
		}
		cmp := query.Strings(locale)
		if numericKeys[part] {
			cmp = query.Numbers()
		}
		orders = append(orders, query.Order{Key: part, Desc: desc, Cmp: cmp})
	}
	return orders, nil
}

// Scope parses "key=value" pairs into a list scope.
func Scope(pairs []string) (transport.Scope, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	scope := make(transport.Scope, len(pairs))
	for _, p := range pairs {
		k, v, err := splitPair(p)
		if err != nil {
			return nil, err
		}
		scope[k] = strings.TrimSpace(v)
	}
	return scope, nil
}

// Assignments parses "key=value" pairs into a document. Dotted keys build
// nested objects ("head.name=Ada"). Values that read as JSON numbers, booleans,
// arrays or objects are decoded; everything else is kept as a string.
func Assignments(pairs []string) (entity.Doc, error) {
	doc := entity.Doc{}
	for _, p := range pairs {
		k, v, err := splitPair(p)
		if err != nil {
			return nil, err
		}
		if err := assign(doc, strings.Split(k, "."), Value(v)); err != nil {
			return nil, fmt.Errorf("assign %q: %w", k, err)
		}
	}
	return doc, nil
}

// Value interprets a raw command-line value.
func Value(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if numRe.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if s[0] == '[' || s[0] == '{' {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}

func splitPair(p string) (string, string, error) {
	m := pairRe.FindStringSubmatch(p)
	if m == nil {
		return "", "", fmt.Errorf("expected key=value, got %q", p)
	}
	key := m[1]
	if !keyRe.MatchString(key) {
		return "", "", fmt.Errorf("invalid key %q", key)
	}
	return key, m[2], nil
}

func assign(doc map[string]any, path []string, v any) error {
	if len(path) == 1 {
		doc[path[0]] = v
		return nil
	}
	child, ok := doc[path[0]]
	if !ok {
		next := map[string]any{}
		doc[path[0]] = next
		return assign(next, path[1:], v)
	}
	m, ok := child.(map[string]any)
	if !ok {
		return fmt.Errorf("%s is not an object", path[0])
	}
	return assign(m, path[1:], v)
}
