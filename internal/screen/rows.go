package screen

import (
	"strings"

	"campus-admin/internal/entity"
	"campus-admin/internal/query"
	"campus-admin/internal/relation"
)

// View selects and orders the rows of a list.
type View struct {
	// Search is matched case-insensitively against the name, the resolved
	// parent names and Fields.
	Search string
	Fields []string
	// Parents narrows the rows to children of the given parents, keyed by
	// parent type. Empty references are ignored.
	Parents map[entity.Type]any
	Sort    []query.Order
}

// Row is one visible list entry with its parent references resolved to names.
type Row struct {
	Doc entity.Doc
	// Names maps a parent name key such as "collegeName" to the resolved
	// display name or the lookup sentinel.
	Names map[string]string
}

// ID returns the row's entity id.
func (r Row) ID() string { return r.Doc.ID() }

// NameKey is the key under which the resolved name of parent is exposed,
// both in Row.Names and as a sortable column.
func NameKey(parent entity.Type) string {
	return strings.ToLower(parent.Label()) + "Name"
}

// Rows derives the visible rows of t from the cache: parent filter, text
// search, then a stable sort.
func (s *Screen) Rows(t entity.Type, v View) []Row {
	docs := s.cache.Get(t)

	for parent, ref := range v.Parents {
		link, ok := entity.LinkTo(t, parent)
		if !ok {
			continue
		}
		docs = relation.ChildrenOf(docs, ref, link.Candidates)
	}

	links := entity.Links(t)
	parents := make(map[entity.Type][]entity.Doc, len(links))
	for _, link := range links {
		if _, ok := parents[link.Parent]; !ok {
			parents[link.Parent] = s.cache.Get(link.Parent)
		}
	}

	// Resolved names are attached to a working copy so search and sort can
	// address them like ordinary fields.
	annotated := make([]entity.Doc, len(docs))
	for i, d := range docs {
		w := d.Clone()
		for _, link := range links {
			ref := relation.ForeignKey(d, link.Candidates)
			w[NameKey(link.Parent)] = relation.ResolveName(parents[link.Parent], ref, relation.Sentinel(link.Parent))
		}
		w[rowIndexKey] = i
		annotated[i] = w
	}

	fields := []query.Field{query.Key(entity.KeyName)}
	for _, link := range links {
		fields = append(fields, query.Key(NameKey(link.Parent)))
	}
	for _, f := range v.Fields {
		fields = append(fields, query.Key(f))
	}

	orders := make([]query.Order, len(v.Sort))
	for i, o := range v.Sort {
		if o.Cmp == nil {
			o.Cmp = query.Strings(s.locale)
		}
		orders[i] = o
	}

	visible := query.Apply(annotated, v.Search, fields, orders...)
	rows := make([]Row, 0, len(visible))
	for _, w := range visible {
		i, _ := w[rowIndexKey].(int)
		names := make(map[string]string, len(links))
		for _, link := range links {
			key := NameKey(link.Parent)
			names[key], _ = w[key].(string)
		}
		rows = append(rows, Row{Doc: docs[i], Names: names})
	}
	return rows
}

const rowIndexKey = "\x00row"

// Options returns the entries of t offered in a dropdown once parentRef is
// selected, sorted by name. An empty parentRef offers every entry, except
// that a college-scoped screen only offers its own departments.
func (s *Screen) Options(t entity.Type, parentRef any) []entity.Doc {
	docs := s.cache.Get(t)
	if link, ok := entity.OwningLink(t); ok {
		ref := parentRef
		if relation.ResolveForeignKey(ref) == "" && s.college != "" && link.Parent == entity.College {
			ref = s.college
		}
		docs = relation.ChildrenOf(docs, ref, link.Candidates)
	}
	return query.SortBy(docs, entity.KeyName, query.Strings(s.locale))
}
