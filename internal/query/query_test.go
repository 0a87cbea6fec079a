package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"campus-admin/internal/entity"
	"campus-admin/internal/relation"
)

func ids(docs []entity.Doc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

var programs = []entity.Doc{
	{"_id": "P1", "name": "Data Science", "duration": float64(2), "level": "postgraduate"},
	{"_id": "P2", "name": "applied Math", "duration": "4", "level": "undergraduate"},
	{"_id": "P3", "name": "Zoology", "duration": "n/a", "level": "undergraduate"},
	{"_id": "P4", "name": "Économie", "duration": float64(3), "level": "doctorate"},
	{"_id": "P5", "name": "Botany", "level": "undergraduate"},
	{"_id": "P6", "name": "Chemistry", "duration": float64(2), "level": "diploma"},
}

func TestFilterByText_EmptyTermReturnsAllInOrder(t *testing.T) {
	for _, term := range []string{"", "   "} {
		got := FilterByText(programs, term, Key("name"))
		assert.Equal(t, programs, got)
	}
}

func TestFilterByText_CaseInsensitive(t *testing.T) {
	got := FilterByText(programs, "MATH", Key("name"))
	assert.Equal(t, []string{"P2"}, ids(got))

	got = FilterByText(programs, "grad", Key("name"), Key("level"))
	assert.Equal(t, []string{"P1", "P2", "P3", "P5"}, ids(got))

	assert.Empty(t, FilterByText(programs, "physics", Key("name")))
}

func TestFilterByText_NestedAndNumericFields(t *testing.T) {
	depts := []entity.Doc{
		{"_id": "D1", "head": map[string]any{"name": "Ada Lovelace"}},
		{"_id": "D2", "head": map[string]any{"name": "Alan Turing"}},
		{"_id": "D3", "head": "not an object"},
	}
	assert.Equal(t, []string{"D2"}, ids(FilterByText(depts, "turing", Key("head.name"))))

	assert.Equal(t, []string{"P4"}, ids(FilterByText(programs, "3", Key("duration"))))
}

func TestFilterByText_ResolvedParentName(t *testing.T) {
	colleges := []entity.Doc{
		{"_id": "C1", "name": "College of Computing"},
		{"_id": "C2", "name": "College of Arts"},
	}
	depts := []entity.Doc{
		{"_id": "D1", "name": "CS", "college": "C1"},
		{"_id": "D2", "name": "History", "collegeId": map[string]any{"_id": "C2"}},
		{"_id": "D3", "name": "Orphan", "college": "C9"},
	}
	collegeName := func(d entity.Doc) string {
		ref := relation.ForeignKey(d, []string{"college", "collegeId"})
		return relation.ResolveName(colleges, ref, relation.UnknownCollege)
	}

	assert.Equal(t, []string{"D2"}, ids(FilterByText(depts, "arts", Key("name"), collegeName)))
	assert.Equal(t, []string{"D3"}, ids(FilterByText(depts, "unknown", collegeName)))
}

func TestSortBy_Numbers(t *testing.T) {
	got := SortBy(programs, "duration", Numbers())
	// Non-numeric and missing durations rank lowest, keeping their order.
	assert.Equal(t, []string{"P3", "P5", "P1", "P6", "P4", "P2"}, ids(got))
}

func TestSortBy_LocaleAwareStrings(t *testing.T) {
	got := SortBy(programs, "name", Strings(language.French))
	assert.Equal(t, []string{"P2", "P5", "P6", "P1", "P4", "P3"}, ids(got))
}

func TestSortBy_StableAndIdempotent(t *testing.T) {
	rows := []entity.Doc{
		{"_id": "a", "level": "undergraduate"},
		{"_id": "b", "level": "diploma"},
		{"_id": "c", "level": "undergraduate"},
		{"_id": "d", "level": "diploma"},
		{"_id": "e", "level": "undergraduate"},
	}
	once := SortBy(rows, "level", Strings(language.English))
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, ids(once))

	twice := SortBy(once, "level", Strings(language.English))
	assert.Equal(t, once, twice)

	// The input is not reordered.
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(rows))
}

func TestApply_FilterThenMultiKeySort(t *testing.T) {
	got := Apply(programs, "", nil,
		Order{Key: "level", Cmp: Strings(language.English)},
		Order{Key: "duration", Desc: true, Cmp: Numbers()},
	)
	assert.Equal(t, []string{"P6", "P4", "P1", "P2", "P3", "P5"}, ids(got))

	got = Apply(programs, "o", []Field{Key("name")}, Order{Key: "name"})
	require.NotEmpty(t, got)
	assert.Equal(t, []string{"P5", "P4", "P3"}, ids(got))
}

func TestNumber(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: float64(2), want: 2, ok: true},
		{in: 7, want: 7, ok: true},
		{in: " 3.5 ", want: 3.5, ok: true},
		{in: "three", ok: false},
		{in: nil, ok: false},
		{in: "NaN", ok: false},
		{in: []any{1}, ok: false},
	} {
		got, ok := Number(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got)
		}
	}
}
