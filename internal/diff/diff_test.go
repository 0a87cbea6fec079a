package diff

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-admin/internal/entity"
)

func TestComputeDiff_ScenarioB(t *testing.T) {
	original := entity.Doc{"_id": "P1", "name": "AI", "duration": 2}
	edited := entity.Doc{"_id": "P1", "name": "AI", "duration": 3}

	got := ComputeDiff(original, edited, entity.SystemKeys())
	if d := cmp.Diff(entity.Doc{"duration": 3}, got); d != "" {
		t.Errorf("unexpected patch (-want +got):\n%s", d)
	}
}

func TestPatch_ScenarioC(t *testing.T) {
	original := entity.Doc{"_id": "P1", "name": "AI", "duration": float64(2)}
	edited := original.Clone()

	patch, err := Patch(original, edited, entity.SystemKeys())
	assert.Nil(t, patch)
	assert.True(t, errors.Is(err, ErrNoChanges))
}

func TestComputeDiff(t *testing.T) {
	testCases := []struct {
		name     string
		original entity.Doc
		edited   entity.Doc
		excluded []string
		want     entity.Doc
	}{
		{
			name:     "excluded keys never appear",
			original: entity.Doc{"_id": "D1", "__v": 1, "createdAt": "a", "name": "CS"},
			edited:   entity.Doc{"_id": "D2", "__v": 2, "createdAt": "b", "name": "CS"},
			excluded: entity.SystemKeys(),
			want:     entity.Doc{},
		},
		{
			name:     "nested object rebuilt with same values",
			original: entity.Doc{"head": map[string]any{"name": "Ada", "phone": "1"}},
			edited:   entity.Doc{"head": map[string]any{"phone": "1", "name": "Ada"}},
			want:     entity.Doc{},
		},
		{
			name:     "nested object change is sent whole",
			original: entity.Doc{"head": map[string]any{"name": "Ada", "phone": "1"}},
			edited:   entity.Doc{"head": map[string]any{"name": "Ada", "phone": "2"}},
			want:     entity.Doc{"head": map[string]any{"name": "Ada", "phone": "2"}},
		},
		{
			name:     "numeric types compare by value",
			original: entity.Doc{"duration": float64(4)},
			edited:   entity.Doc{"duration": int64(4)},
			want:     entity.Doc{},
		},
		{
			name:     "typed struct against decoded map",
			original: entity.Doc{"address": map[string]any{"roomNumber": "101", "building": "B"}},
			edited: entity.Doc{"address": struct {
				RoomNumber string `json:"roomNumber"`
				Building   string `json:"building"`
			}{"101", "B"}},
			want: entity.Doc{},
		},
		{
			name:     "new key is a change",
			original: entity.Doc{"name": "AI"},
			edited:   entity.Doc{"name": "AI", "syllabus": "https://x"},
			want:     entity.Doc{"syllabus": "https://x"},
		},
		{
			name:     "keys missing from edited are ignored",
			original: entity.Doc{"name": "AI", "bio": "long"},
			edited:   entity.Doc{"name": "ML"},
			want:     entity.Doc{"name": "ML"},
		},
		{
			name:     "ordered arrays compare positionally",
			original: entity.Doc{"tags": []any{"a", "b"}},
			edited:   entity.Doc{"tags": []any{"b", "a"}},
			want:     entity.Doc{"tags": []any{"b", "a"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDiff(tc.original, tc.edited, tc.excluded)
			if d := cmp.Diff(tc.want, got); d != "" {
				t.Errorf("unexpected patch (-want +got):\n%s", d)
			}
		})
	}
}

func TestComputeDiff_SetKeys(t *testing.T) {
	original := entity.Doc{"programs": []any{"P1", "P2"}}

	reordered := entity.Doc{"programs": []any{"P2", "P1", "P1"}}
	assert.Empty(t, ComputeDiff(original, reordered, nil, WithSetKeys("programs")))

	grown := entity.Doc{"programs": []any{"P2", "P3", "P2", "P1"}}
	got := ComputeDiff(original, grown, nil, WithSetKeys("programs"))
	assert.Equal(t, entity.Doc{"programs": []string{"P2", "P3", "P1"}}, got)
}

// The result is always a subset of edited's keys, never contains an excluded
// key, and is empty exactly when every other field is value-equal.
func TestComputeDiff_Properties(t *testing.T) {
	base := entity.Doc{
		"_id":      "S1",
		"name":     "Lin",
		"email":    "lin@example.edu",
		"phone":    "555",
		"credentials": map[string]any{
			"username": "lin",
		},
		"enrollmentYear": float64(2021),
	}
	mutations := []func(entity.Doc){
		func(d entity.Doc) {},
		func(d entity.Doc) { d["_id"] = "S2" },
		func(d entity.Doc) { d["name"] = "Lin Wei" },
		func(d entity.Doc) { d["credentials"] = map[string]any{"username": "lwei"} },
		func(d entity.Doc) { d["enrollmentYear"] = 2022 },
		func(d entity.Doc) { d["graduationYear"] = 2025 },
		func(d entity.Doc) { delete(d, "phone") },
	}
	excluded := entity.SystemKeys()

	for i, mutate := range mutations {
		edited := base.Clone()
		mutate(edited)
		got := ComputeDiff(base, edited, excluded)

		for k := range got {
			require.Contains(t, edited, k, "mutation %d", i)
			require.NotContains(t, excluded, k, "mutation %d", i)
		}

		allEqual := true
		for k, v := range edited {
			if contains(excluded, k) {
				continue
			}
			if !Equal(base[k], v) {
				allEqual = false
			}
		}
		assert.Equal(t, allEqual, len(got) == 0, "mutation %d", i)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal(3, 3.0))
	assert.True(t, Equal([]string{"a"}, []any{"a"}))
	assert.False(t, Equal("3", 3))
	assert.False(t, Equal(nil, ""))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestComputeDiff_PatchDoesNotShareEdited(t *testing.T) {
	original := entity.Doc{"tags": []any{"a"}, "head": map[string]any{"name": "Ada"}}
	edited := entity.Doc{"tags": []any{"a", map[string]any{"k": "v"}}, "head": map[string]any{"name": "Grace"}}

	got := ComputeDiff(original, edited, nil)
	got["tags"].([]any)[0] = "z"
	got["tags"].([]any)[1].(map[string]any)["k"] = "w"
	got["head"].(map[string]any)["name"] = "Linus"

	assert.Equal(t, "a", edited["tags"].([]any)[0])
	assert.Equal(t, "v", edited["tags"].([]any)[1].(map[string]any)["k"])
	assert.Equal(t, "Grace", edited["head"].(map[string]any)["name"])
}
