package entity

// Link describes a parent reference held by a child entity.
type Link struct {
	// Key is the canonical field name on the child.
	Key string
	// Parent is the referenced collection.
	Parent Type
	// Candidates are the field names checked, in order, when reading the
	// reference. Screens evolved independently so the same relation shows up
	// under different names.
	Candidates []string
}

var links = map[Type][]Link{
	College: {
		{Key: "university", Parent: University, Candidates: []string{"university", "universityId"}},
	},
	Department: {
		{Key: "college", Parent: College, Candidates: []string{"college", "collegeId"}},
	},
	Program: {
		{Key: "department", Parent: Department, Candidates: []string{"department", "departmentId"}},
	},
	Faculty: {
		{Key: "universityId", Parent: University, Candidates: []string{"universityId", "university"}},
		{Key: "collegeId", Parent: College, Candidates: []string{"collegeId", "college"}},
		{Key: "departmentId", Parent: Department, Candidates: []string{"departmentId", "department"}},
	},
	Student: {
		{Key: "collegeId", Parent: College, Candidates: []string{"collegeId", "college"}},
		{Key: "departmentId", Parent: Department, Candidates: []string{"departmentId", "department"}},
		{Key: "programId", Parent: Program, Candidates: []string{"programId", "program"}},
	},
}

// Links returns the parent references of t, most specific scope last.
func Links(t Type) []Link {
	src := links[t]
	out := make([]Link, len(src))
	copy(out, src)
	return out
}

// LinkTo returns the link from child to parent, if any.
func LinkTo(child, parent Type) (Link, bool) {
	for _, l := range links[child] {
		if l.Parent == parent {
			return l, true
		}
	}
	return Link{}, false
}

// OwningLink returns the link an "add" operation is scoped to: the direct
// structural parent for the hierarchy types.
func OwningLink(t Type) (Link, bool) {
	switch t {
	case College, Department, Program:
		return links[t][0], true
	}
	return Link{}, false
}
