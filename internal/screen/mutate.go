package screen

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"campus-admin/internal/diff"
	"campus-admin/internal/entity"
	"campus-admin/internal/lifecycle"
	"campus-admin/internal/relation"
	"campus-admin/internal/validate"
)

// Add creates an entity of type t under parentRef. For types with a
// structural parent (college, department, program) the parent is required and
// must be present in the cached parent collection. Validation failures are
// returned before any request is made.
func (s *Screen) Add(ctx context.Context, t entity.Type, parentRef any, payload entity.Doc) (entity.Doc, error) {
	doc := stripSystem(payload)

	if link, ok := entity.OwningLink(t); ok {
		parentID := relation.ResolveForeignKey(parentRef)
		if parentID == "" {
			parentID = relation.ForeignKey(doc, link.Candidates)
		}
		if err := s.checkParent(t, link, parentID); err != nil {
			return nil, err
		}
		doc[link.Key] = parentID
	}

	doc = relation.Canonical(t, doc)
	if err := s.validator.Doc(t, doc); err != nil {
		return nil, err
	}

	created, err := lifecycle.Run(ctx, s.tracker(t, lifecycle.Create), s.tokenSource(),
		func(ctx context.Context) (entity.Doc, error) {
			return s.transport.Create(ctx, t, doc)
		},
		func(created entity.Doc) {
			s.cache.UpsertOne(t, created)
			if t == entity.Program {
				s.linkProgram(created.ID(), "", s.programDepartment(created))
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", t.Label(), err)
	}
	s.logger.Info("entity created", zap.String("type", string(t)), zap.String("id", created.ID()))
	return created, nil
}

func (s *Screen) checkParent(t entity.Type, link entity.Link, parentID string) error {
	parentLabel := link.Parent.Label()
	if parentID == "" {
		return validate.Field(t, link.Key, fmt.Sprintf("Please select a %s", strings.ToLower(parentLabel)))
	}
	if !s.cache.Populated(link.Parent) {
		// The parent list was never fetched here; the backend checks it.
		return nil
	}
	parent, found := relation.Find(s.cache.Get(link.Parent), parentID)
	if !found {
		return validate.Field(t, link.Key, fmt.Sprintf("%s not found", parentLabel))
	}
	if s.college != "" && t == entity.Program {
		deptCollege, _ := entity.LinkTo(entity.Department, entity.College)
		if relation.ForeignKey(parent, deptCollege.Candidates) != s.college {
			return validate.Field(t, link.Key, "Department does not belong to this college")
		}
	}
	return nil
}

// Save sends only the fields that differ between original and edited. When
// nothing changed it returns diff.ErrNoChanges without a request. The merged
// entity is validated before sending.
func (s *Screen) Save(ctx context.Context, t entity.Type, original, edited entity.Doc) (entity.Doc, error) {
	id := original.ID()
	if id == "" {
		return nil, ErrMissingID
	}

	// Parent references compare by id whatever their shape or alias key.
	patch, err := diff.Patch(relation.Canonical(t, original), relation.Canonical(t, edited),
		entity.SystemKeys(), diff.WithSetKeys(entity.KeyPrograms))
	if err != nil {
		return nil, err
	}

	merged := original.Clone()
	for _, link := range entity.Links(t) {
		if _, ok := patch[link.Key]; ok {
			for _, k := range link.Candidates {
				delete(merged, k)
			}
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	if err := s.validator.Doc(t, merged); err != nil {
		return nil, err
	}
	if link, ok := entity.OwningLink(t); ok && touches(patch, link.Candidates) {
		if err := s.checkParent(t, link, relation.ForeignKey(merged, link.Candidates)); err != nil {
			return nil, err
		}
	}
	patch = relation.Canonical(t, patch)

	oldDept := ""
	if t == entity.Program {
		oldDept = s.programDepartment(original)
	}

	var stored entity.Doc
	_, err = lifecycle.Run(ctx, s.tracker(t, lifecycle.Update), s.tokenSource(),
		func(ctx context.Context) (entity.Doc, error) {
			return s.transport.Update(ctx, t, id, patch)
		},
		func(updated entity.Doc) {
			result := merged.Clone()
			for k, v := range updated {
				result[k] = v
			}
			result[entity.KeyID] = id
			s.cache.UpsertOne(t, result)
			stored = result
			if t == entity.Program {
				if newDept := s.programDepartment(result); newDept != oldDept {
					s.linkProgram(id, oldDept, newDept)
				}
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", t.Label(), id, err)
	}
	s.logger.Info("entity updated", zap.String("type", string(t)), zap.String("id", id), zap.Int("fields", len(patch)))
	return stored, nil
}

func touches(patch entity.Doc, keys []string) bool {
	for _, k := range keys {
		if _, ok := patch[k]; ok {
			return true
		}
	}
	return false
}

// Delete removes the entity once the user has confirmed.
func (s *Screen) Delete(ctx context.Context, t entity.Type, id string, confirmed bool) error {
	if id == "" {
		return ErrMissingID
	}
	if !confirmed {
		return ErrNotConfirmed
	}

	oldDept := ""
	if t == entity.Program {
		if prog, ok := relation.Find(s.cache.Get(t), id); ok {
			oldDept = s.programDepartment(prog)
		}
	}

	_, err := lifecycle.Run(ctx, s.tracker(t, lifecycle.Delete), s.tokenSource(),
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.transport.Remove(ctx, t, id)
		},
		func(struct{}) {
			s.cache.RemoveOne(t, id)
			if t == entity.Program {
				s.linkProgram(id, oldDept, "")
			}
		},
	)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.Label(), id, err)
	}
	s.logger.Info("entity deleted", zap.String("type", string(t)), zap.String("id", id))
	return nil
}

func (s *Screen) programDepartment(program entity.Doc) string {
	link, _ := entity.OwningLink(entity.Program)
	return relation.ForeignKey(program, link.Candidates)
}

// linkProgram moves a program id between the programs sets of the cached
// departments. Either side may be empty.
func (s *Screen) linkProgram(programID, from, to string) {
	if programID == "" {
		return
	}
	if from != "" {
		s.cache.Modify(entity.Department, from, func(d entity.Doc) {
			var kept []any
			for _, id := range relation.DedupIDs(d[entity.KeyPrograms]) {
				if id != programID {
					kept = append(kept, id)
				}
			}
			d[entity.KeyPrograms] = nonNil(kept)
		})
	}
	if to != "" {
		s.cache.Modify(entity.Department, to, func(d entity.Doc) {
			ids := append(relation.DedupIDs(d[entity.KeyPrograms]), programID)
			d[entity.KeyPrograms] = toAny(relation.DedupIDs(ids))
		})
	}
}

func stripSystem(d entity.Doc) entity.Doc {
	out := d.Clone()
	if out == nil {
		out = entity.Doc{}
	}
	for _, k := range entity.SystemKeys() {
		delete(out, k)
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

func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
