package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"campus-admin/internal/entity"
	"campus-admin/internal/model"
	"campus-admin/internal/relation"
	"campus-admin/internal/validate"
)

// ErrNotFound matches every NotFoundError.
var ErrNotFound = errors.New("record not found")

// NotFoundError reports a missing record of a given type.
type NotFoundError struct {
	Type entity.Type
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Type.Label())
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FilterError reports a list filter on a field that cannot be filtered.
type FilterError struct {
	Type entity.Type
	Key  string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("cannot filter %s by %q", e.Type, e.Key)
}

// Store defines the interface for all database operations.
type Store interface {
	List(ctx context.Context, t entity.Type, filters map[string]string) ([]entity.Doc, error)
	Get(ctx context.Context, t entity.Type, id string) (entity.Doc, error)
	Create(ctx context.Context, t entity.Type, doc entity.Doc) (entity.Doc, error)
	Update(ctx context.Context, t entity.Type, id string, patch entity.Doc) (entity.Doc, error)
	Delete(ctx context.Context, t entity.Type, id string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db        *gorm.DB
	validator *validate.Validator

	mu      sync.Mutex
	columns map[entity.Type]map[string]string
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:        db,
		validator: validate.New(),
		columns:   make(map[entity.Type]map[string]string),
	}
}

// List returns every record of t matching filters. Filter keys are parent
// link names or their aliases ("college", "collegeId").
func (s *gormStore) List(ctx context.Context, t entity.Type, filters map[string]string) ([]entity.Doc, error) {
	dest, err := model.NewSlice(t)
	if err != nil {
		return nil, err
	}
	conds, err := s.conditions(t, filters)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(dest)
	if len(conds) > 0 {
		q = q.Where(conds)
	}
	if err := q.Order("created_at, id").Find(dest).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t, err)
	}
	return toDocs(dest)
}

// Get returns one record by id.
func (s *gormStore) Get(ctx context.Context, t entity.Type, id string) (entity.Doc, error) {
	m, err := s.load(s.db.WithContext(ctx), t, id)
	if err != nil {
		return nil, err
	}
	return entity.FromValue(m)
}

// Create inserts a record after validating it and checking that every
// referenced parent exists. A new program is added to its department's set.
func (s *gormStore) Create(ctx context.Context, t entity.Type, doc entity.Doc) (entity.Doc, error) {
	clean := relation.Canonical(t, withoutSystem(doc))
	m, err := s.decode(t, clean)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkParents(tx, t, clean); err != nil {
			return err
		}
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", t, err)
		}
		if p, ok := m.(*model.Program); ok {
			return s.relinkProgram(tx, p.ID, "", p.Department)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entity.FromValue(m)
}

// Update applies patch to the stored record and increments its revision.
// Moving a program to another department moves it between the two sets.
func (s *gormStore) Update(ctx context.Context, t entity.Type, id string, patch entity.Doc) (entity.Doc, error) {
	var out any
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(tx, t, id)
		if err != nil {
			return err
		}
		merged, err := entity.FromValue(current)
		if err != nil {
			return err
		}
		clean := relation.Canonical(t, withoutSystem(patch))
		for k, v := range clean {
			merged[k] = v
		}

		next, err := s.decode(t, withoutSystem(merged))
		if err != nil {
			return err
		}
		if err := s.checkParents(tx, t, clean); err != nil {
			return err
		}

		cur, nb := current.(model.Record).Meta(), next.(model.Record).Meta()
		nb.ID = cur.ID
		nb.CreatedAt = cur.CreatedAt
		nb.Revision = cur.Revision + 1
		if err := tx.Save(next).Error; err != nil {
			return fmt.Errorf("failed to update %s %s: %w", t, id, err)
		}

		if p, ok := next.(*model.Program); ok {
			if from := current.(*model.Program).Department; from != p.Department {
				if err := s.relinkProgram(tx, id, from, p.Department); err != nil {
					return err
				}
			}
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entity.FromValue(out)
}

// Delete removes a record. A deleted program leaves its department's set.
func (s *gormStore) Delete(ctx context.Context, t entity.Type, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.load(tx, t, id)
		if err != nil {
			return err
		}
		if p, ok := m.(*model.Program); ok {
			if err := s.relinkProgram(tx, id, p.Department, ""); err != nil {
				return err
			}
		}
		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("failed to delete %s %s: %w", t, id, err)
		}
		return nil
	})
}

func (s *gormStore) load(tx *gorm.DB, t entity.Type, id string) (any, error) {
	m, err := model.New(t)
	if err != nil {
		return nil, err
	}
	if err := tx.First(m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Type: t, ID: id}
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", t, id, err)
	}
	return m, nil
}

func (s *gormStore) decode(t entity.Type, doc entity.Doc) (any, error) {
	if err := s.validator.Doc(t, doc); err != nil {
		return nil, err
	}
	m, err := model.New(t)
	if err != nil {
		return nil, err
	}
	if err := doc.Decode(m); err != nil {
		return nil, err
	}
	return m, nil
}

// checkParents verifies that every non-empty parent link present in doc
// points at an existing record.
func (s *gormStore) checkParents(tx *gorm.DB, t entity.Type, doc entity.Doc) error {
	for _, link := range entity.Links(t) {
		id, _ := doc[link.Key].(string)
		if id == "" {
			continue
		}
		parent, err := model.New(link.Parent)
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(parent).Where("id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check %s %s: %w", link.Parent, id, err)
		}
		if n == 0 {
			return validate.Field(t, link.Key, fmt.Sprintf("%s not found", link.Parent.Label()))
		}
	}
	return nil
}

// relinkProgram moves programID from one department's set to another's.
// Either side may be empty; a missing department is skipped.
func (s *gormStore) relinkProgram(tx *gorm.DB, programID, from, to string) error {
	update := func(deptID string, fn func([]string) []string) error {
		if deptID == "" {
			return nil
		}
		var dept model.Department
		if err := tx.First(&dept, "id = ?", deptID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load department %s: %w", deptID, err)
		}
		dept.Programs = fn(relation.DedupIDs([]string(dept.Programs)))
		if err := tx.Model(&dept).Update("programs", dept.Programs).Error; err != nil {
			return fmt.Errorf("failed to update programs of department %s: %w", deptID, err)
		}
		return nil
	}

	if err := update(from, func(ids []string) []string {
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != programID {
				kept = append(kept, id)
			}
		}
		return kept
	}); err != nil {
		return err
	}
	return update(to, func(ids []string) []string {
		return relation.DedupIDs(append(ids, programID))
	})
}

// conditions maps filter keys onto column names.
func (s *gormStore) conditions(t entity.Type, filters map[string]string) (map[string]any, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	cols, err := s.linkColumns(t)
	if err != nil {
		return nil, err
	}
	conds := make(map[string]any, len(filters))
	for k, v := range filters {
		col, ok := cols[k]
		if !ok {
			return nil, &FilterError{Type: t, Key: k}
		}
		conds[col] = v
	}
	return conds, nil
}

// linkColumns returns, for every parent link name and alias of t, the column
// that stores the link.
func (s *gormStore) linkColumns(t entity.Type) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cols, ok := s.columns[t]; ok {
		return cols, nil
	}

	m, err := model.New(t)
	if err != nil {
		return nil, err
	}
	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(m); err != nil {
		return nil, fmt.Errorf("failed to parse %s schema: %w", t, err)
	}
	byJSON := make(map[string]string, len(stmt.Schema.Fields))
	for _, f := range stmt.Schema.Fields {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name != "" && f.DBName != "" {
			byJSON[name] = f.DBName
		}
	}

	cols := make(map[string]string)
	for _, link := range entity.Links(t) {
		col, ok := byJSON[link.Key]
		if !ok {
			continue
		}
		for _, k := range link.Candidates {
			cols[k] = col
		}
	}
	s.columns[t] = cols
	return cols, nil
}

func withoutSystem(d entity.Doc) entity.Doc {
	out := d.Clone()
	if out == nil {
		out = entity.Doc{}
	}
	for _, k := range entity.SystemKeys() {
		delete(out, k)
	}
	return out
}

func toDocs(v any) ([]entity.Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	docs := []entity.Doc{}
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return docs, nil
}
