package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campus-admin/internal/entity"
)

// Base carries the system fields shared by every entity.
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"_id"`
	Revision  int       `gorm:"column:revision;not null;default:0" json:"__v"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Meta exposes the system fields of any model embedding Base.
func (b *Base) Meta() *Base { return b }

// Record is implemented by every entity model.
type Record interface {
	Meta() *Base
}

// BeforeCreate assigns a random id when the caller did not supply one.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// All returns one zero value of every model, in migration order.
func All() []any {
	return []any{
		&University{},
		&College{},
		&Department{},
		&Program{},
		&Faculty{},
		&Student{},
	}
}

// New returns a pointer to a zero model for t.
func New(t entity.Type) (any, error) {
	switch t {
	case entity.University:
		return &University{}, nil
	case entity.College:
		return &College{}, nil
	case entity.Department:
		return &Department{}, nil
	case entity.Program:
		return &Program{}, nil
	case entity.Faculty:
		return &Faculty{}, nil
	case entity.Student:
		return &Student{}, nil
	}
	return nil, fmt.Errorf("no model for entity type %q", t)
}

// NewSlice returns a pointer to an empty slice of the model for t, suitable
// as a gorm Find destination.
func NewSlice(t entity.Type) (any, error) {
	switch t {
	case entity.University:
		return &[]University{}, nil
	case entity.College:
		return &[]College{}, nil
	case entity.Department:
		return &[]Department{}, nil
	case entity.Program:
		return &[]Program{}, nil
	case entity.Faculty:
		return &[]Faculty{}, nil
	case entity.Student:
		return &[]Student{}, nil
	}
	return nil, fmt.Errorf("no model for entity type %q", t)
}
