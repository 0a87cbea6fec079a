// Package transport is the collaborator that moves entity documents between a
// screen and the backend.
package transport

import (
	"context"
	"fmt"

	"campus-admin/internal/entity"
)

// Scope narrows a list fetch, e.g. {"college": "C1"}.
type Scope map[string]string

// Transport performs the four entity operations against a backend.
type Transport interface {
	FetchList(ctx context.Context, t entity.Type, scope Scope) ([]entity.Doc, error)
	Create(ctx context.Context, t entity.Type, payload entity.Doc) (entity.Doc, error)
	Update(ctx context.Context, t entity.Type, id string, patch entity.Doc) (entity.Doc, error)
	Remove(ctx context.Context, t entity.Type, id string) error
}

// Error is a failed transport call. Message is the server-supplied
// explanation when there was one.
type Error struct {
	Op      string
	Type    entity.Type
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Type, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Type, msg)
}

// UserMessage returns the server explanation, or "" when none was given.
func (e *Error) UserMessage() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }
