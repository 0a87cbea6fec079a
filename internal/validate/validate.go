// Package validate checks entity payloads locally before any request is sent.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"campus-admin/internal/entity"
	"campus-admin/internal/model"
	"campus-admin/internal/relation"
)

// Error reports field-level validation failures keyed by wire field name.
type Error struct {
	Type   entity.Type
	Fields map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", strings.ToLower(e.Type.Label()), strings.Join(e.messages(), "; "))
}

// UserMessage is the first failure in field order, suitable for display.
func (e *Error) UserMessage() string {
	msgs := e.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[0]
}

func (e *Error) messages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = e.Fields[k]
	}
	return out
}

// Field builds an Error for a single field.
func Field(t entity.Type, field, msg string) *Error {
	return &Error{Type: t, Fields: map[string]string{field: msg}}
}

// Validator wraps the go-playground validator.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator that reports json field names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates a typed model.
func (v *Validator) Struct(t entity.Type, s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %s: %w", t, err)
	}
	return &Error{Type: t, Fields: FormatValidationErrors(verrs)}
}

// Doc validates a schema-tolerant document as the typed model for t. Parent
// references are normalized first so populated objects and alias keys pass.
func (v *Validator) Doc(t entity.Type, doc entity.Doc) error {
	m, err := model.New(t)
	if err != nil {
		return err
	}
	clean := relation.Canonical(t, doc)
	delete(clean, entity.KeyCreatedAt)
	delete(clean, entity.KeyUpdatedAt)
	if err := clean.Decode(m); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Field(t, typeErr.Field, fmt.Sprintf("%s must be %s", typeErr.Field, kindName(typeErr.Type)))
		}
		return fmt.Errorf("decode %s: %w", t, err)
	}
	return v.Struct(t, m)
}

// FormatValidationErrors converts validator errors into field messages.
func FormatValidationErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "url":
			out[field] = fmt.Sprintf("%s must be a valid URL", field)
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(e.Param(), " ", ", "))
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		case "gte":
			out[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, e.Param())
		case "lte":
			out[field] = fmt.Sprintf("%s must be less than or equal to %s", field, e.Param())
		case "gtefield":
			out[field] = fmt.Sprintf("%s must not be earlier than %s", field, e.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "a whole number"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "text"
	case reflect.Slice, reflect.Array:
		return "a list"
	case reflect.Struct, reflect.Map:
		return "an object"
	}
	return "a " + t.Kind().String()
}
