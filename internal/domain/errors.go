package domain

import "fmt"

// DuplicateContentError reports a content-hash collision on insert. The
// store never overwrites on collision; the caller decides what to do.
type DuplicateContentError struct {
	Entity string
	Hash   string
}

func (e *DuplicateContentError) Error() string {
	return fmt.Sprintf("duplicate %s content: hash %s already stored", e.Entity, e.Hash)
}

// ReferenceError reports an import record pointing at a model, note, deck
// or template that the parsed metadata does not contain.
type ReferenceError struct {
	Entity string
	ID     int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unresolved %s reference: id %d", e.Entity, e.ID)
}

// MalformedFieldError reports a note field value that is not a primitive.
type MalformedFieldError struct {
	Field string
	Value any
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("field %q: value of type %T is not a primitive", e.Field, e.Value)
}

// NotFoundError reports a failed lookup by id or unique name.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}
