package domain

import "fmt"

// RefKind discriminates the variants of a Ref.
type RefKind int

const (
	RefByID RefKind = iota + 1
	RefByName
	RefByValue
)

// Ref identifies an entity by id, by unique name, or by an already-loaded
// value. Each entity type has a single resolver in the store that accepts
// a Ref, so callers never pass bare ints and strings around.
type Ref struct {
	Kind  RefKind
	ID    int64
	Name  string
	Value any
}

func ByID(id int64) Ref        { return Ref{Kind: RefByID, ID: id} }
func ByName(name string) Ref   { return Ref{Kind: RefByName, Name: name} }
func ByValue(entity any) Ref   { return Ref{Kind: RefByValue, Value: entity} }

// Key describes the ref for error messages.
func (r Ref) Key() string {
	switch r.Kind {
	case RefByID:
		return fmt.Sprintf("id=%d", r.ID)
	case RefByName:
		return fmt.Sprintf("name=%s", r.Name)
	case RefByValue:
		return fmt.Sprintf("value=%T", r.Value)
	}
	return "unset ref"
}
