// Package ref implements the first-class Ref value that lets projection
// entries and event payloads point at other entities by key.
package ref

import "strings"

// Ref is an opaque pointer to another projection entry. It carries no
// lifecycle of its own; it is pure reference.
type Ref struct {
	Key string
}

// New builds a Ref from a "<type>:<id>" key.
func New(key string) Ref {
	return Ref{Key: key}
}

// Of builds a Ref from an entity type and id.
func Of(entityType, id string) Ref {
	return Ref{Key: entityType + ":" + id}
}

// Type returns the "<type>" portion of the key, or "" if the key has no colon.
func (r Ref) Type() string {
	t, _, ok := strings.Cut(r.Key, ":")
	if !ok {
		return ""
	}
	return t
}

// ID returns the "<id>" portion of the key, or "" if the key has no colon.
func (r Ref) ID() string {
	_, id, ok := strings.Cut(r.Key, ":")
	if !ok {
		return ""
	}
	return id
}

func (r Ref) String() string {
	return r.Key
}

// IsZero reports whether r is the zero Ref.
func (r Ref) IsZero() bool {
	return r.Key == ""
}
