// Package schema declares, per entity type, the ordered set of fields a
// projected value is expected to have: a type tag, an optional reference
// target, and optional migration/validation functions. Schemas are built
// once via the fluent Builder and are immutable thereafter.
package schema

import "fmt"

// Type is a field's declared shape.
type Type string

const (
	String     Type = "string"
	Integer    Type = "integer"
	Map        Type = "map"
	List       Type = "list"
	Ref        Type = "ref"
	Collection Type = "collection"
)

// MigrateFunc rewrites a stored field value into its current shape.
type MigrateFunc func(value any) any

// ValidateFunc reports whether a field value is acceptable.
type ValidateFunc func(value any) bool

// Field is one declared attribute of an entity type.
type Field struct {
	Name       string
	Type       Type
	RefType    string
	MigrateFn  MigrateFunc
	ValidateFn ValidateFunc
}

// Entity is the ordered field list for one entity type.
type Entity struct {
	Type   string
	Fields []Field
}

// FieldByName returns the field declaration named name, if any.
func (e Entity) FieldByName(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Schema is an immutable entity_type -> Entity mapping.
type Schema struct {
	entities map[string]Entity
}

// Lookup returns the field declarations for entityType, if declared.
func (s *Schema) Lookup(entityType string) (Entity, bool) {
	if s == nil {
		return Entity{}, false
	}
	e, ok := s.entities[entityType]
	return e, ok
}

// Builder assembles a Schema declaratively, entity by entity, field by
// field, mirroring the corpus's preference for fluent configuration over
// raw struct literals for multi-option declarations.
type Builder struct {
	schema      *Schema
	order       []string
	current     string
	currentType string
}

// New starts an empty schema under construction.
func New() *Builder {
	return &Builder{schema: &Schema{entities: make(map[string]Entity)}}
}

// Entity opens (or reopens) the field list for entityType.
func (b *Builder) Entity(entityType string) *Builder {
	if _, ok := b.schema.entities[entityType]; !ok {
		b.schema.entities[entityType] = Entity{Type: entityType}
		b.order = append(b.order, entityType)
	}
	b.currentType = entityType
	b.current = ""
	return b
}

// Field declares a new field of the given type on the currently open
// entity, making it the target of subsequent RefType/Migrate/Validate
// calls.
func (b *Builder) Field(name string, t Type) *Builder {
	b.mustHaveEntity("Field")
	e := b.schema.entities[b.currentType]
	e.Fields = append(e.Fields, Field{Name: name, Type: t})
	b.schema.entities[b.currentType] = e
	b.current = name
	return b
}

// RefType sets the target entity type for the most recently declared
// ref/collection field.
func (b *Builder) RefType(refType string) *Builder {
	b.mustHaveField("RefType")
	b.mutateField(func(f *Field) { f.RefType = refType })
	return b
}

// Migrate attaches a migration function to the most recently declared
// field.
func (b *Builder) Migrate(fn MigrateFunc) *Builder {
	b.mustHaveField("Migrate")
	b.mutateField(func(f *Field) { f.MigrateFn = fn })
	return b
}

// Validate attaches a validation predicate to the most recently declared
// field.
func (b *Builder) Validate(fn ValidateFunc) *Builder {
	b.mustHaveField("Validate")
	b.mutateField(func(f *Field) { f.ValidateFn = fn })
	return b
}

func (b *Builder) mustHaveEntity(op string) {
	if b.currentType == "" {
		panic(fmt.Sprintf("schema: %s called before Entity", op))
	}
}

func (b *Builder) mustHaveField(op string) {
	b.mustHaveEntity(op)
	if b.current == "" {
		panic(fmt.Sprintf("schema: %s called before Field", op))
	}
}

func (b *Builder) mutateField(fn func(f *Field)) {
	e := b.schema.entities[b.currentType]
	for i := range e.Fields {
		if e.Fields[i].Name == b.current {
			fn(&e.Fields[i])
			break
		}
	}
	b.schema.entities[b.currentType] = e
}

// Build finalizes the schema. The Builder may continue to be used
// afterward; Build snapshots the current entity map into a fresh Schema.
func (b *Builder) Build() *Schema {
	out := &Schema{entities: make(map[string]Entity, len(b.schema.entities))}
	for _, t := range b.order {
		out.entities[t] = b.schema.entities[t]
	}
	return out
}
