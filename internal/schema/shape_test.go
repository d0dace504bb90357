package schema

import (
	"testing"

	"github.com/ledgerstate/ledgerstate/internal/ref"
)

func TestNeedsMigrationNilMigrateFnNeverTriggers(t *testing.T) {
	f := Field{Name: "x", Type: String}
	if NeedsMigration("not a string in shape, but no migrate fn", f) {
		t.Fatal("expected no migration without a MigrateFn")
	}
}

func TestNeedsMigrationNullNeverTriggers(t *testing.T) {
	f := Field{Name: "x", Type: String, MigrateFn: func(v any) any { return v }}
	if NeedsMigration(nil, f) {
		t.Fatal("expected nil value to never trigger migration")
	}
}

func TestNeedsMigrationMatchingShapeIsFalse(t *testing.T) {
	f := Field{Name: "x", Type: String, MigrateFn: func(v any) any { return v }}
	if NeedsMigration("already a string", f) {
		t.Fatal("expected matching shape to skip migration")
	}
}

func TestNeedsMigrationMismatchedShapeIsTrue(t *testing.T) {
	f := Field{Name: "translations", Type: Collection, MigrateFn: func(v any) any { return v }}
	// A raw list is the legacy, pre-migration shape for a collection field.
	if !NeedsMigration([]any{"t1", "t2"}, f) {
		t.Fatal("expected a raw list against a collection field to need migration")
	}
	// The canonical post-migration shape (a plain map) needs no further migration.
	if NeedsMigration(map[string]any{"t1": "x"}, f) {
		t.Fatal("expected a map value to satisfy the collection shape check")
	}

	listField := Field{Name: "tags", Type: List, MigrateFn: func(v any) any { return v }}
	if !NeedsMigration("not-a-list", listField) {
		t.Fatal("expected string value against list field to need migration")
	}
}

func TestNeedsMigrationMapExcludesRef(t *testing.T) {
	f := Field{Name: "deck", Type: Map, MigrateFn: func(v any) any { return v }}
	if !NeedsMigration(ref.Of("deck", "d1"), f) {
		t.Fatal("expected a Ref value to fail the map shape check")
	}
	if NeedsMigration(map[string]any{"a": 1}, f) {
		t.Fatal("expected a plain map to satisfy the map shape check")
	}
}

func TestNeedsMigrationRefShape(t *testing.T) {
	f := Field{Name: "deck", Type: Ref, MigrateFn: func(v any) any { return v }}
	if NeedsMigration(ref.Of("deck", "d1"), f) {
		t.Fatal("expected a Ref value to satisfy the ref shape check")
	}
	if !NeedsMigration("deck:d1", f) {
		t.Fatal("expected a raw string to need migration against a ref field")
	}
}
