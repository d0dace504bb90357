package migration

import (
	"reflect"
	"testing"

	"github.com/ledgerstate/ledgerstate/internal/ref"
	"github.com/ledgerstate/ledgerstate/internal/schema"
)

func translationsField() schema.Field {
	return schema.Field{
		Name:    "translations",
		Type:    schema.Collection,
		RefType: "trans",
		MigrateFn: func(v any) any {
			ids, ok := v.([]any)
			if !ok {
				return v
			}
			out := make(map[string]any, len(ids))
			for _, id := range ids {
				idStr, _ := id.(string)
				out[idStr] = ref.Of("trans", idStr)
			}
			return out
		},
	}
}

func TestMigrateEntityAppliesFieldMigration(t *testing.T) {
	fields := []schema.Field{translationsField()}
	value := map[string]any{
		"translations": []any{"t1", "t2"},
	}

	migrated, changed := MigrateEntity(value, fields)
	if !changed {
		t.Fatal("expected changed=true on first migration")
	}

	want := map[string]any{
		"t1": ref.Of("trans", "t1"),
		"t2": ref.Of("trans", "t2"),
	}
	got := migrated.(map[string]any)["translations"]
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected migrated translations: %#v", got)
	}
}

func TestMigrateEntityIsIdempotent(t *testing.T) {
	fields := []schema.Field{translationsField()}
	value := map[string]any{
		"translations": []any{"t1", "t2"},
	}

	once, changed := MigrateEntity(value, fields)
	if !changed {
		t.Fatal("expected first pass to change")
	}

	twice, changedAgain := MigrateEntity(once, fields)
	if changedAgain {
		t.Fatal("expected second pass to report no change")
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expected idempotent output, got %#v vs %#v", once, twice)
	}
}

func TestMigrateEntityIgnoresMissingFields(t *testing.T) {
	fields := []schema.Field{translationsField()}
	value := map[string]any{"other": 1}

	migrated, changed := MigrateEntity(value, fields)
	if changed {
		t.Fatal("expected no change when field is absent")
	}
	if !reflect.DeepEqual(migrated, value) {
		t.Fatalf("expected value unchanged, got %#v", migrated)
	}
}

func TestMigrateEntityNonMapValueIsUntouched(t *testing.T) {
	migrated, changed := MigrateEntity("a string", []schema.Field{translationsField()})
	if changed {
		t.Fatal("expected non-map value to never trigger migration")
	}
	if migrated != "a string" {
		t.Fatalf("expected value returned unchanged, got %#v", migrated)
	}
}

func TestMigrateEntityNullFieldNeverTriggers(t *testing.T) {
	fields := []schema.Field{translationsField()}
	value := map[string]any{"translations": nil}

	migrated, changed := MigrateEntity(value, fields)
	if changed {
		t.Fatal("expected nil field value to never trigger migration")
	}
	if migrated.(map[string]any)["translations"] != nil {
		t.Fatal("expected nil value preserved")
	}
}
