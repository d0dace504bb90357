package schema

import "github.com/ledgerstate/ledgerstate/internal/ref"

// NeedsMigration reports whether v's runtime shape diverges from field's
// declared type, meaning migrateFn (if any) should run. A nil migrate_fn
// or a nil value never triggers migration. Collection is a hint rather
// than a strict storage-shape assertion: its only recognized "already
// migrated" shape is a plain map (the canonical id-keyed collection
// representation); any other shape — a raw list of ids, say — needs
// migration whenever a migrate_fn is declared.
func NeedsMigration(v any, field Field) bool {
	if field.MigrateFn == nil {
		return false
	}
	if v == nil {
		return false
	}
	return !shapeMatches(v, field.Type)
}

func shapeMatches(v any, t Type) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Integer:
		switch v.(type) {
		case int, int32, int64, float64:
			return true
		default:
			return false
		}
	case List:
		_, ok := v.([]any)
		return ok
	case Ref:
		_, ok := v.(ref.Ref)
		return ok
	case Map:
		if _, isRef := v.(ref.Ref); isRef {
			return false
		}
		_, ok := v.(map[string]any)
		return ok
	case Collection:
		if _, isRef := v.(ref.Ref); isRef {
			return false
		}
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
