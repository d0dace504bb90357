// Package migration applies schema-declared field migrations to a stored
// entity value, folding over its field list in declaration order.
package migration

import "github.com/ledgerstate/ledgerstate/internal/schema"

// MigrateEntity applies fields' migrate_fns to the applicable keys of
// value, returning the (possibly unchanged) result and whether anything
// changed. value is expected to be a map[string]any, the shape every
// entity record is stored as; any other shape is returned unchanged.
//
// Pure and idempotent when each field's MigrateFn is itself idempotent on
// its own output shape: running MigrateEntity on its own result always
// reports changed=false.
func MigrateEntity(value any, fields []schema.Field) (any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return value, false
	}

	changed := false
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	for _, f := range fields {
		current, present := out[f.Name]
		if !present {
			continue
		}
		if !schema.NeedsMigration(current, f) {
			continue
		}
		out[f.Name] = f.MigrateFn(current)
		changed = true
	}

	if !changed {
		return value, false
	}
	return out, true
}
