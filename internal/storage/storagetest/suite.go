// Package storagetest runs a shared conformance suite against any
// storage.Adapter implementation, so memorykv and sqlitekv are held to the
// same contract.
package storagetest

import (
	"context"
	"sort"
	"testing"

	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// Run exercises the full storage.Adapter contract against adapter.
func Run(t *testing.T, adapter storage.Adapter) {
	t.Helper()
	ctx := context.Background()

	t.Run("get absent returns false not error", func(t *testing.T) {
		_, ok, err := adapter.Get(ctx, 1, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatal("expected absent key to report ok=false")
		}
	})

	t.Run("put then get round trips", func(t *testing.T) {
		if err := adapter.Put(ctx, 1, "k1", []byte("v1")); err != nil {
			t.Fatalf("put: %v", err)
		}
		v, ok, err := adapter.Get(ctx, 1, "k1")
		if err != nil || !ok {
			t.Fatalf("get: ok=%v err=%v", ok, err)
		}
		if string(v) != "v1" {
			t.Fatalf("expected v1, got %q", v)
		}
	})

	t.Run("put overwrites", func(t *testing.T) {
		_ = adapter.Put(ctx, 1, "k1", []byte("v2"))
		v, _, _ := adapter.Get(ctx, 1, "k1")
		if string(v) != "v2" {
			t.Fatalf("expected v2, got %q", v)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := adapter.Delete(ctx, 1, "k1"); err != nil {
			t.Fatalf("first delete: %v", err)
		}
		if err := adapter.Delete(ctx, 1, "k1"); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		_, ok, _ := adapter.Get(ctx, 1, "k1")
		if ok {
			t.Fatal("expected key to be gone after delete")
		}
	})

	t.Run("scan returns only matching prefix in space", func(t *testing.T) {
		_ = adapter.Put(ctx, 2, "card:1", []byte("a"))
		_ = adapter.Put(ctx, 2, "card:2", []byte("b"))
		_ = adapter.Put(ctx, 2, "deck:1", []byte("c"))
		_ = adapter.Put(ctx, 3, "card:1", []byte("other-space"))

		got, err := adapter.Scan(ctx, 2, "card:")
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		keys := keysOf(got)
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "card:1" || keys[1] != "card:2" {
			t.Fatalf("unexpected scan result: %v", keys)
		}
	})

	t.Run("multi_get omits missing keys", func(t *testing.T) {
		got, err := adapter.MultiGet(ctx, 2, []string{"card:1", "card:2", "nope"})
		if err != nil {
			t.Fatalf("multi_get: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 present keys, got %d", len(got))
		}
	})

	t.Run("multi_put last write wins on duplicate keys", func(t *testing.T) {
		err := adapter.MultiPut(ctx, 4, []storage.KV{
			{Key: "x", Value: []byte("first")},
			{Key: "x", Value: []byte("second")},
		})
		if err != nil {
			t.Fatalf("multi_put: %v", err)
		}
		v, ok, _ := adapter.Get(ctx, 4, "x")
		if !ok || string(v) != "second" {
			t.Fatalf("expected second to win, got %q (ok=%v)", v, ok)
		}
	})

	t.Run("delete space clears only that space", func(t *testing.T) {
		_ = adapter.Put(ctx, 5, "a", []byte("1"))
		_ = adapter.Put(ctx, 6, "a", []byte("1"))

		if err := adapter.DeleteSpace(ctx, 5); err != nil {
			t.Fatalf("delete space: %v", err)
		}
		_, ok, _ := adapter.Get(ctx, 5, "a")
		if ok {
			t.Fatal("expected space 5 to be cleared")
		}
		_, ok, _ = adapter.Get(ctx, 6, "a")
		if !ok {
			t.Fatal("expected space 6 to be untouched")
		}
	})
}

func keysOf(kvs []storage.KV) []string {
	out := make([]string, len(kvs))
	for i, kv := range kvs {
		out[i] = kv.Key
	}
	return out
}
