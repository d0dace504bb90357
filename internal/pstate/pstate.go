// Package pstate implements the materialized projection view: a cached,
// schema-aware read/write handle over the shared storage adapter, with
// lazy Ref resolution and read-time field migration.
package pstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ledgerstate/ledgerstate/internal/deferredwrite"
	"github.com/ledgerstate/ledgerstate/internal/migration"
	"github.com/ledgerstate/ledgerstate/internal/ref"
	"github.com/ledgerstate/ledgerstate/internal/schema"
	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// ErrAdapterFailure wraps unrecoverable adapter I/O errors.
var ErrAdapterFailure = errors.New("pstate: adapter failure")

// UpdateFunc is the user mutator passed to GetAndUpdate. present is false
// when the key had no prior value. Returning remove=true deletes the key
// instead of writing next.
type UpdateFunc func(current any, present bool) (next any, remove bool)

// PState is a handle bound to one root key, one space, and the shared
// adapter/cache/schema. Cheap to construct; safe for concurrent use by
// multiple goroutines operating on the same space.
type PState struct {
	rootKey  string
	spaceID  int64
	adapter  storage.Adapter
	schema   *schema.Schema
	deferred *deferredwrite.Pipeline

	mu         sync.RWMutex
	valueCache map[string]any
	refCache   map[string]any

	sf singleflight.Group
}

// Option configures a new PState.
type Option func(*PState)

// WithSchema attaches a schema for read-time migration.
func WithSchema(s *schema.Schema) Option {
	return func(p *PState) { p.schema = s }
}

// WithDeferredWrite attaches a pipeline that receives migrated values for
// background write-back.
func WithDeferredWrite(pipe *deferredwrite.Pipeline) Option {
	return func(p *PState) { p.deferred = pipe }
}

// New creates an empty-cache PState over adapter for spaceID, rooted at
// rootKey. rootKey is only recorded on the handle: GetResolved's cycle
// policy works from the key it is called with, not from rootKey.
func New(adapter storage.Adapter, spaceID int64, rootKey string, opts ...Option) *PState {
	p := &PState{
		rootKey:    rootKey,
		spaceID:    spaceID,
		adapter:    adapter,
		valueCache: make(map[string]any),
		refCache:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Adapter returns the underlying storage adapter, e.g. for constructing a
// fresh PState over the same backend during a rebuild.
func (p *PState) Adapter() storage.Adapter { return p.adapter }

func entityTypeFromKey(key string) string {
	t, _, _ := strings.Cut(key, ":")
	return t
}

// Fetch returns key's current value (value cache → adapter, with
// migration if a schema is attached → cache populate), or ok=false if
// absent.
func (p *PState) Fetch(ctx context.Context, key string) (any, bool, error) {
	p.mu.RLock()
	if v, ok := p.valueCache[key]; ok {
		p.mu.RUnlock()
		return v, true, nil
	}
	p.mu.RUnlock()

	v, err, _ := p.sf.Do(key, func() (any, error) {
		return p.fetchFromAdapter(ctx, key)
	})
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

func (p *PState) fetchFromAdapter(ctx context.Context, key string) (any, error) {
	p.mu.RLock()
	if v, ok := p.valueCache[key]; ok {
		p.mu.RUnlock()
		return v, nil
	}
	p.mu.RUnlock()

	raw, ok, err := p.adapter.Get(ctx, p.spaceID, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdapterFailure, err)
	}
	if !ok {
		return nil, nil
	}

	var wire any
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("pstate: decode %q: %w", key, err)
	}
	value := ref.Decode(wire)

	if entity, hasSchema := p.schema.Lookup(entityTypeFromKey(key)); hasSchema {
		migrated, changed := migration.MigrateEntity(value, entity.Fields)
		value = migrated
		if changed && p.deferred != nil {
			data, err := json.Marshal(ref.Encode(value))
			if err == nil {
				p.deferred.Enqueue(p.spaceID, key, data)
			}
		}
	}

	p.mu.Lock()
	p.valueCache[key] = value
	p.mu.Unlock()

	return value, nil
}

// Put writes value for key: encodes Refs, writes through the adapter,
// updates the value cache, and clears the ref-resolution cache in full.
func (p *PState) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(ref.Encode(value))
	if err != nil {
		return fmt.Errorf("pstate: encode %q: %w", key, err)
	}
	if err := p.adapter.Put(ctx, p.spaceID, key, data); err != nil {
		return fmt.Errorf("%w: %v", ErrAdapterFailure, err)
	}

	p.mu.Lock()
	p.valueCache[key] = value
	p.refCache = make(map[string]any)
	p.mu.Unlock()
	return nil
}

// Delete removes key via the adapter and invalidates both caches.
func (p *PState) Delete(ctx context.Context, key string) error {
	if err := p.adapter.Delete(ctx, p.spaceID, key); err != nil {
		return fmt.Errorf("%w: %v", ErrAdapterFailure, err)
	}

	p.mu.Lock()
	delete(p.valueCache, key)
	p.refCache = make(map[string]any)
	p.mu.Unlock()
	return nil
}

// GetAndUpdate reads key, applies fn, and writes (or deletes) the result,
// invalidating caches accordingly. Returns the value fn produced (nil if
// it signalled removal).
func (p *PState) GetAndUpdate(ctx context.Context, key string, fn UpdateFunc) (any, error) {
	current, present, err := p.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	next, remove := fn(current, present)
	if remove {
		if err := p.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := p.Put(ctx, key, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Preload bulk-materializes the entities referenced by fieldNames on the
// entity at key, using a single multi_get, to avoid N+1 access patterns
// when a caller is about to resolve several children.
func (p *PState) Preload(ctx context.Context, key string, fieldNames []string) error {
	value, ok, err := p.Fetch(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}

	var keys []string
	for _, field := range fieldNames {
		collectRefKeys(m[field], &keys)
	}
	if len(keys) == 0 {
		return nil
	}

	found, err := p.adapter.MultiGet(ctx, p.spaceID, keys)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAdapterFailure, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, raw := range found {
		var wire any
		if err := json.Unmarshal(raw, &wire); err != nil {
			continue
		}
		p.valueCache[k] = ref.Decode(wire)
	}
	return nil
}

func collectRefKeys(v any, out *[]string) {
	switch val := v.(type) {
	case ref.Ref:
		*out = append(*out, val.Key)
	case map[string]any:
		for _, inner := range val {
			collectRefKeys(inner, out)
		}
	case []any:
		for _, inner := range val {
			collectRefKeys(inner, out)
		}
	}
}
