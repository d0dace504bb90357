// Package space implements the space registry: named tenants with numeric
// ids, metadata, and cascading deletion.
package space

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ledgerstate/ledgerstate/internal/idgen"
	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// registrySpaceID is the reserved space id the registry uses to store its
// own bookkeeping entries in the shared adapter. Real tenant spaces start
// at 1: the Registry assigns ids by incrementing its nextID counter.
const registrySpaceID int64 = 0

var (
	// ErrNotFound is returned when a space name or id is unknown.
	ErrNotFound = errors.New("space: not found")
	// ErrAlreadyExists is returned by Create when the name is already registered.
	ErrAlreadyExists = errors.New("space: already exists")
)

// Metadata is an arbitrary application-defined attribute bag.
type Metadata map[string]any

// Space is the registry's record for one tenant.
type Space struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry stores space_name -> space_id and space_id -> record using the
// shared storage adapter, under the reserved registry space id.
type Registry struct {
	adapter storage.Adapter
	mu      sync.Mutex
	nextID  int64
}

// NewRegistry creates a registry backed by adapter. highestKnownID should be
// 0 for a fresh adapter, or the highest space id previously assigned if
// resuming against an adapter that already holds registry state.
func NewRegistry(adapter storage.Adapter, highestKnownID int64) *Registry {
	return &Registry{adapter: adapter, nextID: highestKnownID}
}

func nameKey(name string) string { return "space:" + name }
func idKey(id int64) string      { return "space_id:" + fmt.Sprint(id) }

// withCorrelationID returns metadata with a "correlation_id" entry added
// when the caller didn't already supply one, so every space can be traced
// back to the request or operation that created it even when the caller
// passes nil metadata.
func withCorrelationID(metadata Metadata) Metadata {
	if metadata == nil {
		metadata = Metadata{}
	}
	if _, ok := metadata["correlation_id"]; !ok {
		metadata["correlation_id"] = idgen.NewCorrelationID()
	}
	return metadata
}

// GetOrCreate is idempotent: if name is already registered, the existing
// record is returned unchanged — metadata is never overwritten on repeat
// calls, so this call is safe to retry.
func (r *Registry) GetOrCreate(ctx context.Context, name string, metadata Metadata) (Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok, err := r.lookupByName(ctx, name); err != nil {
		return Space{}, err
	} else if ok {
		return existing, nil
	}

	r.nextID++
	sp := Space{
		ID:        r.nextID,
		Name:      name,
		Metadata:  withCorrelationID(metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.persist(ctx, sp); err != nil {
		r.nextID--
		return Space{}, err
	}
	return sp, nil
}

// Create registers a brand new space and fails if the name already exists.
func (r *Registry) Create(ctx context.Context, name string, metadata Metadata) (Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok, err := r.lookupByName(ctx, name); err != nil {
		return Space{}, err
	} else if ok {
		return Space{}, fmt.Errorf("%s: %w", name, ErrAlreadyExists)
	}

	r.nextID++
	sp := Space{
		ID:        r.nextID,
		Name:      name,
		Metadata:  withCorrelationID(metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.persist(ctx, sp); err != nil {
		r.nextID--
		return Space{}, err
	}
	return sp, nil
}

func (r *Registry) persist(ctx context.Context, sp Space) error {
	payload, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("space: marshal: %w", err)
	}
	pairs := []storage.KV{
		{Key: idKey(sp.ID), Value: payload},
		{Key: nameKey(sp.Name), Value: []byte(fmt.Sprint(sp.ID))},
	}
	if err := r.adapter.MultiPut(ctx, registrySpaceID, pairs); err != nil {
		return fmt.Errorf("space: persist: %w", err)
	}
	return nil
}

func (r *Registry) lookupByName(ctx context.Context, name string) (Space, bool, error) {
	raw, ok, err := r.adapter.Get(ctx, registrySpaceID, nameKey(name))
	if err != nil {
		return Space{}, false, fmt.Errorf("space: lookup by name: %w", err)
	}
	if !ok {
		return Space{}, false, nil
	}
	var id int64
	if _, err := fmt.Sscanf(string(raw), "%d", &id); err != nil {
		return Space{}, false, fmt.Errorf("space: corrupt name index for %q: %w", name, err)
	}
	return r.lookupByID(ctx, id)
}

func (r *Registry) lookupByID(ctx context.Context, id int64) (Space, bool, error) {
	raw, ok, err := r.adapter.Get(ctx, registrySpaceID, idKey(id))
	if err != nil {
		return Space{}, false, fmt.Errorf("space: lookup by id: %w", err)
	}
	if !ok {
		return Space{}, false, nil
	}
	var sp Space
	if err := json.Unmarshal(raw, &sp); err != nil {
		return Space{}, false, fmt.Errorf("space: decode record %d: %w", id, err)
	}
	return sp, true, nil
}

// Find looks up a space by name.
func (r *Registry) Find(ctx context.Context, name string) (Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok, err := r.lookupByName(ctx, name)
	if err != nil {
		return Space{}, err
	}
	if !ok {
		return Space{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return sp, nil
}

// Exists reports whether spaceID is currently registered. Used by the event
// log to reject appends against unknown spaces.
func (r *Registry) Exists(ctx context.Context, spaceID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok, err := r.lookupByID(ctx, spaceID)
	return ok, err
}

// FindByID looks up a space by numeric id.
func (r *Registry) FindByID(ctx context.Context, id int64) (Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok, err := r.lookupByID(ctx, id)
	if err != nil {
		return Space{}, err
	}
	if !ok {
		return Space{}, fmt.Errorf("%d: %w", id, ErrNotFound)
	}
	return sp, nil
}

// List returns every registered space. Returns an empty slice, not an
// error, when no spaces exist.
func (r *Registry) List(ctx context.Context) ([]Space, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kvs, err := r.adapter.Scan(ctx, registrySpaceID, "space_id:")
	if err != nil {
		return nil, fmt.Errorf("space: list: %w", err)
	}
	out := make([]Space, 0, len(kvs))
	for _, kv := range kvs {
		var sp Space
		if err := json.Unmarshal(kv.Value, &sp); err != nil {
			return nil, fmt.Errorf("space: decode during list: %w", err)
		}
		out = append(out, sp)
	}
	return out, nil
}

// Delete removes the registry entry for id and cascades to every event-log
// and projection entry tagged with that space id in the shared adapter.
// After Delete, lookups for id return ErrNotFound and the space's sequence
// counters reset to zero from the caller's perspective (nothing left to
// read).
func (r *Registry) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok, err := r.lookupByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%d: %w", id, ErrNotFound)
	}

	if err := r.adapter.DeleteSpace(ctx, id); err != nil {
		return fmt.Errorf("space: cascade delete: %w", err)
	}
	// The event log's cross-space entity index lives in the reserved space;
	// its entries for this space hold "<space_id>:<space_sequence>".
	globals, err := r.adapter.Scan(ctx, registrySpaceID, "entity_global:")
	if err != nil {
		return fmt.Errorf("space: cascade delete: %w", err)
	}
	owner := fmt.Sprint(id) + ":"
	for _, kv := range globals {
		if strings.HasPrefix(string(kv.Value), owner) {
			if err := r.adapter.Delete(ctx, registrySpaceID, kv.Key); err != nil {
				return fmt.Errorf("space: cascade delete: %w", err)
			}
		}
	}
	if err := r.adapter.Delete(ctx, registrySpaceID, idKey(id)); err != nil {
		return fmt.Errorf("space: delete id entry: %w", err)
	}
	if err := r.adapter.Delete(ctx, registrySpaceID, nameKey(sp.Name)); err != nil {
		return fmt.Errorf("space: delete name entry: %w", err)
	}
	return nil
}
