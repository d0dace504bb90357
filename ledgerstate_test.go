package ledgerstate

import (
	"context"
	"errors"
	"testing"
)

func TestFacadeEndToEnd(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()
	registry := NewSpaceRegistry(adapter, 0)
	log := NewEventLog(adapter, registry, NewGlobalCounter(0))

	sp, err := registry.GetOrCreate(ctx, "acme", nil)
	if err != nil {
		t.Fatalf("get_or_create: %v", err)
	}

	sc := NewSchema().
		Entity("widget").
		Field("name", TypeString).
		Build()

	ps := NewPState(adapter, sp.ID, "root", WithSchema(sc))

	createWidget := func(ctx context.Context, store *PState, params any) ([]EventOut, error) {
		name := params.(string)
		return []EventOut{{EventType: "widget.created", Payload: map[string]any{"id": "w1", "name": name}}}, nil
	}
	applicator := func(ctx context.Context, store *PState, ev Event) error {
		if ev.EventType != "widget.created" {
			return nil
		}
		payload := ev.Payload.(map[string]any)
		return store.Put(ctx, "widget:"+payload["id"].(string), payload)
	}
	extractor := func(payload any) (string, bool) {
		m, ok := payload.(map[string]any)
		if !ok {
			return "", false
		}
		id, ok := m["id"].(string)
		return id, ok
	}

	cs := &ContentStore{
		Log:         log,
		PState:      ps,
		Applicator:  applicator,
		Extractor:   extractor,
		Checkpoints: NewAdapterCheck(adapter),
		SpaceID:     sp.ID,
		RootKey:     "root",
	}

	if _, err := cs.Execute(ctx, createWidget, "gizmo"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	v, ok, err := ps.Fetch(ctx, "widget:w1")
	if err != nil || !ok {
		t.Fatalf("fetch: ok=%v err=%v", ok, err)
	}
	if v.(map[string]any)["name"] != "gizmo" {
		t.Fatalf("unexpected projected value: %#v", v)
	}

	// Rejected commands append nothing.
	reject := func(ctx context.Context, store *PState, params any) ([]EventOut, error) {
		return nil, Reject("nope")
	}
	_, err = cs.Execute(ctx, reject, nil)
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
}

func TestFacadeSelfReferenceRaisesResolutionCycle(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()
	ps := NewPState(adapter, 1, "root")

	if err := ps.Put(ctx, "node:a", map[string]any{"next": NewRef("node", "a")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, _, err := ps.GetResolved(ctx, "node:a", ResolveInfinite)
	var cycleErr *ResolutionCycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected ResolutionCycleError, got %v", err)
	}
}
