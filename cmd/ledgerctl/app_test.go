package main

import (
	"context"
	"testing"

	"github.com/ledgerstate/ledgerstate/internal/eventlog"
	"github.com/ledgerstate/ledgerstate/internal/idgen"
	"github.com/ledgerstate/ledgerstate/internal/space"
	"github.com/ledgerstate/ledgerstate/internal/storage/memorykv"
)

func TestRecoverHighWaterFindsExistingMax(t *testing.T) {
	ctx := context.Background()
	adapter := memorykv.New()
	registry := space.NewRegistry(adapter, 0)
	sp1, err := registry.Create(ctx, "a", nil)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	sp2, err := registry.Create(ctx, "b", nil)
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	log := eventlog.New(adapter, registry, idgen.NewGlobalCounter(0))
	if _, err := log.Append(ctx, sp1.ID, "e1", "t", map[string]any{}); err != nil {
		t.Fatalf("append sp1: %v", err)
	}
	if _, err := log.Append(ctx, sp2.ID, "e2", "t", map[string]any{}); err != nil {
		t.Fatalf("append sp2: %v", err)
	}
	if _, err := log.Append(ctx, sp2.ID, "e3", "t", map[string]any{}); err != nil {
		t.Fatalf("append sp2 again: %v", err)
	}

	maxSpaceID, maxEventID, err := recoverHighWater(ctx, adapter)
	if err != nil {
		t.Fatalf("recoverHighWater: %v", err)
	}
	if maxSpaceID != sp2.ID {
		t.Fatalf("expected max space id %d, got %d", sp2.ID, maxSpaceID)
	}
	if maxEventID != 3 {
		t.Fatalf("expected max event id 3, got %d", maxEventID)
	}
}

func TestRecoverHighWaterEmptyAdapter(t *testing.T) {
	ctx := context.Background()
	maxSpaceID, maxEventID, err := recoverHighWater(ctx, memorykv.New())
	if err != nil {
		t.Fatalf("recoverHighWater: %v", err)
	}
	if maxSpaceID != 0 || maxEventID != 0 {
		t.Fatalf("expected zero watermarks on empty adapter, got %d/%d", maxSpaceID, maxEventID)
	}
}
