package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledgerstate/ledgerstate/internal/command"
	"github.com/ledgerstate/ledgerstate/internal/exampleapp"
	"github.com/ledgerstate/ledgerstate/internal/idgen"
	"github.com/ledgerstate/ledgerstate/internal/pstate"
	"github.com/ledgerstate/ledgerstate/internal/space"
	"github.com/ledgerstate/ledgerstate/internal/storage"
	"github.com/ledgerstate/ledgerstate/internal/storage/sqlitekv"
)

// session bundles an open store and the space + ContentStore ledgerctl is
// about to operate on, so each subcommand only has to call openSession.
type session struct {
	store *sqlitekv.Store
	app   *exampleapp.App
	space space.Space
	cs    *command.ContentStore
}

func openSession(ctx context.Context) (*session, error) {
	store, err := sqlitekv.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("ledgerctl: open %s: %w", dbPath, err)
	}

	maxSpaceID, maxEventID, err := recoverHighWater(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	app := exampleapp.NewApp(store, maxSpaceID, idgen.NewGlobalCounter(maxEventID))
	sp, err := app.Registry.GetOrCreate(ctx, spaceName, nil)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ledgerctl: resolve space %q: %w", spaceName, err)
	}

	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))
	return &session{store: store, app: app, space: sp, cs: cs}, nil
}

func (s *session) Close() error { return s.store.Close() }

// recoverHighWater scans the adapter for the largest previously assigned
// space id and global event id, so a fresh process resuming against an
// existing database doesn't mint colliding ids. This is CLI-only plumbing:
// a long-lived server process would instead keep these counters in memory
// across the whole process lifetime.
func recoverHighWater(ctx context.Context, adapter storage.Adapter) (maxSpaceID, maxEventID int64, err error) {
	registry := space.NewRegistry(adapter, 0)
	spaces, err := registry.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("ledgerctl: list spaces: %w", err)
	}
	for _, sp := range spaces {
		if sp.ID > maxSpaceID {
			maxSpaceID = sp.ID
		}
		kvs, err := adapter.Scan(ctx, sp.ID, "event:")
		if err != nil {
			return 0, 0, fmt.Errorf("ledgerctl: scan events for space %d: %w", sp.ID, err)
		}
		for _, kv := range kvs {
			idStr := strings.TrimPrefix(kv.Key, "event:")
			id, convErr := strconv.ParseInt(idStr, 10, 64)
			if convErr != nil {
				continue
			}
			if id > maxEventID {
				maxEventID = id
			}
		}
	}
	return maxSpaceID, maxEventID, nil
}
