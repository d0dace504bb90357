// Package ledgerstate provides the public API for the event-sourced,
// multi-tenant projection library: a space-partitioned event log, a
// pluggable storage adapter, a materialized projection with lazy Ref
// resolution, and a command pipeline binding the two together.
//
// Most callers only need the types and constructors exported here; the
// internal/ packages implement each module and can be read independently
// for detail.
package ledgerstate

import (
	"context"
	"log/slog"

	"github.com/ledgerstate/ledgerstate/internal/command"
	"github.com/ledgerstate/ledgerstate/internal/deferredwrite"
	"github.com/ledgerstate/ledgerstate/internal/eventlog"
	"github.com/ledgerstate/ledgerstate/internal/idgen"
	"github.com/ledgerstate/ledgerstate/internal/migration"
	"github.com/ledgerstate/ledgerstate/internal/pstate"
	"github.com/ledgerstate/ledgerstate/internal/ref"
	"github.com/ledgerstate/ledgerstate/internal/schema"
	"github.com/ledgerstate/ledgerstate/internal/space"
	"github.com/ledgerstate/ledgerstate/internal/storage"
	"github.com/ledgerstate/ledgerstate/internal/storage/memorykv"
	"github.com/ledgerstate/ledgerstate/internal/storage/sqlitekv"
)

// Core storage and tenancy types.
type (
	Adapter  = storage.Adapter
	KV       = storage.KV
	Space    = space.Space
	Metadata = space.Metadata
)

// Event log types.
type (
	Event         = eventlog.Event
	SpaceChecker  = eventlog.SpaceChecker
	GlobalCounter = idgen.GlobalCounter
	EventLogOpt   = eventlog.Option
)

// WithEventLogLogger attaches a logger to an Event Log, used for best-
// effort failures (e.g. the cross-space entity index) that don't abort
// the Append call that triggered them.
func WithEventLogLogger(logger *slog.Logger) EventLogOpt { return eventlog.WithLogger(logger) }

// NewGlobalCounter creates a counter whose first Next() call returns start+1.
func NewGlobalCounter(start int64) *GlobalCounter { return idgen.NewGlobalCounter(start) }

// Ref is an opaque reference to another entity's projection key.
type Ref = ref.Ref

// Schema/migration types.
type (
	Schema        = schema.Schema
	SchemaBuilder = schema.Builder
	SchemaField   = schema.Field
	FieldType     = schema.Type
	MigrateFunc   = schema.MigrateFunc
	ValidateFunc  = schema.ValidateFunc
)

// Field type constants, re-exported for schema.Builder callers that don't
// want to import internal/schema directly.
const (
	TypeString     = schema.String
	TypeInteger    = schema.Integer
	TypeMap        = schema.Map
	TypeList       = schema.List
	TypeRef        = schema.Ref
	TypeCollection = schema.Collection
)

// PState is the materialized projection handle.
type (
	PState                = pstate.PState
	PStateOpt             = pstate.Option
	UpdateFunc            = pstate.UpdateFunc
	ResolutionCycleError  = pstate.ResolutionCycleError
	DeferredWritePipeline = deferredwrite.Pipeline
	DeferredWriteOptions  = deferredwrite.Options
)

// Command pipeline types.
type (
	ContentStore       = command.ContentStore
	CommandFunc        = command.Func
	Applicator         = command.Applicator
	EventOut           = command.EventOut
	EntityIDExtractor  = command.EntityIDExtractor
	Checkpoints        = command.Checkpoints
	RejectedError      = command.RejectedError
	AdapterCheckpoints = command.AdapterCheckpoints
)

// Sentinel errors and constructors re-exported for convenience.
var (
	ErrSpaceNotFound      = space.ErrNotFound
	ErrSpaceAlreadyExists = space.ErrAlreadyExists
	ErrResolutionCycle    = pstate.ErrResolutionCycle
	ErrCommandRejected    = command.ErrCommandRejected
	ErrNotFound           = storage.ErrNotFound

	Reject          = command.Reject
	NewSchema       = schema.New
	MigrateEntity   = migration.MigrateEntity
	NeedsMigration  = schema.NeedsMigration
	NewRef          = ref.Of
	NewAdapterCheck = command.NewAdapterCheckpoints
)

// ResolveInfinite requests unbounded-depth Ref resolution from GetResolved.
const ResolveInfinite = pstate.Infinite

// NewMemoryAdapter creates a non-durable, in-process storage adapter.
// Suitable for tests and short-lived tooling; nothing written to it
// survives process exit.
func NewMemoryAdapter() Adapter {
	return memorykv.New()
}

// OpenSQLiteAdapter opens (creating if absent) a durable, WAL-journaled
// sqlite-backed storage adapter at path.
func OpenSQLiteAdapter(ctx context.Context, path string) (Adapter, error) {
	return sqlitekv.Open(ctx, path)
}

// NewSpaceRegistry creates a Space Registry over adapter. highestKnownID
// should be 0 for a fresh adapter, or the highest space id previously
// assigned if resuming against one that already holds registry state.
func NewSpaceRegistry(adapter Adapter, highestKnownID int64) *space.Registry {
	return space.NewRegistry(adapter, highestKnownID)
}

// NewEventLog creates an Event Log over adapter, validating space ids
// against spaces and minting global event ids from counter.
func NewEventLog(adapter Adapter, spaces SpaceChecker, counter *GlobalCounter, opts ...EventLogOpt) *eventlog.Log {
	return eventlog.New(adapter, spaces, counter, opts...)
}

// NewDeferredWritePipeline creates a deferred write-back pipeline over
// adapter. Start must be called before values enqueued by a PState's
// migration path are actually written back.
func NewDeferredWritePipeline(adapter Adapter, opts DeferredWriteOptions) *DeferredWritePipeline {
	return deferredwrite.New(adapter, opts)
}

// NewPState creates a projection handle bound to one root key and space.
func NewPState(adapter Adapter, spaceID int64, rootKey string, opts ...PStateOpt) *PState {
	return pstate.New(adapter, spaceID, rootKey, opts...)
}

// WithSchema attaches a Schema to a PState, enabling read-time migration.
func WithSchema(s *Schema) PStateOpt { return pstate.WithSchema(s) }

// WithDeferredWrite attaches a deferred write-back pipeline to a PState,
// so migrated values are written back off the read path.
func WithDeferredWrite(pipe *DeferredWritePipeline) PStateOpt {
	return pstate.WithDeferredWrite(pipe)
}
