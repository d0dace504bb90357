// Package command implements the command-execute-apply pipeline
// (ContentStore): it binds one event log, one projection, and a caller
// supplied event applicator, and keeps the two consistent.
package command

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerstate/ledgerstate/internal/eventlog"
	"github.com/ledgerstate/ledgerstate/internal/pstate"
)

// ErrCommandRejected wraps an application-level validation failure
// returned by a command function. No events are appended and no
// projection change occurs when a command fails this way.
var ErrCommandRejected = errors.New("command: rejected")

// RejectedError carries the application-supplied reason for a
// CommandRejected failure.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return fmt.Sprintf("command: rejected: %s", e.Reason) }
func (e *RejectedError) Unwrap() error  { return ErrCommandRejected }

// Reject is the constructor command functions use to signal a rejected
// precondition.
func Reject(reason string) error {
	return &RejectedError{Reason: reason}
}

// EventOut is one (event_type, payload) pair a command function emits.
type EventOut struct {
	EventType string
	Payload   any
}

// Func is a pure command: it reads state through store and either returns
// the events to append, or an error (typically via Reject) that aborts
// the whole call with no side effect.
type Func func(ctx context.Context, store *pstate.PState, params any) ([]EventOut, error)

// Applicator mutates a projection in response to a single event. It must
// be deterministic given (pstate, event) and must silently ignore event
// types it does not recognize.
type Applicator func(ctx context.Context, store *pstate.PState, event eventlog.Event) error

// EntityIDExtractor derives the entity_id an event pertains to from its
// payload. Returning ok=false falls back to the store's root key.
type EntityIDExtractor func(payload any) (entityID string, ok bool)

// Checkpoints persists the per-space high-water mark a ContentStore has
// applied, so catch-up can resume without rescanning.
type Checkpoints interface {
	Get(ctx context.Context, spaceID int64) (int64, error)
	Set(ctx context.Context, spaceID int64, sequence int64) error
}

// ContentStore binds one event log, one projection, one applicator and
// entity-id extractor, scoped to a single space.
type ContentStore struct {
	Log         *eventlog.Log
	PState      *pstate.PState
	Applicator  Applicator
	Extractor   EntityIDExtractor
	Checkpoints Checkpoints
	SpaceID     int64
	RootKey     string
}

// Execute runs fn against the current projection; on success it appends
// every emitted event in order, applies each to the projection, and
// advances the checkpoint to the last applied space_sequence. If fn returns
// an error, nothing is appended and the projection is untouched. If
// appending or applying an event fails, Execute stops at that event and
// returns the events applied before it together with the error; events
// already appended stay in the log.
func (cs *ContentStore) Execute(ctx context.Context, fn Func, params any) ([]eventlog.Event, error) {
	outs, err := fn(ctx, cs.PState, params)
	if err != nil {
		return nil, err
	}

	applied := make([]eventlog.Event, 0, len(outs))
	var lastSeq int64
	for _, out := range outs {
		entityID, ok := cs.Extractor(out.Payload)
		if !ok {
			entityID = cs.RootKey
		}

		ev, err := cs.Log.Append(ctx, cs.SpaceID, entityID, out.EventType, out.Payload)
		if err != nil {
			return applied, fmt.Errorf("command: append: %w", err)
		}

		if err := cs.Applicator(ctx, cs.PState, ev); err != nil {
			return applied, fmt.Errorf("command: apply: %w", err)
		}
		applied = append(applied, ev)
		lastSeq = ev.SpaceSequence
	}

	if len(applied) > 0 && cs.Checkpoints != nil {
		if err := cs.Checkpoints.Set(ctx, cs.SpaceID, lastSeq); err != nil {
			return applied, fmt.Errorf("command: checkpoint: %w", err)
		}
	}
	return applied, nil
}

// RebuildPState replays every event in this space, in space_sequence
// order, against a fresh PState built with the same options as the
// current one, and installs the result as cs.PState. Other spaces are
// untouched.
//
// Applying one batch and fetching the next overlap: while the applicator
// folds batch N into fresh, an errgroup goroutine streams batch N+1 from
// the log concurrently. Application order is never affected by this —
// only the I/O for the *next* batch runs ahead of time.
func (cs *ContentStore) RebuildPState(ctx context.Context, batchSize int, opts ...pstate.Option) error {
	if batchSize <= 0 {
		batchSize = 256
	}

	fresh := pstate.New(cs.PState.Adapter(), cs.SpaceID, cs.RootKey, opts...)

	hwm, err := cs.Log.GetSpaceLatestSequence(ctx, cs.SpaceID)
	if err != nil {
		return fmt.Errorf("command: rebuild: %w", err)
	}

	fetchBatch := func(from int64) ([]eventlog.Event, error) {
		events, err := cs.Log.StreamSpaceEvents(ctx, cs.SpaceID, from)
		if err != nil {
			return nil, err
		}
		if len(events) > batchSize {
			events = events[:batchSize]
		}
		return events, nil
	}

	current, err := fetchBatch(0)
	if err != nil {
		return fmt.Errorf("command: rebuild: %w", err)
	}

	for len(current) > 0 {
		lastSeq := current[len(current)-1].SpaceSequence

		var next []eventlog.Event
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for _, ev := range current {
				if err := cs.Applicator(gctx, fresh, ev); err != nil {
					return fmt.Errorf("command: rebuild apply: %w", err)
				}
			}
			return nil
		})
		if lastSeq < hwm {
			g.Go(func() error {
				fetched, ferr := fetchBatch(lastSeq)
				if ferr != nil {
					return fmt.Errorf("command: rebuild: %w", ferr)
				}
				next = fetched
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		current = next
	}

	cs.PState = fresh
	return nil
}

// CatchupPState streams events from fromSequence+1 to the space's current
// high-water mark, applies them in order against the current PState, and
// returns the number applied.
func (cs *ContentStore) CatchupPState(ctx context.Context, fromSequence int64) (int, error) {
	events, err := cs.Log.StreamSpaceEvents(ctx, cs.SpaceID, fromSequence)
	if err != nil {
		return 0, fmt.Errorf("command: catchup: %w", err)
	}
	for _, ev := range events {
		if err := cs.Applicator(ctx, cs.PState, ev); err != nil {
			return 0, fmt.Errorf("command: catchup apply: %w", err)
		}
	}
	if len(events) > 0 && cs.Checkpoints != nil {
		if err := cs.Checkpoints.Set(ctx, cs.SpaceID, events[len(events)-1].SpaceSequence); err != nil {
			return len(events), fmt.Errorf("command: catchup checkpoint: %w", err)
		}
	}
	return len(events), nil
}
