package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ledgerstate/ledgerstate/internal/idgen"
	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// globalIndexSpaceID is the reserved adapter space used for the
// cross-space entity index (get_events looks entities up regardless of
// which tenant space they live in). It shares the reserved-space
// convention with internal/space's registry, using a disjoint key prefix
// ("entity_global:") so the two never collide.
const globalIndexSpaceID int64 = 0

var (
	// ErrSpaceNotFound is returned by Append when the space is unknown.
	ErrSpaceNotFound = errors.New("eventlog: space not found")
	// ErrEventNotFound is returned by GetEvent for an unknown event id.
	ErrEventNotFound = errors.New("eventlog: event not found")
	// ErrCorruption is raised when an on-disk invariant is violated on read.
	ErrCorruption = errors.New("eventlog: corruption detected")
)

// SpaceChecker reports whether a space id is currently registered. Satisfied
// by *internal/space.Registry.
type SpaceChecker interface {
	Exists(ctx context.Context, spaceID int64) (bool, error)
}

// Log is the append-only, space-partitioned event store.
type Log struct {
	adapter storage.Adapter
	spaces  SpaceChecker
	counter *idgen.GlobalCounter
	logger  *slog.Logger

	mu         sync.Mutex // guards spaceLocks map itself
	spaceLocks map[int64]*sync.Mutex

	now func() time.Time
}

// Option configures a Log constructed by New.
type Option func(*Log)

// WithLogger attaches logger to a Log, used for best-effort failures that
// don't abort the operation that triggered them (e.g. the cross-space
// entity index in Append). Defaults to slog.Default() when not set.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates an event log over adapter, validating space existence via
// spaces and minting global event ids from counter.
func New(adapter storage.Adapter, spaces SpaceChecker, counter *idgen.GlobalCounter, opts ...Option) *Log {
	l := &Log{
		adapter:    adapter,
		spaces:     spaces,
		counter:    counter,
		logger:     slog.Default(),
		spaceLocks: make(map[int64]*sync.Mutex),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Log) lockFor(spaceID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.spaceLocks[spaceID]
	if !ok {
		m = &sync.Mutex{}
		l.spaceLocks[spaceID] = m
	}
	return m
}

func eventKey(eventID int64) string       { return "event:" + strconv.FormatInt(eventID, 10) }
func seqKey(seq int64) string             { return "seq:" + strconv.FormatInt(seq, 10) }
func entityKey(entityID string, seq int64) string {
	return "entity:" + entityID + ":" + strconv.FormatInt(seq, 10)
}
func globalEntityKey(entityID string, eventID int64) string {
	return "entity_global:" + entityID + ":" + strconv.FormatInt(eventID, 10)
}

const hwmKey = "hwm"

// Append acquires the next global event id and the next space_sequence for
// spaceID atomically, guarded by a per-space lock, stamps the timestamp, and
// writes the event record plus both indices and the high-water mark in a
// single multi_put.
func (l *Log) Append(ctx context.Context, spaceID int64, entityID, eventType string, payload any) (Event, error) {
	if l.spaces != nil {
		ok, err := l.spaces.Exists(ctx, spaceID)
		if err != nil {
			return Event{}, fmt.Errorf("eventlog: checking space: %w", err)
		}
		if !ok {
			return Event{}, fmt.Errorf("%d: %w", spaceID, ErrSpaceNotFound)
		}
	}

	lock := l.lockFor(spaceID)
	lock.Lock()
	defer lock.Unlock()

	currentSeq, err := l.latestSequenceLocked(ctx, spaceID)
	if err != nil {
		return Event{}, err
	}
	nextSeq := currentSeq + 1
	eventID := l.counter.Next()

	ev := Event{
		EventID:       eventID,
		SpaceID:       spaceID,
		SpaceSequence: nextSeq,
		EntityID:      entityID,
		EventType:     eventType,
		Timestamp:     l.now().UTC(),
		Payload:       payload,
	}

	data, err := ev.marshal()
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: marshal event: %w", err)
	}
	eventIDStr := strconv.FormatInt(eventID, 10)

	if err := l.adapter.MultiPut(ctx, spaceID, []storage.KV{
		{Key: eventKey(eventID), Value: data},
		{Key: entityKey(entityID, nextSeq), Value: []byte(eventIDStr)},
		{Key: seqKey(nextSeq), Value: []byte(eventIDStr)},
		{Key: hwmKey, Value: []byte(strconv.FormatInt(nextSeq, 10))},
	}); err != nil {
		return Event{}, fmt.Errorf("eventlog: append: %w", err)
	}

	if err := l.adapter.Put(ctx, globalIndexSpaceID, globalEntityKey(entityID, eventID), []byte(fmt.Sprintf("%d:%d", spaceID, nextSeq))); err != nil {
		// Best-effort: the per-space indices are the source of truth; the
		// cross-space entity lookup degrading does not corrupt the log. Log
		// it rather than only returning it, since some callers only check
		// the Event and not the error on an otherwise-successful Append.
		l.logger.Warn("eventlog: cross-space index write failed", "space_id", spaceID, "event_id", eventID, "error", err)
		return ev, fmt.Errorf("eventlog: append (cross-space index): %w", err)
	}

	return ev, nil
}

// GetEvent looks up a single event by its global id.
func (l *Log) GetEvent(ctx context.Context, spaceID, eventID int64) (Event, error) {
	raw, ok, err := l.adapter.Get(ctx, spaceID, eventKey(eventID))
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: get event: %w", err)
	}
	if !ok {
		return Event{}, fmt.Errorf("%d: %w", eventID, ErrEventNotFound)
	}
	ev, err := unmarshalEvent(raw)
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: decode event %d: %w", eventID, err)
	}
	return ev, nil
}

// GetEvents returns every event for entityID across all spaces, ordered by
// event_id.
func (l *Log) GetEvents(ctx context.Context, entityID string) ([]Event, error) {
	kvs, err := l.adapter.Scan(ctx, globalIndexSpaceID, "entity_global:"+entityID+":")
	if err != nil {
		return nil, fmt.Errorf("eventlog: get_events scan: %w", err)
	}

	events := make([]Event, 0, len(kvs))
	for _, kv := range kvs {
		spaceID, _, err := parseSpaceSeq(string(kv.Value))
		if err != nil {
			return nil, fmt.Errorf("eventlog: %w: malformed global index entry for %q", ErrCorruption, kv.Key)
		}
		eventID, err := parseEventIDFromGlobalKey(kv.Key, entityID)
		if err != nil {
			return nil, fmt.Errorf("eventlog: %w: malformed global index key %q", ErrCorruption, kv.Key)
		}
		ev, err := l.GetEvent(ctx, spaceID, eventID)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].EventID < events[j].EventID })
	return events, nil
}

func parseSpaceSeq(v string) (spaceID, seq int64, err error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected space:seq, got %q", v)
	}
	spaceID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	seq, err = strconv.ParseInt(parts[1], 10, 64)
	return spaceID, seq, err
}

func parseEventIDFromGlobalKey(key, entityID string) (int64, error) {
	prefix := "entity_global:" + entityID + ":"
	if !strings.HasPrefix(key, prefix) {
		return 0, fmt.Errorf("key %q missing prefix %q", key, prefix)
	}
	return strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
}

// GetSpaceLatestSequence returns the space's high-water mark, 0 for an
// empty (or unknown) space.
func (l *Log) GetSpaceLatestSequence(ctx context.Context, spaceID int64) (int64, error) {
	lock := l.lockFor(spaceID)
	lock.Lock()
	defer lock.Unlock()
	return l.latestSequenceLocked(ctx, spaceID)
}

func (l *Log) latestSequenceLocked(ctx context.Context, spaceID int64) (int64, error) {
	raw, ok, err := l.adapter.Get(ctx, spaceID, hwmKey)
	if err != nil {
		return 0, fmt.Errorf("eventlog: read hwm: %w", err)
	}
	if !ok {
		return 0, nil
	}
	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("eventlog: %w: malformed hwm for space %d", ErrCorruption, spaceID)
	}
	return seq, nil
}

// StreamSpaceEvents returns every event for spaceID with space_sequence >
// fromSequence, in space_sequence order. Restartable from any sequence;
// used by rebuild and catch-up. An event counts as published only once its
// sequence-index entry exists, so a missing entry for a sequence number in
// (fromSequence, hwm] means the index itself is no longer dense and is
// surfaced as ErrCorruption rather than silently skipped.
func (l *Log) StreamSpaceEvents(ctx context.Context, spaceID int64, fromSequence int64) ([]Event, error) {
	hwm, err := l.GetSpaceLatestSequence(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if fromSequence >= hwm {
		return nil, nil
	}

	events := make([]Event, 0, hwm-fromSequence)
	for seq := fromSequence + 1; seq <= hwm; seq++ {
		raw, ok, err := l.adapter.Get(ctx, spaceID, seqKey(seq))
		if err != nil {
			return nil, fmt.Errorf("eventlog: stream: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("eventlog: %w: missing sequence index entry %d in space %d", ErrCorruption, seq, spaceID)
		}
		eventID, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("eventlog: %w: malformed sequence index entry %d", ErrCorruption, seq)
		}
		ev, err := l.GetEvent(ctx, spaceID, eventID)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
