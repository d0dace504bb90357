// Package deferredwrite implements the single-owner background write-back
// actor: migrated projection values are enqueued by readers and flushed to
// the storage adapter in batches, off the read path.
package deferredwrite

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// entry is one pending (space, key, value) write.
type entry struct {
	spaceID int64
	key     string
	value   []byte
}

// Options configures a Pipeline.
type Options struct {
	// BatchSize is the number of pending entries that triggers an
	// immediate flush. Zero means "use DefaultBatchSize".
	BatchSize int
	// FlushInterval is how often pending entries are flushed even if
	// BatchSize hasn't been reached. Zero means "use DefaultFlushInterval".
	FlushInterval time.Duration
	Logger        *slog.Logger
}

const (
	DefaultBatchSize     = 64
	DefaultFlushInterval = 2 * time.Second
)

// Pipeline batches Enqueue calls and commits them via adapter.MultiPut.
// Writes are best-effort: a failed flush is retried with backoff, and
// because the projection's value cache already holds the migrated value,
// correctness on read never depends on the flush succeeding.
type Pipeline struct {
	adapter       storage.Adapter
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	pending []entry
	started bool

	flushCh chan chan error
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// New creates a pipeline over adapter. The caller must call Start to begin
// the background actor and Stop to drain and shut it down.
func New(adapter storage.Adapter, opts Options) *Pipeline {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	interval := opts.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		adapter:       adapter,
		batchSize:     batchSize,
		flushInterval: interval,
		logger:        logger,
		flushCh:       make(chan chan error),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Enqueue schedules (spaceID, key) for write-back of value. Non-blocking.
func (p *Pipeline) Enqueue(spaceID int64, key string, value []byte) {
	p.mu.Lock()
	p.pending = append(p.pending, entry{spaceID: spaceID, key: key, value: value})
	full := len(p.pending) >= p.batchSize
	p.mu.Unlock()

	if full {
		go p.Flush(context.Background())
	}
}

// Start launches the background actor that flushes on the configured
// interval. Safe to call once; a second call is a no-op.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	started := p.started
	p.started = true
	p.mu.Unlock()
	if started {
		return
	}
	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.drain(context.Background())
				return
			case <-p.stopCh:
				p.drain(context.Background())
				return
			case <-ticker.C:
				if err := p.drain(ctx); err != nil {
					p.logger.Warn("deferredwrite: periodic flush failed", "error", err)
				}
			case reply := <-p.flushCh:
				reply <- p.drain(ctx)
			}
		}
	}()
}

// Flush forces an immediate drain of all pending entries and waits for it
// to complete.
func (p *Pipeline) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case p.flushCh <- reply:
		select {
		case err := <-reply:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-p.doneCh:
		// Actor already stopped; fall back to a synchronous drain so
		// Flush still behaves correctly after Stop.
		return p.drain(ctx)
	}
}

// Stop signals the background actor to drain pending entries and exit,
// and waits for it to finish. Safe to call multiple times.
func (p *Pipeline) Stop(ctx context.Context) {
	p.once.Do(func() { close(p.stopCh) })
	select {
	case <-p.doneCh:
	case <-ctx.Done():
	}
}

func (p *Pipeline) drain(ctx context.Context) error {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	bySpace := make(map[int64][]storage.KV)
	for _, e := range batch {
		bySpace[e.spaceID] = append(bySpace[e.spaceID], storage.KV{Key: e.key, Value: e.value})
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var firstErr error
	for spaceID, kvs := range bySpace {
		err := backoff.Retry(func() error {
			return p.adapter.MultiPut(ctx, spaceID, kvs)
		}, backoff.WithContext(bo, ctx))
		if err != nil && firstErr == nil {
			firstErr = err
			p.logger.Warn("deferredwrite: flush failed, values remain correct on next read", "space_id", spaceID, "error", err)
		}
	}
	return firstErr
}
