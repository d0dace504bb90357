package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// AdapterCheckpoints persists each space's last-applied space_sequence
// with the projection adapter, under the "checkpoint:<space_id>" key.
type AdapterCheckpoints struct {
	adapter storage.Adapter
}

// NewAdapterCheckpoints creates a Checkpoints store backed by adapter.
func NewAdapterCheckpoints(adapter storage.Adapter) *AdapterCheckpoints {
	return &AdapterCheckpoints{adapter: adapter}
}

func checkpointKey(spaceID int64) string {
	return "checkpoint:" + strconv.FormatInt(spaceID, 10)
}

// Get returns the checkpointed sequence for spaceID, 0 if none recorded.
func (c *AdapterCheckpoints) Get(ctx context.Context, spaceID int64) (int64, error) {
	raw, ok, err := c.adapter.Get(ctx, spaceID, checkpointKey(spaceID))
	if err != nil {
		return 0, fmt.Errorf("command: checkpoint get: %w", err)
	}
	if !ok {
		return 0, nil
	}
	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("command: malformed checkpoint for space %d: %w", spaceID, err)
	}
	return seq, nil
}

// Set records sequence as the latest applied space_sequence for spaceID.
func (c *AdapterCheckpoints) Set(ctx context.Context, spaceID int64, sequence int64) error {
	if err := c.adapter.Put(ctx, spaceID, checkpointKey(spaceID), []byte(strconv.FormatInt(sequence, 10))); err != nil {
		return fmt.Errorf("command: checkpoint set: %w", err)
	}
	return nil
}
