package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// reservedKeyPrefixes are the event log's and checkpoint store's own
// bookkeeping keys, which share the projection's key space and must be
// excluded from a projection dump.
var reservedKeyPrefixes = []string{"event:", "seq:", "entity:", "entity_global:", "checkpoint:"}

func isReservedKey(key string) bool {
	if key == "hwm" {
		return true
	}
	for _, prefix := range reservedKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

var dumpSpaceCmd = &cobra.Command{
	Use:   "dump-space",
	Short: "Print every materialized entity in a space's projection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		kvs, err := sess.store.Scan(ctx, sess.space.ID, "")
		if err != nil {
			return fmt.Errorf("ledgerctl: scan space %d: %w", sess.space.ID, err)
		}

		entries := make(map[string]json.RawMessage)
		for _, kv := range kvs {
			if isReservedKey(kv.Key) {
				continue
			}
			entries[kv.Key] = json.RawMessage(kv.Value)
		}

		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if jsonOutput {
			ordered := make([]struct {
				Key   string          `json:"key"`
				Value json.RawMessage `json:"value"`
			}, len(keys))
			for i, k := range keys {
				ordered[i].Key = k
				ordered[i].Value = entries[k]
			}
			out, err := json.Marshal(ordered)
			if err != nil {
				return fmt.Errorf("ledgerctl: encode dump: %w", err)
			}
			fmt.Println(string(out))
			return nil
		}

		for _, k := range keys {
			fmt.Printf("%s\t%s\n", k, entries[k])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpSpaceCmd)
}
