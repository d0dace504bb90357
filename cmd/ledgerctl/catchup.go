package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var catchupCmd = &cobra.Command{
	Use:   "catchup",
	Short: "Apply events since the space's last checkpoint",
	Long: `catchup streams events from the space's persisted checkpoint (or the
start of the log, if none) up to the current high-water mark and applies
them to the live projection, advancing the checkpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		from, err := sess.cs.Checkpoints.Get(ctx, sess.space.ID)
		if err != nil {
			return fmt.Errorf("ledgerctl: read checkpoint: %w", err)
		}

		applied, err := sess.cs.CatchupPState(ctx, from)
		if err != nil {
			return fmt.Errorf("ledgerctl: catchup: %w", err)
		}

		if jsonOutput {
			fmt.Printf("{\"space\":%q,\"space_id\":%d,\"from\":%d,\"applied\":%d}\n", sess.space.Name, sess.space.ID, from, applied)
		} else {
			fmt.Printf("applied %d event(s) to space %q (id %d) from checkpoint %d\n", applied, sess.space.Name, sess.space.ID, from)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catchupCmd)
}
