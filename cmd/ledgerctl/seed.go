package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerstate/ledgerstate/internal/exampleapp"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Bootstrap a space's decks and cards from a YAML seed file",
	Long: `seed parses a YAML document of decks and cards and issues one
CreateDeck and one CreateCard command per entry, in file order. It is
meant for bootstrapping a fresh space from a checked-in fixture, not for
repeated runs against the same space: a deck or card that already exists
is rejected rather than skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sf, err := exampleapp.LoadSeedFile(args[0])
		if err != nil {
			return fmt.Errorf("ledgerctl: %w", err)
		}

		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sf.Apply(ctx, sess.cs); err != nil {
			return fmt.Errorf("ledgerctl: %w", err)
		}

		if jsonOutput {
			fmt.Printf("{\"space\":%q,\"space_id\":%d,\"decks\":%d}\n", sess.space.Name, sess.space.ID, len(sf.Decks))
		} else {
			fmt.Printf("seeded space %q (id %d) with %d deck(s)\n", sess.space.Name, sess.space.ID, len(sf.Decks))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
