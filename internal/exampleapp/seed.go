package exampleapp

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ledgerstate/ledgerstate/internal/command"
)

// SeedDeck is one deck and its cards as they appear in a seed file: the
// YAML equivalent of a batch of CreateDeck/CreateCard commands, for
// bootstrapping a space from a checked-in fixture instead of one command
// at a time.
type SeedDeck struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Cards []SeedCard `yaml:"cards"`
}

// SeedCard is one card within a SeedDeck.
type SeedCard struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SeedFile is the top-level shape of a seed YAML document: a list of decks,
// each carrying its own cards.
type SeedFile struct {
	Decks []SeedDeck `yaml:"decks"`
}

// LoadSeedFile reads and parses a seed YAML document from path.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("exampleapp: read seed file: %w", err)
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("exampleapp: parse seed file: %w", err)
	}
	return &sf, nil
}

// Apply executes one CreateDeck and one CreateCard command per entry in sf
// against cs, in file order. A deck or card that already exists is
// rejected by the underlying command and reported as an error here rather
// than silently skipped, so re-seeding an already-seeded space is caught
// instead of masked.
func (sf *SeedFile) Apply(ctx context.Context, cs *command.ContentStore) error {
	for _, deck := range sf.Decks {
		if _, err := cs.Execute(ctx, CreateDeck, CreateDeckParams{ID: deck.ID, Name: deck.Name}); err != nil {
			return fmt.Errorf("exampleapp: seed deck %q: %w", deck.ID, err)
		}
		for _, card := range deck.Cards {
			params := CreateCardParams{ID: card.ID, Name: card.Name, DeckID: deck.ID}
			if _, err := cs.Execute(ctx, CreateCard, params); err != nil {
				return fmt.Errorf("exampleapp: seed card %q: %w", card.ID, err)
			}
		}
	}
	return nil
}
