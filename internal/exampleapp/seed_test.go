package exampleapp_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerstate/ledgerstate/internal/exampleapp"
	"github.com/ledgerstate/ledgerstate/internal/pstate"
)

const seedYAML = `
decks:
  - id: d1
    name: Spanish
    cards:
      - id: c1
        name: hola
      - id: c2
        name: adios
`

func TestLoadSeedFileParsesDecksAndCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	sf, err := exampleapp.LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, sf.Decks, 1)
	assert := require.New(t)
	assert.Equal("d1", sf.Decks[0].ID)
	assert.Len(sf.Decks[0].Cards, 2)
	assert.Equal("adios", sf.Decks[0].Cards[1].Name)
}

func TestSeedFileApplyPopulatesProjection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	sf, err := exampleapp.LoadSeedFile(path)
	require.NoError(t, err)

	app := newApp(t)
	sp, err := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	require.NoError(t, err)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	require.NoError(t, sf.Apply(ctx, cs))

	deck, ok, err := cs.PState.Fetch(ctx, "deck:d1")
	require.NoError(t, err)
	require.True(t, ok)
	cards := deck.(map[string]any)["cards"].(map[string]any)
	require.Contains(t, cards, "c1")
	require.Contains(t, cards, "c2")
}

func TestSeedFileApplyRejectsDuplicateDeck(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	sf, err := exampleapp.LoadSeedFile(path)
	require.NoError(t, err)

	app := newApp(t)
	sp, err := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	require.NoError(t, err)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	require.NoError(t, sf.Apply(ctx, cs))
	require.Error(t, sf.Apply(ctx, cs), "expected re-applying the same seed to fail on the duplicate deck")
}
