package exampleapp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerstate/ledgerstate/internal/command"
	"github.com/ledgerstate/ledgerstate/internal/deferredwrite"
	"github.com/ledgerstate/ledgerstate/internal/exampleapp"
	"github.com/ledgerstate/ledgerstate/internal/idgen"
	"github.com/ledgerstate/ledgerstate/internal/pstate"
	"github.com/ledgerstate/ledgerstate/internal/ref"
	"github.com/ledgerstate/ledgerstate/internal/storage/memorykv"
)

func newApp(t *testing.T) *exampleapp.App {
	t.Helper()
	return exampleapp.NewApp(memorykv.New(), 0, idgen.NewGlobalCounter(0))
}

func TestCreateCardAndDeckRoundTrips(t *testing.T) {
	ctx := context.Background()
	app := newApp(t)
	sp, err := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	require.NoError(t, err)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	_, err = cs.Execute(ctx, exampleapp.CreateDeck, exampleapp.CreateDeckParams{ID: "d1", Name: "Spanish"})
	require.NoError(t, err)
	_, err = cs.Execute(ctx, exampleapp.CreateCard, exampleapp.CreateCardParams{ID: "c1", Name: "hola", DeckID: "d1"})
	require.NoError(t, err)

	card, ok, err := cs.PState.Fetch(ctx, "card:c1")
	require.NoError(t, err)
	require.True(t, ok)
	m := card.(map[string]any)
	assert.Equal(t, "hola", m["name"])
	deckRef, ok := m["deck"].(ref.Ref)
	require.True(t, ok, "expected card.deck to be a ref, got %#v", m["deck"])
	assert.Equal(t, "deck:d1", deckRef.Key)

	deck, ok, err := cs.PState.Fetch(ctx, "deck:d1")
	require.NoError(t, err)
	require.True(t, ok)
	cards := deck.(map[string]any)["cards"].(map[string]any)
	assert.Contains(t, cards, "c1", "expected deck.cards to contain c1 back-reference")
}

func TestCreateCardMintsIDWhenBlank(t *testing.T) {
	ctx := context.Background()
	app := newApp(t)
	sp, err := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	require.NoError(t, err)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	events, err := cs.Execute(ctx, exampleapp.CreateCard, exampleapp.CreateCardParams{Name: "hola"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	payload := events[0].Payload.(map[string]any)
	mintedID, _ := payload["id"].(string)
	assert.NotEmpty(t, mintedID, "expected a blank CreateCardParams.ID to be minted")

	_, ok, err := cs.PState.Fetch(ctx, "card:"+mintedID)
	require.NoError(t, err)
	assert.True(t, ok, "expected the minted id to be the key the card was stored under")
}

func TestCreateDeckMintsIDWhenBlank(t *testing.T) {
	ctx := context.Background()
	app := newApp(t)
	sp, err := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	require.NoError(t, err)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	events, err := cs.Execute(ctx, exampleapp.CreateDeck, exampleapp.CreateDeckParams{Name: "Spanish"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	payload := events[0].Payload.(map[string]any)
	mintedID, _ := payload["id"].(string)
	assert.NotEmpty(t, mintedID, "expected a blank CreateDeckParams.ID to be minted")

	_, ok, err := cs.PState.Fetch(ctx, "deck:"+mintedID)
	require.NoError(t, err)
	assert.True(t, ok, "expected the minted id to be the key the deck was stored under")
}

func TestCreateCardRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	app := newApp(t)
	sp, _ := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	_, err := cs.Execute(ctx, exampleapp.CreateCard, exampleapp.CreateCardParams{ID: "c1", Name: "one"})
	require.NoError(t, err)

	_, err = cs.Execute(ctx, exampleapp.CreateCard, exampleapp.CreateCardParams{ID: "c1", Name: "two"})
	var rejected *command.RejectedError
	require.True(t, errors.As(err, &rejected), "expected RejectedError, got %v", err)

	seq, err := cs.Log.GetSpaceLatestSequence(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq, "expected sequence unchanged after rejected command")
}

func TestCreateCardRejectsUnknownDeck(t *testing.T) {
	ctx := context.Background()
	app := newApp(t)
	sp, _ := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	_, err := cs.Execute(ctx, exampleapp.CreateCard, exampleapp.CreateCardParams{ID: "c1", Name: "x", DeckID: "missing"})
	var rejected *command.RejectedError
	assert.True(t, errors.As(err, &rejected), "expected RejectedError for missing deck, got %v", err)
}

func TestSpacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	app := newApp(t)
	spA, _ := app.Registry.GetOrCreate(ctx, "a", nil)
	spB, _ := app.Registry.GetOrCreate(ctx, "b", nil)
	csA := app.OpenStore(spA, pstate.WithSchema(exampleapp.Schema()))
	csB := app.OpenStore(spB, pstate.WithSchema(exampleapp.Schema()))

	_, err := csA.Execute(ctx, exampleapp.CreateCard, exampleapp.CreateCardParams{ID: "c1", Name: "only in A"})
	require.NoError(t, err)

	_, ok, err := csA.PState.Fetch(ctx, "card:c1")
	require.NoError(t, err)
	assert.True(t, ok, "expected card present in space A")

	_, ok, err = csB.PState.Fetch(ctx, "card:c1")
	require.NoError(t, err)
	assert.False(t, ok, "expected card absent in space B")
}

func TestRebuildPStateAfterManyCommandsMatchesProjection(t *testing.T) {
	ctx := context.Background()
	app := newApp(t)
	sp, _ := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	_, err := cs.Execute(ctx, exampleapp.CreateDeck, exampleapp.CreateDeckParams{ID: "d1", Name: "Spanish"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		_, err := cs.Execute(ctx, exampleapp.CreateCard, exampleapp.CreateCardParams{ID: id, Name: "word-" + id, DeckID: "d1"})
		require.NoError(t, err)
	}

	before, _, err := cs.PState.Fetch(ctx, "deck:d1")
	require.NoError(t, err)
	beforeCards := before.(map[string]any)["cards"].(map[string]any)

	require.NoError(t, cs.RebuildPState(ctx, 2, pstate.WithSchema(exampleapp.Schema())))

	after, ok, err := cs.PState.Fetch(ctx, "deck:d1")
	require.NoError(t, err)
	require.True(t, ok)
	afterCards := after.(map[string]any)["cards"].(map[string]any)
	assert.Len(t, afterCards, len(beforeCards), "rebuild should not change the number of back-referenced cards")
}

func TestGetResolvedExpandsCardDeckBackReferenceAsCycle(t *testing.T) {
	ctx := context.Background()
	app := newApp(t)
	sp, _ := app.Registry.GetOrCreate(ctx, "tenant-a", nil)
	cs := app.OpenStore(sp, pstate.WithSchema(exampleapp.Schema()))

	_, err := cs.Execute(ctx, exampleapp.CreateDeck, exampleapp.CreateDeckParams{ID: "d1", Name: "Spanish"})
	require.NoError(t, err)
	_, err = cs.Execute(ctx, exampleapp.CreateCard, exampleapp.CreateCardParams{ID: "c1", Name: "hola", DeckID: "d1"})
	require.NoError(t, err)

	resolved, ok, err := cs.PState.GetResolved(ctx, "card:c1", pstate.Infinite)
	require.NoError(t, err)
	require.True(t, ok, "expected card:c1 to resolve")

	m := resolved.(map[string]any)
	deck, ok := m["deck"].(map[string]any)
	require.True(t, ok, "expected card.deck to expand into the deck record, got %#v", m["deck"])

	// deck.cards["c1"] points back at the card that's still being walked
	// one level up; it is a back-edge and must be left as an unresolved Ref.
	cards := deck["cards"].(map[string]any)
	_, isRef := cards["c1"].(ref.Ref)
	assert.True(t, isRef, "expected deck.cards.c1 to remain an unresolved ref, got %#v", cards["c1"])
}

func TestGetResolvedSelfReferenceRaises(t *testing.T) {
	ctx := context.Background()
	adapter := memorykv.New()
	ps := pstate.New(adapter, 1, "root")
	require.NoError(t, ps.Put(ctx, "node:a", map[string]any{"next": ref.Of("node", "a")}))

	_, _, err := ps.GetResolved(ctx, "node:a", pstate.Infinite)
	var cycleErr *pstate.ResolutionCycleError
	assert.True(t, errors.As(err, &cycleErr), "expected ResolutionCycleError, got %v", err)
}

func TestMigrationUpgradesLegacyTranslationsListOnRead(t *testing.T) {
	ctx := context.Background()
	adapter := memorykv.New()
	pipe := deferredwrite.New(adapter, deferredwrite.Options{})
	pipe.Start(ctx)
	defer pipe.Stop(ctx)
	ps := pstate.New(adapter, 1, "root", pstate.WithSchema(exampleapp.Schema()), pstate.WithDeferredWrite(pipe))

	// Simulate a legacy-shaped card record written before the translations
	// field became a ref collection: a raw list of translation ids. It is
	// written through a separate schema-less handle, so ps's value cache
	// does not already hold it and ps.Fetch has to read it from the adapter.
	legacy := pstate.New(adapter, 1, "root")
	require.NoError(t, legacy.Put(ctx, "card:c1", map[string]any{
		"id":           "c1",
		"name":         "hola",
		"translations": []any{"t1", "t2"},
	}))

	v, ok, err := ps.Fetch(ctx, "card:c1")
	require.NoError(t, err)
	require.True(t, ok)

	translations, ok := v.(map[string]any)["translations"].(map[string]any)
	require.True(t, ok, "expected translations to be migrated into a map, got %#v", v.(map[string]any)["translations"])
	_, ok = translations["t1"].(ref.Ref)
	assert.True(t, ok, "expected migrated translations to hold refs, got %#v", translations)

	require.NoError(t, pipe.Flush(ctx))

	raw, present, err := adapter.Get(ctx, 1, "card:c1")
	require.NoError(t, err)
	require.True(t, present)
	assert.NotEmpty(t, raw, "expected flushed bytes to be non-empty")
}
