// Package exampleapp is a small flashcards domain — cards, decks and
// translations — used to exercise the storage adapter, event log, space
// registry, schema/migration engine, PState and command pipeline together
// end to end.
package exampleapp

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerstate/ledgerstate/internal/command"
	"github.com/ledgerstate/ledgerstate/internal/eventlog"
	"github.com/ledgerstate/ledgerstate/internal/idgen"
	"github.com/ledgerstate/ledgerstate/internal/pstate"
	"github.com/ledgerstate/ledgerstate/internal/ref"
	"github.com/ledgerstate/ledgerstate/internal/schema"
	"github.com/ledgerstate/ledgerstate/internal/space"
	"github.com/ledgerstate/ledgerstate/internal/storage"
)

// mintID generates a short hash-based id for an entity whose caller left
// ID blank, retrying with an incrementing nonce on the rare collision
// against an existing key.
func mintID(ctx context.Context, store *pstate.PState, prefix, name string) (string, error) {
	for nonce := 0; nonce < 8; nonce++ {
		candidate := idgen.GenerateHashID(prefix, name, "", "", time.Now(), 6, nonce)
		_, exists, err := store.Fetch(ctx, prefix+":"+candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("exampleapp: could not mint a unique %s id after retries", prefix)
}

// Schema declares the flashcards entity types. "translations" on a card
// is a collection of Refs, with a migration that upgrades legacy
// `[]string` id lists into the current `map[id]Ref` shape.
func Schema() *schema.Schema {
	return schema.New().
		Entity("card").
		Field("name", schema.String).
		Field("deck", schema.Ref).RefType("deck").
		Field("translations", schema.Collection).RefType("trans").
		Migrate(migrateTranslations).
		Entity("deck").
		Field("name", schema.String).
		Field("cards", schema.Map).RefType("card").
		Entity("trans").
		Field("text", schema.String).
		Build()
}

func migrateTranslations(v any) any {
	ids, ok := v.([]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(ids))
	for _, raw := range ids {
		id, _ := raw.(string)
		out[id] = ref.Of("trans", id)
	}
	return out
}

// CreateCardParams are the parameters for CreateCard.
type CreateCardParams struct {
	ID     string
	Name   string
	DeckID string // optional
}

// CreateCard rejects if a card with the same id already exists, otherwise
// emits a single card.created event (carrying deck_id when DeckID is set;
// the applicator then also populates the deck's back-reference). A blank
// ID is minted from the card's name via idgen.GenerateHashID.
func CreateCard(ctx context.Context, store *pstate.PState, params any) ([]command.EventOut, error) {
	p := params.(CreateCardParams)
	if p.ID == "" {
		id, err := mintID(ctx, store, "card", p.Name)
		if err != nil {
			return nil, err
		}
		p.ID = id
	}
	key := "card:" + p.ID
	_, exists, err := store.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, command.Reject(fmt.Sprintf("card %q already exists", p.ID))
	}

	payload := map[string]any{"id": p.ID, "name": p.Name}
	if p.DeckID != "" {
		if _, ok, err := store.Fetch(ctx, "deck:"+p.DeckID); err != nil {
			return nil, err
		} else if !ok {
			return nil, command.Reject(fmt.Sprintf("deck %q does not exist", p.DeckID))
		}
		payload["deck_id"] = p.DeckID
	}

	return []command.EventOut{{EventType: "card.created", Payload: payload}}, nil
}

// CreateDeckParams are the parameters for CreateDeck.
type CreateDeckParams struct {
	ID   string
	Name string
}

// CreateDeck rejects if a deck with the same id already exists. A blank
// ID is minted from the deck's name via idgen.GenerateHashID.
func CreateDeck(ctx context.Context, store *pstate.PState, params any) ([]command.EventOut, error) {
	p := params.(CreateDeckParams)
	if p.ID == "" {
		id, err := mintID(ctx, store, "deck", p.Name)
		if err != nil {
			return nil, err
		}
		p.ID = id
	}
	key := "deck:" + p.ID
	_, exists, err := store.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, command.Reject(fmt.Sprintf("deck %q already exists", p.ID))
	}
	return []command.EventOut{{
		EventType: "deck.created",
		Payload:   map[string]any{"id": p.ID, "name": p.Name},
	}}, nil
}

// Applicator dispatches on event_type; unknown types are ignored so the
// projection stays forward-compatible with event streams written by a
// newer version of the domain.
func Applicator(ctx context.Context, store *pstate.PState, ev eventlog.Event) error {
	payload, _ := ev.Payload.(map[string]any)

	switch ev.EventType {
	case "card.created":
		id, _ := payload["id"].(string)
		value := map[string]any{"id": id, "name": payload["name"]}
		if deckID, ok := payload["deck_id"].(string); ok && deckID != "" {
			value["deck"] = ref.Of("deck", deckID)
			if err := store.Put(ctx, "card:"+id, value); err != nil {
				return err
			}
			return assignCardToDeck(ctx, store, deckID, id)
		}
		return store.Put(ctx, "card:"+id, value)

	case "deck.created":
		id, _ := payload["id"].(string)
		return store.Put(ctx, "deck:"+id, map[string]any{
			"id":    id,
			"name":  payload["name"],
			"cards": map[string]any{},
		})

	default:
		return nil
	}
}

func assignCardToDeck(ctx context.Context, store *pstate.PState, deckID, cardID string) error {
	_, err := store.GetAndUpdate(ctx, "deck:"+deckID, func(current any, present bool) (any, bool) {
		if !present {
			return current, false
		}
		deck := current.(map[string]any)
		cards, _ := deck["cards"].(map[string]any)
		if cards == nil {
			cards = map[string]any{}
		}
		cards[cardID] = ref.Of("card", cardID)
		deck["cards"] = cards
		return deck, false
	})
	return err
}

// ExtractEntityID derives the affected entity id from a flashcards event
// payload: the card or deck's own id when present.
func ExtractEntityID(payload any) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := m["id"].(string)
	return id, ok
}

// App wires a space registry, event log and one ContentStore per space
// over a shared adapter, the way a real caller would assemble the core
// components.
type App struct {
	Adapter  storage.Adapter
	Registry *space.Registry
	Log      *eventlog.Log
}

// NewApp assembles an App over adapter, seeding the space registry's next
// id from highestKnownSpaceID (0 for a fresh adapter).
func NewApp(adapter storage.Adapter, highestKnownSpaceID int64, counter *idgen.GlobalCounter) *App {
	registry := space.NewRegistry(adapter, highestKnownSpaceID)
	return &App{
		Adapter:  adapter,
		Registry: registry,
		Log:      eventlog.New(adapter, registry, counter),
	}
}

// OpenStore creates a ContentStore for sp, rooted at "root" and schema-
// and deferred-write-aware via opts.
func (a *App) OpenStore(sp space.Space, opts ...pstate.Option) *command.ContentStore {
	ps := pstate.New(a.Adapter, sp.ID, "root", opts...)
	return &command.ContentStore{
		Log:         a.Log,
		PState:      ps,
		Applicator:  Applicator,
		Extractor:   ExtractEntityID,
		Checkpoints: command.NewAdapterCheckpoints(a.Adapter),
		SpaceID:     sp.ID,
		RootKey:     "root",
	}
}
