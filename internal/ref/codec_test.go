package ref

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := map[string]any{
		"name": "card-1",
		"deck": Of("deck", "d1"),
		"tags": []any{"a", "b", Of("trans", "t1")},
		"nested": map[string]any{
			"parent": Of("card", "root"),
		},
	}

	encoded := Encode(original)
	decoded := Decode(encoded)

	decodedMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded value is not a map: %T", decoded)
	}

	if decodedMap["deck"] != (Of("deck", "d1")) {
		t.Fatalf("deck ref did not round-trip: %#v", decodedMap["deck"])
	}

	tags, ok := decodedMap["tags"].([]any)
	if !ok || len(tags) != 3 {
		t.Fatalf("tags did not round-trip: %#v", decodedMap["tags"])
	}
	if tags[2] != (Of("trans", "t1")) {
		t.Fatalf("nested list ref did not round-trip: %#v", tags[2])
	}

	nested, ok := decodedMap["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested map missing: %#v", decodedMap["nested"])
	}
	if nested["parent"] != (Of("card", "root")) {
		t.Fatalf("nested map ref did not round-trip: %#v", nested["parent"])
	}
}

func TestEncodeProducesTaggedRecord(t *testing.T) {
	encoded := Encode(Of("deck", "d1"))
	key, ok := IsTagged(encoded)
	if !ok {
		t.Fatalf("expected tagged record, got %#v", encoded)
	}
	if key != "deck:d1" {
		t.Fatalf("expected key deck:d1, got %q", key)
	}
}

func TestRefAccessors(t *testing.T) {
	r := Of("deck", "d1")
	if r.Type() != "deck" {
		t.Fatalf("expected type deck, got %q", r.Type())
	}
	if r.ID() != "d1" {
		t.Fatalf("expected id d1, got %q", r.ID())
	}
	if r.String() != "deck:d1" {
		t.Fatalf("expected string deck:d1, got %q", r.String())
	}
	if (Ref{}).IsZero() != true {
		t.Fatal("expected zero Ref to report IsZero")
	}
}
