package containers

import (
	"bytes"
	"errors"
	"testing"

	"github.com/eauxxs/rgb-std/pkg/confined"
	"github.com/eauxxs/rgb-std/pkg/contract"
)

func TestNewContentSigsBounds(t *testing.T) {
	if _, err := NewContentSigs(nil); !errors.Is(err, confined.ErrUnderflow) {
		t.Fatalf("expected underflow for empty set, got %v", err)
	}

	tooMany := make(map[Identity][]byte)
	for i := 0; i < MaxSigs+1; i++ {
		tooMany[Identity(string(rune('a'+i)))] = []byte{1}
	}
	if _, err := NewContentSigs(tooMany); !errors.Is(err, confined.ErrOverflow) {
		t.Fatalf("expected overflow for %d sigs, got %v", len(tooMany), err)
	}

	if _, err := NewContentSigs(map[Identity][]byte{"alice": {}}); !errors.Is(err, confined.ErrUnderflow) {
		t.Fatalf("expected underflow for empty blob, got %v", err)
	}
	if _, err := NewContentSigs(map[Identity][]byte{"alice": make([]byte, MaxSigBlob+1)}); !errors.Is(err, confined.ErrOverflow) {
		t.Fatalf("expected overflow for oversized blob, got %v", err)
	}

	sigs, err := NewContentSigs(map[Identity][]byte{"alice": {1, 2}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !bytes.Equal(sigs["alice"], []byte{1, 2}) {
		t.Fatalf("unexpected blob: %v", sigs["alice"])
	}
}

func TestContentSigsMergeKeepsExisting(t *testing.T) {
	a, _ := NewContentSigs(map[Identity][]byte{"alice": {1}})
	b, _ := NewContentSigs(map[Identity][]byte{"alice": {2}, "bob": {3}})
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !bytes.Equal(merged["alice"], []byte{1}) {
		t.Fatalf("expected existing signature kept, got %v", merged["alice"])
	}
	if !bytes.Equal(merged["bob"], []byte{3}) {
		t.Fatalf("expected new signature added")
	}
}

func TestContentIDTextRoundTrip(t *testing.T) {
	id := ContentID{Kind: ContentSchema, ID: contract.Hash32{7}}
	text, err := id.MarshalText()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	var back ContentID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if back != id {
		t.Fatalf("round trip mismatch: %v vs %v", back, id)
	}
}
