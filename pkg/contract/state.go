package contract

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
)

// AssetTag is a per-assignment-type tag mixed into fungible commitments so
// amounts of different assets never aggregate.
type AssetTag = Hash32

// BlindingFactor blinds a fungible amount commitment. Opening the amount
// requires the factor.
type BlindingFactor [32]byte

func (b BlindingFactor) MarshalText() ([]byte, error) {
	return Hash32(b).MarshalText()
}

func (b *BlindingFactor) UnmarshalText(text []byte) error {
	return (*Hash32)(b).UnmarshalText(text)
}

// RandomBlinding draws a fresh blinding factor from crypto/rand.
func RandomBlinding() BlindingFactor {
	var b BlindingFactor
	if _, err := rand.Read(b[:]); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return b
}

// RandomSealBlinding draws a fresh seal blinding nonce from crypto/rand.
func RandomSealBlinding() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint64(buf[:])
}

// StateKind discriminates the two supported kinds of owned state.
type StateKind uint8

const (
	// KindAmount is blinded fungible state.
	KindAmount StateKind = 1
	// KindData is a non-fungible data allocation.
	KindData StateKind = 2
)

// PersistedState is the state carried by one assignment.
type PersistedState struct {
	Kind StateKind `json:"kind"`

	// Fungible state. The amount commitment is Pedersen-style: value plus
	// blinding, tagged with the asset tag of its assignment type.
	Amount   uint64         `json:"amount,omitempty"`
	Blinding BlindingFactor `json:"blinding,omitempty"`
	Tag      AssetTag       `json:"tag,omitempty"`

	// Non-fungible state: an opaque allocation plus its seal blinding.
	Data         []byte `json:"data,omitempty"`
	DataBlinding uint64 `json:"dataBlinding,omitempty"`
}

// AmountState makes fungible persisted state.
func AmountState(value uint64, blinding BlindingFactor, tag AssetTag) PersistedState {
	return PersistedState{Kind: KindAmount, Amount: value, Blinding: blinding, Tag: tag}
}

// DataState makes non-fungible persisted state.
func DataState(allocation []byte, blinding uint64) PersistedState {
	return PersistedState{Kind: KindData, Data: allocation, DataBlinding: blinding}
}

// UpdateBlinding re-blinds the state in place, keeping its value.
func (s *PersistedState) UpdateBlinding(blinding BlindingFactor) {
	if s.Kind == KindAmount {
		s.Blinding = blinding
	}
}

// SameValue reports whether two states carry the same value, ignoring
// blinding.
func (s PersistedState) SameValue(other PersistedState) bool {
	if s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case KindAmount:
		return s.Amount == other.Amount && s.Tag == other.Tag
	case KindData:
		return bytes.Equal(s.Data, other.Data)
	default:
		return false
	}
}
