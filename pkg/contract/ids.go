package contract

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Hash32 is the common representation of all content-derived identifiers.
type Hash32 [32]byte

func (h Hash32) String() string { return hex.EncodeToString(h[:]) }

func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

func (h *Hash32) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return fmt.Errorf("id must be 32 bytes, got %d", len(raw))
	}
	copy(h[:], raw)
	return nil
}

func (h Hash32) IsZero() bool { return h == Hash32{} }

// Less orders ids by their byte representation.
func (h Hash32) Less(other Hash32) bool { return bytes.Compare(h[:], other[:]) < 0 }

// ContractID identifies a contract for its whole lifetime. It is derived
// from the genesis operation content.
type ContractID = Hash32

// OpID identifies one operation (genesis or transition) by the hash of its
// concealed content, so revealing seals never changes it.
type OpID = Hash32

// BundleID identifies a transition bundle. It is derived from the bundle
// input map only, so merge-reveal never changes it.
type BundleID = Hash32

// SchemaID identifies a contract schema.
type SchemaID = Hash32

// IfaceID identifies an interface definition.
type IfaceID = Hash32

// ImplID identifies an interface implementation.
type ImplID = Hash32

// SupplID identifies a contract supplement.
type SupplID = Hash32

// Txid is a base-ledger transaction id.
type Txid = Hash32

// Chain tags ledger-specific identifiers with the base ledger they belong
// to. One witness id is only meaningful together with its chain tag.
type Chain uint8

const (
	ChainBitcoin Chain = 0
	ChainLiquid  Chain = 1
)

func (c Chain) String() string {
	switch c {
	case ChainBitcoin:
		return "bitcoin"
	case ChainLiquid:
		return "liquid"
	default:
		return fmt.Sprintf("chain(%d)", uint8(c))
	}
}

// WitnessID is the chain-tagged id of the base-ledger transaction whose
// commitment anchors one or more bundles.
type WitnessID struct {
	Chain Chain `json:"chain"`
	Txid  Txid  `json:"txid"`
}

func (w WitnessID) String() string {
	return fmt.Sprintf("%s:%s", w.Chain, w.Txid)
}

func (w WitnessID) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d:%s", w.Chain, w.Txid)), nil
}

func (w *WitnessID) UnmarshalText(b []byte) error {
	chain, txid, ok := strings.Cut(string(b), ":")
	if !ok {
		return fmt.Errorf("malformed witness id %q", b)
	}
	c, err := strconv.ParseUint(chain, 10, 8)
	if err != nil {
		return fmt.Errorf("malformed witness id chain tag: %w", err)
	}
	w.Chain = Chain(c)
	return w.Txid.UnmarshalText([]byte(txid))
}

// Less orders witness ids by chain tag, then txid.
func (w WitnessID) Less(other WitnessID) bool {
	if w.Chain != other.Chain {
		return w.Chain < other.Chain
	}
	return w.Txid.Less(other.Txid)
}

// AssignmentType identifies one kind of owned state a schema declares.
type AssignmentType uint16

// Vout is an output index within a base-ledger transaction.
type Vout uint32

// Opout points at one output slot of one operation.
type Opout struct {
	Op OpID           `json:"op"`
	Ty AssignmentType `json:"ty"`
	No uint16         `json:"no"`
}

func (o Opout) String() string {
	return fmt.Sprintf("%s/%d/%d", o.Op, o.Ty, o.No)
}

func (o Opout) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Opout) UnmarshalText(b []byte) error {
	parts := strings.Split(string(b), "/")
	if len(parts) != 3 {
		return fmt.Errorf("malformed opout %q", b)
	}
	if err := o.Op.UnmarshalText([]byte(parts[0])); err != nil {
		return err
	}
	ty, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return fmt.Errorf("malformed opout assignment type: %w", err)
	}
	no, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return fmt.Errorf("malformed opout index: %w", err)
	}
	o.Ty = AssignmentType(ty)
	o.No = uint16(no)
	return nil
}

// Less orders opouts by operation id, assignment type and index.
func (o Opout) Less(other Opout) bool {
	if o.Op != other.Op {
		return o.Op.Less(other.Op)
	}
	if o.Ty != other.Ty {
		return o.Ty < other.Ty
	}
	return o.No < other.No
}

// SortHashes sorts a slice of 32-byte ids in place.
func SortHashes(ids []Hash32) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// SortOpouts sorts a slice of opouts in place.
func SortOpouts(opouts []Opout) {
	sort.Slice(opouts, func(i, j int) bool { return opouts[i].Less(opouts[j]) })
}
