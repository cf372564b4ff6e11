package contract

import (
	"fmt"

	"github.com/eauxxs/rgb-std/pkg/canonhash"
)

// SecretSeal is the concealed (blinded) form of a graph seal. Only the
// party knowing the underlying output and blinding can open it.
type SecretSeal = Hash32

// GraphSeal is a revealed seal committing future contract state to a
// base-ledger output. A zero Txid means the seal points at an output of
// the witness transaction that will carry the commitment itself.
type GraphSeal struct {
	Chain    Chain  `json:"chain"`
	Txid     Txid   `json:"txid,omitempty"`
	Vout     Vout   `json:"vout"`
	Blinding uint64 `json:"blinding"`
}

// NewBlindedVoutSeal makes a witness-relative seal for vout, blinded with
// the given nonce.
func NewBlindedVoutSeal(chain Chain, vout Vout, blinding uint64) GraphSeal {
	return GraphSeal{Chain: chain, Vout: vout, Blinding: blinding}
}

// Conceal derives the secret form of the seal.
func (s GraphSeal) Conceal() SecretSeal {
	id, err := canonhash.SumID(s)
	if err != nil {
		// GraphSeal is a plain value type; it always marshals.
		panic(fmt.Sprintf("conceal graph seal: %v", err))
	}
	return SecretSeal(id)
}

// Resolve pins a witness-relative seal to the transaction that carried its
// commitment. Seals with an explicit txid are returned unchanged.
func (s GraphSeal) Resolve(witness WitnessID) OutputSeal {
	txid := s.Txid
	if txid.IsZero() {
		txid = witness.Txid
	}
	return OutputSeal{Chain: s.Chain, Txid: txid, Vout: s.Vout}
}

// OutputSeal is a fully resolved base-ledger output.
type OutputSeal struct {
	Chain Chain `json:"chain"`
	Txid  Txid  `json:"txid"`
	Vout  Vout  `json:"vout"`
}

func (s OutputSeal) String() string {
	return fmt.Sprintf("%s:%s:%d", s.Chain, s.Txid, s.Vout)
}

// Less orders output seals by chain, txid and vout.
func (s OutputSeal) Less(other OutputSeal) bool {
	if s.Chain != other.Chain {
		return s.Chain < other.Chain
	}
	if s.Txid != other.Txid {
		return s.Txid.Less(other.Txid)
	}
	return s.Vout < other.Vout
}

// AssignmentSeal is the seal slot of one assignment: either revealed or
// only known in its concealed form.
type AssignmentSeal struct {
	Revealed  *GraphSeal `json:"revealed,omitempty"`
	Concealed SecretSeal `json:"concealed"`
}

// RevealedSeal wraps a revealed graph seal, recording its concealed form.
func RevealedSeal(seal GraphSeal) AssignmentSeal {
	return AssignmentSeal{Revealed: &seal, Concealed: seal.Conceal()}
}

// ConcealedSeal wraps a seal known only by its secret.
func ConcealedSeal(secret SecretSeal) AssignmentSeal {
	return AssignmentSeal{Concealed: secret}
}

// Secret returns the concealed form, which is available for both revealed
// and concealed seals.
func (s AssignmentSeal) Secret() SecretSeal {
	if s.Revealed != nil {
		return s.Revealed.Conceal()
	}
	return s.Concealed
}

// IsRevealed reports whether the underlying output is known.
func (s AssignmentSeal) IsRevealed() bool { return s.Revealed != nil }

// MergeReveal combines two observations of the same seal. Revealed data
// wins over concealed; contradicting reveals are an error.
func (s AssignmentSeal) MergeReveal(other AssignmentSeal) (AssignmentSeal, error) {
	if s.Secret() != other.Secret() {
		return AssignmentSeal{}, &MergeRevealError{Field: "seal", Left: s.Secret().String(), Right: other.Secret().String()}
	}
	if s.Revealed != nil {
		return s, nil
	}
	return other, nil
}
