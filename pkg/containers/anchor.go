// Package containers defines the artifacts the inventory exchanges with
// the outside world: anchored witnesses, consignments, fasciae, batches
// and content attestations.
package containers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/eauxxs/rgb-std/pkg/contract"
)

// Anchor is the multi-protocol commitment proof binding bundle ids to one
// witness transaction. The proof blob is opaque here; verifying it against
// the base ledger is the validator's concern. The commitment map is enough
// to check that an anchor relates to a given contract and bundle.
type Anchor struct {
	Commitments map[contract.ContractID]contract.BundleID `json:"commitments"`
	Proof       []byte                                    `json:"proof"`
}

// RelatesTo reports whether the anchor commits the given bundle for the
// given contract.
func (a Anchor) RelatesTo(contractID contract.ContractID, bundleID contract.BundleID) bool {
	return a.Commitments[contractID] == bundleID
}

// Merge combines two observations of the anchor of one witness. Anchors
// are immutable once the witness is published, so observations may only
// extend the commitment map, never contradict it.
func (a Anchor) Merge(other Anchor) (Anchor, error) {
	if len(a.Proof) > 0 && len(other.Proof) > 0 && !bytes.Equal(a.Proof, other.Proof) {
		return Anchor{}, &contract.MergeRevealError{Field: "anchor proof", Left: proofDigest(a.Proof), Right: proofDigest(other.Proof)}
	}
	out := Anchor{Commitments: make(map[contract.ContractID]contract.BundleID, len(a.Commitments))}
	for cid, bid := range a.Commitments {
		out.Commitments[cid] = bid
	}
	for cid, bid := range other.Commitments {
		if known, ok := out.Commitments[cid]; ok && known != bid {
			return Anchor{}, &contract.MergeRevealError{Field: "anchor commitment", Left: known.String(), Right: bid.String()}
		}
		out.Commitments[cid] = bid
	}
	out.Proof = a.Proof
	if len(out.Proof) == 0 {
		out.Proof = other.Proof
	}
	return out, nil
}

// proofDigest abbreviates an opaque proof blob for conflict reports.
func proofDigest(proof []byte) string {
	sum := sha256.Sum256(proof)
	return hex.EncodeToString(sum[:8])
}

// SealWitness pairs a witness id with its anchor proof.
type SealWitness struct {
	WitnessID contract.WitnessID `json:"witnessId"`
	Anchor    Anchor             `json:"anchor"`
}
