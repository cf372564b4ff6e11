package containers

import (
	"sort"

	"github.com/eauxxs/rgb-std/pkg/contract"
)

// BundledWitness is one witness transaction together with its anchor and
// every bundle it anchors, keyed by contract. One witness may anchor
// bundles for multiple contracts.
type BundledWitness struct {
	WitnessID contract.WitnessID                                `json:"witnessId"`
	Anchor    Anchor                                            `json:"anchor"`
	Bundles   map[contract.ContractID]contract.TransitionBundle `json:"bundles"`
}

// NewBundledWitness starts a bundled witness with one contract's bundle.
func NewBundledWitness(witness SealWitness, contractID contract.ContractID, bundle contract.TransitionBundle) BundledWitness {
	return BundledWitness{
		WitnessID: witness.WitnessID,
		Anchor:    witness.Anchor,
		Bundles:   map[contract.ContractID]contract.TransitionBundle{contractID: bundle},
	}
}

// Bundle returns the bundle the witness anchors for a contract.
func (bw BundledWitness) Bundle(contractID contract.ContractID) (contract.TransitionBundle, bool) {
	b, ok := bw.Bundles[contractID]
	return b, ok
}

// ContractIDs lists the contracts the witness anchors bundles for, in
// ascending order.
func (bw BundledWitness) ContractIDs() []contract.ContractID {
	ids := make([]contract.ContractID, 0, len(bw.Bundles))
	for id := range bw.Bundles {
		ids = append(ids, id)
	}
	contract.SortHashes(ids)
	return ids
}

// MergeReveal combines two observations of the same witness. The merge is
// commutative and idempotent: anchors and bundles only gain knowledge, and
// any contradiction is an error.
func (bw BundledWitness) MergeReveal(other BundledWitness) (BundledWitness, error) {
	if bw.WitnessID != other.WitnessID {
		return BundledWitness{}, &contract.MergeRevealError{Field: "witness", Left: bw.WitnessID.String(), Right: other.WitnessID.String()}
	}
	anchor, err := bw.Anchor.Merge(other.Anchor)
	if err != nil {
		return BundledWitness{}, err
	}
	out := BundledWitness{
		WitnessID: bw.WitnessID,
		Anchor:    anchor,
		Bundles:   make(map[contract.ContractID]contract.TransitionBundle, len(bw.Bundles)),
	}
	for cid, b := range bw.Bundles {
		out.Bundles[cid] = b
	}
	for cid, b := range other.Bundles {
		if known, ok := out.Bundles[cid]; ok {
			merged, err := known.MergeReveal(b)
			if err != nil {
				return BundledWitness{}, err
			}
			out.Bundles[cid] = merged
			continue
		}
		out.Bundles[cid] = b
	}
	return out, nil
}

// SortBundledWitnesses orders witnesses by id so consignments serialize
// identically regardless of traversal order.
func SortBundledWitnesses(bws []BundledWitness) {
	sort.Slice(bws, func(i, j int) bool { return bws[i].WitnessID.Less(bws[j].WitnessID) })
}
