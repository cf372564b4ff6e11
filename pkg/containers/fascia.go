package containers

import (
	"github.com/eauxxs/rgb-std/pkg/contract"
)

// Fascia is the unit of ingestion: one witness anchor plus every bundle it
// anchors. It is produced when a completed ledger transaction is exported
// for consumption, before the witness is mined.
type Fascia struct {
	Witness SealWitness                                       `json:"witness"`
	Bundles map[contract.ContractID]contract.TransitionBundle `json:"bundles"`
}

// ContractIDs lists the contracts the fascia carries bundles for, in
// ascending order.
func (f Fascia) ContractIDs() []contract.ContractID {
	ids := make([]contract.ContractID, 0, len(f.Bundles))
	for id := range f.Bundles {
		ids = append(ids, id)
	}
	contract.SortHashes(ids)
	return ids
}
