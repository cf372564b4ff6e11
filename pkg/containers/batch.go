package containers

import (
	"github.com/eauxxs/rgb-std/pkg/contract"
)

// TransitionInfo is an unanchored transition together with the ledger
// outputs it consumes. The ledger-transaction assembler uses the outputs
// to build the witness inputs.
type TransitionInfo struct {
	ID         contract.OpID         `json:"id"`
	Transition contract.Transition   `json:"transition"`
	Inputs     []contract.OutputSeal `json:"inputs"`
}

// NewTransitionInfo records a transition with its consumed outputs.
func NewTransitionInfo(t contract.Transition, inputs []contract.OutputSeal) TransitionInfo {
	return TransitionInfo{ID: t.ID(), Transition: t, Inputs: inputs}
}

// Batch is a composed, unanchored set of transitions ready for ledger
// embedding: the main transition fulfilling an invoice plus the blank
// transitions protecting co-located state of other contracts.
type Batch struct {
	Main   TransitionInfo   `json:"main"`
	Blanks []TransitionInfo `json:"blanks,omitempty"`
}
