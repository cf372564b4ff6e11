package inventory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/eauxxs/rgb-std/pkg/confined"
	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
	"github.com/eauxxs/rgb-std/pkg/invoice"
)

// Compose builds a batch of state transitions fulfilling the invoice from
// the candidate previous outputs, paying change back and protecting
// co-located state of other contracts with blank transitions. Blinding
// material is drawn from crypto/rand.
func (inv *Inventory) Compose(
	ctx context.Context,
	in invoice.Invoice,
	prevOutputs []contract.OutputSeal,
	beneficiaryVout *contract.Vout,
	allocator Allocator,
) (containers.Batch, error) {
	return inv.ComposeDeterministic(ctx, in, prevOutputs, beneficiaryVout, allocator,
		func(contract.ContractID, contract.AssignmentType) contract.BlindingFactor {
			return contract.RandomBlinding()
		},
		func(contract.ContractID, contract.AssignmentType) uint64 {
			return contract.RandomSealBlinding()
		},
	)
}

// ComposeDeterministic is Compose with caller-supplied blinding callbacks.
// Pure callbacks make the batch fully reproducible for test vectors.
func (inv *Inventory) ComposeDeterministic(
	ctx context.Context,
	in invoice.Invoice,
	prevOutputs []contract.OutputSeal,
	beneficiaryVout *contract.Vout,
	allocator Allocator,
	amountBlinder AmountBlinder,
	sealBlinder SealBlinder,
) (containers.Batch, error) {
	none := containers.Batch{}

	// 1. Invoice preconditions, before any state lookup.
	if in.Expired(time.Now()) {
		return none, dataErr(CodeInvoiceExpired, "invoice expired at %d", in.Expiry)
	}
	if in.Contract == nil {
		return none, dataErr(CodeNoContract, "invoice names no contract")
	}
	contractID := *in.Contract
	if in.Iface == "" {
		return none, dataErr(CodeNoIface, "invoice names no interface")
	}
	// Callers may list an output more than once; each output is spent once.
	prevOutputs = dedupOutputs(prevOutputs)

	genesis, err := inv.stash.Genesis(ctx, contractID)
	if err != nil {
		return none, stashErr("genesis lookup", CodeStateAbsent, err)
	}
	chain := genesis.Chain
	suppl, err := inv.stash.ContractSuppl(ctx, contractID)
	if err != nil {
		return none, connectivity("contract supplement", err)
	}

	// outputForAssignment allocates a fresh blinded seal for change,
	// carried-forward and blank state.
	outputForAssignment := func(id contract.ContractID, ty contract.AssignmentType, s *iface.Supplement) (contract.AssignmentSeal, error) {
		velocity := s.Velocity(ty)
		vout, ok := allocator(id, ty, velocity)
		if !ok {
			return contract.AssignmentSeal{}, dataErr(CodeNoBlankOrChange, "no outputs available to store state of type %d with velocity class %q", ty, velocity)
		}
		seal := contract.NewBlindedVoutSeal(chain, vout, sealBlinder(id, ty))
		return contract.RevealedSeal(seal), nil
	}

	// 2. Resolve the builder, target assignment and beneficiary seal.
	mainBuilder, err := inv.TransitionBuilder(ctx, contractID, in.Iface, in.Operation)
	if err != nil {
		return none, err
	}
	assignmentName := in.Assignment
	if assignmentName == "" {
		assignmentName, err = mainBuilder.DefaultAssignment()
		if err != nil {
			return none, dataWrap(CodeBuilder, err)
		}
	}
	assignmentID, err := mainBuilder.AssignmentType(assignmentName)
	if err != nil {
		return none, dataWrap(CodeBuilder, err)
	}

	var beneficiary contract.AssignmentSeal
	switch {
	case in.Beneficiary.BlindedSeal != nil:
		beneficiary = contract.ConcealedSeal(*in.Beneficiary.BlindedSeal)
	case beneficiaryVout != nil:
		seal := contract.NewBlindedVoutSeal(chain, *beneficiaryVout, sealBlinder(contractID, assignmentID))
		beneficiary = contract.RevealedSeal(seal)
	default:
		return none, dataErr(CodeNoBeneficiaryOutput, "witness-vout beneficiary requires an output index")
	}

	// 3. Consume candidate state: accumulate the target type, carry any
	// other state of the same contract forward unchanged.
	state, err := inv.StateForOutputs(ctx, contractID, prevOutputs)
	if err != nil {
		return none, err
	}
	sortOutputAssignments(state)
	mainInputs := make([]contract.OutputSeal, 0, len(state))
	var sumInputs uint64
	var dataInputs [][]byte
	for _, entry := range state {
		if err := mainBuilder.AddInput(entry.Opout, entry.State); err != nil {
			return none, dataWrap(CodeBuilder, err)
		}
		mainInputs = append(mainInputs, entry.Output)
		if entry.Opout.Ty != assignmentID {
			seal, err := outputForAssignment(contractID, entry.Opout.Ty, suppl)
			if err != nil {
				return none, err
			}
			carried := entry.State
			carried.UpdateBlinding(amountBlinder(contractID, entry.Opout.Ty))
			if err := mainBuilder.AddOwnedStateRaw(entry.Opout.Ty, seal, carried); err != nil {
				return none, dataWrap(CodeBuilder, err)
			}
			continue
		}
		switch entry.State.Kind {
		case contract.KindAmount:
			sumInputs += entry.State.Amount
		case contract.KindData:
			dataInputs = append(dataInputs, entry.State.Data)
		}
	}

	// 4. Fulfillment: beneficiary output plus change for the excess.
	if in.Owned.IsFungible() {
		amt := in.Owned.Amount
		switch {
		case sumInputs > amt:
			seal, err := outputForAssignment(contractID, assignmentID, suppl)
			if err != nil {
				return none, err
			}
			if err := mainBuilder.AddFungibleStateRaw(assignmentID, seal, sumInputs-amt, amountBlinder(contractID, assignmentID)); err != nil {
				return none, dataWrap(CodeBuilder, err)
			}
		case sumInputs < amt:
			return none, dataErr(CodeInsufficientState, "candidate outputs hold %d of the requested %d", sumInputs, amt)
		}
		if err := mainBuilder.AddFungibleStateRaw(assignmentID, beneficiary, amt, amountBlinder(contractID, assignmentID)); err != nil {
			return none, dataWrap(CodeBuilder, err)
		}
	} else {
		found := false
		for _, data := range dataInputs {
			if bytes.Equal(data, in.Owned.Allocation) {
				found = true
				break
			}
		}
		if !found {
			return none, dataErr(CodeInsufficientState, "requested allocation is not held by the candidate outputs")
		}
		if err := mainBuilder.AddDataRaw(assignmentID, beneficiary, in.Owned.Allocation, sealBlinder(contractID, assignmentID)); err != nil {
			return none, dataWrap(CodeBuilder, err)
		}
	}
	mainTransition, err := mainBuilder.Finalize()
	if err != nil {
		return none, dataWrap(CodeBuilder, err)
	}

	// 5. Protect other contracts sharing the spent outputs.
	spentState := make(map[contract.ContractID][]OutputAssignment)
	for _, output := range prevOutputs {
		ids, err := inv.stash.ContractsByOutputs(ctx, []contract.OutputSeal{output})
		if err != nil {
			return none, connectivity("contracts by outputs", err)
		}
		for _, id := range ids {
			if id == contractID {
				continue
			}
			state, err := inv.StateForOutputs(ctx, id, []contract.OutputSeal{output})
			if err != nil {
				return none, err
			}
			spentState[id] = append(spentState[id], state...)
		}
	}
	if err := confined.CheckLen("batch blanks", len(spentState), 0, inv.bounds.MaxBlanks); err != nil {
		return none, dataWrap(CodeTooManyContracts, err)
	}

	otherIDs := make([]contract.ContractID, 0, len(spentState))
	for id := range spentState {
		otherIDs = append(otherIDs, id)
	}
	contract.SortHashes(otherIDs)

	blanks := make([]containers.TransitionInfo, 0, len(otherIDs))
	for _, id := range otherIDs {
		blankBuilder, err := inv.BlankBuilder(ctx, id, in.Iface)
		if err != nil {
			return none, err
		}
		blankSuppl, err := inv.stash.ContractSuppl(ctx, id)
		if err != nil {
			return none, connectivity("contract supplement", err)
		}
		entries := spentState[id]
		sortOutputAssignments(entries)
		outputs := make([]contract.OutputSeal, 0, len(entries))
		for _, entry := range entries {
			seal, err := outputForAssignment(id, entry.Opout.Ty, blankSuppl)
			if err != nil {
				return none, err
			}
			outputs = append(outputs, entry.Output)
			if err := blankBuilder.AddInput(entry.Opout, entry.State); err != nil {
				return none, dataWrap(CodeBuilder, err)
			}
			if err := blankBuilder.AddOwnedStateRaw(entry.Opout.Ty, seal, entry.State); err != nil {
				return none, dataWrap(CodeBuilder, err)
			}
		}
		transition, err := blankBuilder.Finalize()
		if err != nil {
			return none, dataWrap(CodeBuilder, err)
		}
		blanks = append(blanks, containers.NewTransitionInfo(transition, outputs))
	}

	return containers.Batch{
		Main:   containers.NewTransitionInfo(mainTransition, mainInputs),
		Blanks: blanks,
	}, nil
}

// sortOutputAssignments orders state entries by opout so composition is
// deterministic regardless of stash iteration order.
func sortOutputAssignments(entries []OutputAssignment) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Opout.Less(entries[j].Opout)
	})
}

// dedupOutputs drops repeated outputs, keeping first-occurrence order.
func dedupOutputs(outputs []contract.OutputSeal) []contract.OutputSeal {
	seen := make(map[contract.OutputSeal]struct{}, len(outputs))
	out := make([]contract.OutputSeal, 0, len(outputs))
	for _, output := range outputs {
		if _, ok := seen[output]; ok {
			continue
		}
		seen[output] = struct{}{}
		out = append(out, output)
	}
	return out
}
