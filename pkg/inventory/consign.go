package inventory

import (
	"context"

	"github.com/eauxxs/rgb-std/pkg/confined"
	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
)

// ExportContract assembles the full public consignment of a contract,
// with no transfer-specific disclosures.
func (inv *Inventory) ExportContract(ctx context.Context, contractID contract.ContractID) (containers.Consignment, error) {
	consignment, err := inv.Consign(ctx, contractID, nil, nil)
	if err != nil {
		return containers.Consignment{}, err
	}
	consignment.Transfer = false
	return consignment, nil
}

// Transfer assembles a transfer consignment disclosing the given outputs
// and secret-seal endpoints.
func (inv *Inventory) Transfer(ctx context.Context, contractID contract.ContractID, outputs []contract.OutputSeal, secretSeals []contract.SecretSeal) (containers.Consignment, error) {
	consignment, err := inv.Consign(ctx, contractID, outputs, secretSeals)
	if err != nil {
		return containers.Consignment{}, err
	}
	consignment.Transfer = true
	return consignment, nil
}

// Consign reconstructs the minimal provable ancestry of the contract's
// disclosed state: the requested outputs and secret seals plus all public
// state, traversed backward to genesis, with every traversal path folded
// through merge-reveal into an id-ordered container.
func (inv *Inventory) Consign(ctx context.Context, contractID contract.ContractID, outputs []contract.OutputSeal, secretSeals []contract.SecretSeal) (containers.Consignment, error) {
	none := containers.Consignment{}

	// 1. Collect the initial opout set: public state plus the disclosures
	// the caller requested.
	opouts, err := inv.stash.PublicOpouts(ctx, contractID)
	if err != nil {
		return none, stashErr("public opouts", CodeStateAbsent, err)
	}
	byOutputs, err := inv.stash.OpoutsByOutputs(ctx, contractID, outputs)
	if err != nil {
		return none, stashErr("opouts by outputs", CodeStateAbsent, err)
	}
	byTerminals, err := inv.stash.OpoutsByTerminals(ctx, secretSeals)
	if err != nil {
		return none, stashErr("opouts by terminals", CodeStateAbsent, err)
	}
	opouts = append(opouts, byOutputs...)
	opouts = append(opouts, byTerminals...)
	contract.SortOpouts(opouts)

	secretSet := make(map[contract.SecretSeal]struct{}, len(secretSeals))
	for _, s := range secretSeals {
		secretSet[s] = struct{}{}
	}

	genesisOp := contract.OpID(contractID)
	bundledWitnesses := make(map[contract.BundleID]containers.BundledWitness)
	transitions := make(map[contract.OpID]contract.Transition)
	terminals := make(map[contract.BundleID]containers.Terminal)

	// 2. Record terminal seals on the disclosed transitions.
	var prev contract.Opout
	for i, opout := range opouts {
		if i > 0 && opout == prev {
			continue
		}
		prev = opout
		if opout.Op == genesisOp {
			// Genesis is part of every consignment anyway.
			continue
		}
		transition, err := inv.Transition(ctx, opout.Op)
		if err != nil {
			return none, err
		}
		transitions[opout.Op] = transition
		bundleID, err := inv.OpBundleID(ctx, opout.Op)
		if err != nil {
			return none, err
		}

		for _, ty := range transition.AssignmentTypes() {
			for index, assignment := range transition.Assignments[ty] {
				secret := assignment.Seal.Secret()
				if _, ok := secretSet[secret]; ok {
					addTerminalSeal(terminals, bundleID, contract.ConcealedSeal(secret))
				} else if opout.Ty == ty && int(opout.No) == index {
					if !assignment.Seal.IsRevealed() {
						// Public state must never leave the stash concealed.
						return none, dataErr(CodeConcealedPublicState, "public state at %s is concealed", opout)
					}
					addTerminalSeal(terminals, bundleID, contract.ConcealedSeal(secret))
				}
			}
		}

		if _, ok := bundledWitnesses[bundleID]; !ok {
			bw, err := inv.BundledWitness(ctx, bundleID)
			if err != nil {
				return none, err
			}
			bundledWitnesses[bundleID] = bw
		}
	}

	// 3. Traverse backward to genesis, merging partial reveals where two
	// paths reach the same bundle.
	queue := make([]contract.OpID, 0, len(transitions))
	for _, t := range transitions {
		for _, in := range t.Inputs {
			queue = append(queue, in.PrevOut.Op)
		}
	}
	for len(queue) > 0 {
		opid := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if opid == genesisOp {
			continue
		}
		if _, ok := transitions[opid]; ok {
			continue
		}
		transition, err := inv.Transition(ctx, opid)
		if err != nil {
			return none, err
		}
		for _, in := range transition.Inputs {
			queue = append(queue, in.PrevOut.Op)
		}
		transitions[opid] = transition
		bundleID, err := inv.OpBundleID(ctx, opid)
		if err != nil {
			return none, err
		}
		bw, ok := bundledWitnesses[bundleID]
		if !ok {
			bw, err = inv.BundledWitness(ctx, bundleID)
			if err != nil {
				return none, err
			}
		}
		bundle, ok := bw.Bundle(contractID)
		if !ok {
			return none, internalErr(CodeBundleContractUnknown, "bundle %s carries no transitions of contract %s", bundleID, contractID)
		}
		if err := bundle.RevealTransition(transition); err != nil {
			// The stash produced contradicting observations of its own data.
			return none, internalWrap(CodeBundleReveal, err)
		}
		bw.Bundles[contractID] = bundle
		bundledWitnesses[bundleID] = bw
	}

	// 4. Assemble the container: schema, genesis, interface pairs, and the
	// bundle set deduplicated by witness id.
	genesis, err := inv.stash.Genesis(ctx, contractID)
	if err != nil {
		return none, stashErr("genesis lookup", CodeStateAbsent, err)
	}
	schemaIfaces, err := inv.stash.Schema(ctx, genesis.SchemaID)
	if err != nil {
		return none, stashErr("schema lookup", CodeStateAbsent, err)
	}
	consignment := containers.NewConsignment(schemaIfaces.Schema, genesis)
	for ifaceID, impl := range schemaIfaces.Impls {
		ifc, ok := schemaIfaces.Ifaces[ifaceID]
		if !ok {
			ifc, err = inv.stash.Iface(ctx, ifaceID)
			if err != nil {
				return none, stashErr("iface lookup", CodeStateAbsent, err)
			}
		}
		consignment.Ifaces[ifaceID] = iface.IfacePair{Iface: ifc, Impl: impl}
	}

	byWitness := make(map[contract.WitnessID]containers.BundledWitness, len(bundledWitnesses))
	for _, bw := range bundledWitnesses {
		known, ok := byWitness[bw.WitnessID]
		if !ok {
			byWitness[bw.WitnessID] = bw
			continue
		}
		merged, err := known.MergeReveal(bw)
		if err != nil {
			return none, internalWrap(CodeBundleReveal, err)
		}
		byWitness[bw.WitnessID] = merged
	}
	if err := confined.CheckLen("consignment bundles", len(byWitness), 0, inv.bounds.MaxBundles); err != nil {
		return none, dataWrap(CodeTooManyBundles, err)
	}
	if err := confined.CheckLen("consignment terminals", len(terminals), 0, inv.bounds.MaxTerminals); err != nil {
		return none, dataWrap(CodeTooManyTerminals, err)
	}
	for _, bw := range byWitness {
		consignment.Bundles = append(consignment.Bundles, bw)
	}
	containers.SortBundledWitnesses(consignment.Bundles)
	consignment.Terminals = terminals

	return consignment, nil
}

func addTerminalSeal(terminals map[contract.BundleID]containers.Terminal, bundleID contract.BundleID, seal contract.AssignmentSeal) {
	terminal, ok := terminals[bundleID]
	if !ok {
		terminals[bundleID] = containers.NewTerminal(seal)
		return
	}
	terminal.AddSeal(seal)
	terminals[bundleID] = terminal
}
