package inventory

import (
	"context"
	"errors"

	"github.com/eauxxs/rgb-std/pkg/confined"
	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
	"github.com/eauxxs/rgb-std/pkg/signature"
	"github.com/eauxxs/rgb-std/pkg/validate"
)

// ImportContract validates a contract consignment and, when fully valid,
// admits its schema, interfaces, genesis, attestations and bundle set into
// the stash. Nothing is written on rejection.
func (inv *Inventory) ImportContract(ctx context.Context, consignment containers.Consignment) (validate.Status, error) {
	return inv.importConsignment(ctx, consignment, false, false)
}

// ImportContractForce is ImportContract admitting consignments whose
// witnesses are not yet resolved or mined. Invalid consignments are still
// rejected.
func (inv *Inventory) ImportContractForce(ctx context.Context, consignment containers.Consignment) (validate.Status, error) {
	return inv.importConsignment(ctx, consignment, true, false)
}

// AcceptTransfer validates a transfer consignment and admits it into the
// stash. On top of contract import it requires the terminal witnesses to
// be mined on the base ledger.
func (inv *Inventory) AcceptTransfer(ctx context.Context, consignment containers.Consignment) (validate.Status, error) {
	return inv.importConsignment(ctx, consignment, false, true)
}

// AcceptTransferForce is AcceptTransfer admitting transfers with
// unresolved or unmined witnesses. Invalid transfers are still rejected.
func (inv *Inventory) AcceptTransferForce(ctx context.Context, consignment containers.Consignment) (validate.Status, error) {
	return inv.importConsignment(ctx, consignment, true, true)
}

func (inv *Inventory) importConsignment(ctx context.Context, consignment containers.Consignment, force, transfer bool) (validate.Status, error) {
	none := validate.Status{}

	// 1. Structural invariants of the container itself.
	if err := consignment.Validate(inv.bounds); err != nil {
		return none, consignmentErr(err)
	}

	// 2. Full protocol validation. Failures always reject; pending chain
	// resolution rejects unless forced.
	status, err := inv.validator.Validate(ctx, consignment)
	if err != nil {
		return none, connectivity("validate consignment", err)
	}
	switch status.Validity() {
	case validate.Valid:
	case validate.UnresolvedTransactions:
		if !force {
			return status, dataErr(CodeUnresolvedTransactions, "%d witness transactions could not be resolved", len(status.Unresolved))
		}
	case validate.UnminedTerminals:
		if !force {
			return status, dataErr(CodeTerminalsUnmined, "%d terminal witnesses are not mined", len(status.UnminedTerminal))
		}
	default:
		return status, dataErr(CodeInvalid, "consignment failed validation: %s", status)
	}

	// 3. Transfer acceptance additionally requires the terminal witnesses
	// confirmed on chain, so the received state is actually spendable.
	if transfer && !force {
		if err := inv.checkTerminalsMined(ctx, consignment); err != nil {
			return status, err
		}
	}

	// 4. Persist content, then fold witness data one witness at a time.
	if err := inv.storeConsignmentContent(ctx, consignment); err != nil {
		return status, err
	}
	for _, bw := range consignment.Bundles {
		witness := containers.SealWitness{WitnessID: bw.WitnessID, Anchor: bw.Anchor}
		if err := inv.stash.Fold(ctx, witness, bw.Bundles); err != nil {
			return status, foldErr(err)
		}
	}
	return status, nil
}

// checkTerminalsMined resolves every witness anchoring a terminal bundle
// and rejects the transfer when any of them has no confirmation height.
func (inv *Inventory) checkTerminalsMined(ctx context.Context, consignment containers.Consignment) error {
	contractID := consignment.ContractID()
	for _, bw := range consignment.Bundles {
		bundle, ok := bw.Bundle(contractID)
		if !ok {
			continue
		}
		if _, ok := consignment.Terminals[bundle.BundleID()]; !ok {
			continue
		}
		anchor, err := inv.resolver.ResolveHeight(ctx, bw.WitnessID)
		if err != nil {
			return connectivity("resolve terminal witness", err)
		}
		if anchor.Height == 0 {
			return dataErr(CodeTerminalsUnmined, "terminal witness %s is not mined", bw.WitnessID)
		}
	}
	return nil
}

func (inv *Inventory) storeConsignmentContent(ctx context.Context, consignment containers.Consignment) error {
	if err := inv.stash.StoreSchema(ctx, consignment.Schema); err != nil {
		return connectivity("store schema", err)
	}
	for _, pair := range consignment.Ifaces {
		if err := inv.stash.StoreIface(ctx, pair.Iface); err != nil {
			return connectivity("store iface", err)
		}
		if err := inv.stash.StoreIfaceImpl(ctx, pair.Impl); err != nil {
			return connectivity("store iface impl", err)
		}
	}
	if err := inv.stash.StoreGenesis(ctx, consignment.Genesis); err != nil {
		return connectivity("store genesis", err)
	}
	for contentID, sigs := range consignment.Signatures {
		if err := inv.stash.StoreSigs(ctx, contentID, sigs); err != nil {
			return connectivity("store signatures", err)
		}
	}
	return nil
}

// consignmentErr classifies a container structure failure: ceiling
// violations get the confinement code, everything else is an invalid
// container.
func consignmentErr(err error) *Error {
	if errors.Is(err, confined.ErrOverflow) || errors.Is(err, confined.ErrUnderflow) {
		return dataWrap(CodeConfinement, err)
	}
	return dataWrap(CodeInvalidBundle, err)
}

// ImportSchema stores a schema and returns its id.
func (inv *Inventory) ImportSchema(ctx context.Context, schema iface.Schema) (contract.SchemaID, error) {
	if err := inv.stash.StoreSchema(ctx, schema); err != nil {
		return contract.SchemaID{}, connectivity("store schema", err)
	}
	return schema.ID(), nil
}

// ImportIface stores an interface and returns its id.
func (inv *Inventory) ImportIface(ctx context.Context, ifc iface.Iface) (contract.IfaceID, error) {
	if err := inv.stash.StoreIface(ctx, ifc); err != nil {
		return contract.IfaceID{}, connectivity("store iface", err)
	}
	return ifc.ID(), nil
}

// ImportIfaceImpl stores an interface implementation. Both the schema and
// the interface it binds must already be known.
func (inv *Inventory) ImportIfaceImpl(ctx context.Context, impl iface.IfaceImpl) (contract.ImplID, error) {
	if _, err := inv.stash.Schema(ctx, impl.SchemaID); err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return contract.ImplID{}, dataErr(CodeUnknownSchema, "implementation binds unknown schema %s", impl.SchemaID)
		}
		return contract.ImplID{}, connectivity("schema lookup", err)
	}
	if _, err := inv.stash.Iface(ctx, impl.IfaceID); err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return contract.ImplID{}, dataErr(CodeUnknownIface, "implementation binds unknown interface %s", impl.IfaceID)
		}
		return contract.ImplID{}, connectivity("iface lookup", err)
	}
	if err := inv.stash.StoreIfaceImpl(ctx, impl); err != nil {
		return contract.ImplID{}, connectivity("store iface impl", err)
	}
	return impl.ID(), nil
}

// ImportSuppl stores a contract supplement.
func (inv *Inventory) ImportSuppl(ctx context.Context, suppl iface.Supplement) (contract.SupplID, error) {
	if err := inv.stash.StoreSuppl(ctx, suppl); err != nil {
		return contract.SupplID{}, connectivity("store supplement", err)
	}
	return suppl.ID(), nil
}

// ImportSigs verifies and stores third-party attestations over a piece of
// content. Every blob must carry a valid envelope whose content hash
// matches the attested id; the set must satisfy the signature count and
// blob size confinement.
func (inv *Inventory) ImportSigs(ctx context.Context, contentID containers.ContentID, sigs map[containers.Identity][]byte) error {
	checked, err := containers.NewContentSigs(sigs)
	if err != nil {
		return dataWrap(CodeConfinement, err)
	}
	for identity, blob := range checked {
		if _, err := signature.VerifyBlob([32]byte(contentID.ID), blob); err != nil {
			return dataErr(CodeInvalid, "attestation of %s over %s does not verify: %v", identity, contentID, err)
		}
	}
	if err := inv.stash.StoreSigs(ctx, contentID, checked); err != nil {
		return connectivity("store signatures", err)
	}
	return nil
}
