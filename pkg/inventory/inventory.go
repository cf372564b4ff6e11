// Package inventory orchestrates the client-side-validation workflow for
// off-chain contract state: it assembles provable disclosures
// (consignments), composes balanced state-transition batches from
// invoices, and atomically folds witness data into storage.
//
// The inventory itself holds no state. All reads and writes go through the
// injected storage port; protocol validation and chain-height resolution
// are external collaborators.
package inventory

import (
	"context"
	"errors"

	"github.com/eauxxs/rgb-std/pkg/confined"
	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
)

// Inventory composes the core algorithms over a storage port, a chain
// resolver and a protocol validator.
type Inventory struct {
	stash     Stash
	resolver  Resolver
	validator Validator
	bounds    containers.Bounds
}

// Option customizes an Inventory.
type Option func(*Inventory)

// WithBounds overrides the consensus-derived collection ceilings.
func WithBounds(b containers.Bounds) Option {
	return func(inv *Inventory) { inv.bounds = b }
}

// New builds an inventory over its collaborator ports.
func New(stash Stash, resolver Resolver, validator Validator, opts ...Option) *Inventory {
	inv := &Inventory{
		stash:     stash,
		resolver:  resolver,
		validator: validator,
		bounds:    containers.DefaultBounds(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Stash exposes the storage port for read access.
func (inv *Inventory) Stash() Stash { return inv.stash }

// Bounds returns the active collection ceilings.
func (inv *Inventory) Bounds() containers.Bounds { return inv.bounds }

// stashErr classifies a storage failure: a definitive miss is an internal
// inconsistency under the given code, anything else is retryable
// connectivity.
func stashErr(op string, missCode Code, err error) *Error {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return internalWrap(missCode, err)
	}
	return connectivity(op, err)
}

// Transition returns a known transition by operation id.
func (inv *Inventory) Transition(ctx context.Context, opid contract.OpID) (contract.Transition, error) {
	t, err := inv.stash.Transition(ctx, opid)
	if err != nil {
		return contract.Transition{}, stashErr("transition lookup", CodeBundleAbsent, err)
	}
	return t, nil
}

// OpBundleID returns the id of the bundle anchoring an operation.
func (inv *Inventory) OpBundleID(ctx context.Context, opid contract.OpID) (contract.BundleID, error) {
	id, err := inv.stash.OpBundleID(ctx, opid)
	if err != nil {
		return contract.BundleID{}, stashErr("bundle id lookup", CodeBundleAbsent, err)
	}
	return id, nil
}

// BundledWitness returns the witness anchoring a bundle together with the
// anchor proof and sibling bundles.
func (inv *Inventory) BundledWitness(ctx context.Context, bundleID contract.BundleID) (containers.BundledWitness, error) {
	bw, err := inv.stash.BundledWitness(ctx, bundleID)
	if err != nil {
		return containers.BundledWitness{}, stashErr("bundled witness lookup", CodeNoBundleAnchor, err)
	}
	return bw, nil
}

// ContractsByIfaceName lists contracts implementing the named interface.
func (inv *Inventory) ContractsByIfaceName(ctx context.Context, ifaceName string) ([]contract.ContractID, error) {
	ids, err := inv.stash.ContractIDsByIface(ctx, ifaceName)
	if err != nil {
		return nil, connectivity("contracts by iface", err)
	}
	contract.SortHashes(ids)
	return ids, nil
}

// ContractIface resolves the interface and implementation a contract
// exposes under the named interface.
func (inv *Inventory) ContractIface(ctx context.Context, id contract.ContractID, ifaceName string) (iface.IfacePair, error) {
	schemaIfaces, ifc, err := inv.contractIfaceImpl(ctx, id, ifaceName)
	if err != nil {
		return iface.IfacePair{}, err
	}
	impl, ok := schemaIfaces.Impls[ifc.ID()]
	if !ok {
		return iface.IfacePair{}, dataErr(CodeNoIfaceImpl, "schema %s does not implement interface %s", schemaIfaces.Schema.ID(), ifc.ID())
	}
	return iface.IfacePair{Iface: ifc, Impl: impl}, nil
}

// StateForOutputs returns all state a contract assigns to the given
// outputs.
func (inv *Inventory) StateForOutputs(ctx context.Context, id contract.ContractID, outputs []contract.OutputSeal) ([]OutputAssignment, error) {
	state, err := inv.stash.StateForOutputs(ctx, id, outputs)
	if err != nil {
		return nil, stashErr("state lookup", CodeStateAbsent, err)
	}
	return state, nil
}

// StoreSealSecret registers a seal the local party generated, so incoming
// consignments addressed to it can be recognized.
func (inv *Inventory) StoreSealSecret(ctx context.Context, seal contract.GraphSeal) error {
	if err := inv.stash.StoreSealSecret(ctx, seal); err != nil {
		return connectivity("store seal secret", err)
	}
	return nil
}

// SealSecrets lists every registered local seal.
func (inv *Inventory) SealSecrets(ctx context.Context) ([]contract.GraphSeal, error) {
	seals, err := inv.stash.SealSecrets(ctx)
	if err != nil {
		return nil, connectivity("seal secrets", err)
	}
	return seals, nil
}

// contractIfaceImpl resolves the schema, interface and implementation a
// builder needs for a contract.
func (inv *Inventory) contractIfaceImpl(ctx context.Context, id contract.ContractID, ifaceName string) (iface.SchemaIfaces, iface.Iface, error) {
	schemaIfaces, err := inv.stash.ContractSchema(ctx, id)
	if err != nil {
		return iface.SchemaIfaces{}, iface.Iface{}, stashErr("contract schema lookup", CodeStateAbsent, err)
	}
	ifc, err := inv.stash.IfaceByName(ctx, ifaceName)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return iface.SchemaIfaces{}, iface.Iface{}, dataErr(CodeUnknownIface, "interface %q is not known", ifaceName)
		}
		return iface.SchemaIfaces{}, iface.Iface{}, connectivity("iface lookup", err)
	}
	return schemaIfaces, ifc, nil
}

// TransitionBuilder resolves a builder for the named operation of a
// contract under an interface, seeded with the contract's asset tags. An
// empty operation name selects the interface's default operation.
func (inv *Inventory) TransitionBuilder(ctx context.Context, id contract.ContractID, ifaceName, operation string) (*iface.TransitionBuilder, error) {
	schemaIfaces, ifc, err := inv.contractIfaceImpl(ctx, id, ifaceName)
	if err != nil {
		return nil, err
	}
	impl, ok := schemaIfaces.Impls[ifc.ID()]
	if !ok {
		return nil, dataErr(CodeNoIfaceImpl, "schema %s does not implement interface %s", schemaIfaces.Schema.ID(), ifc.ID())
	}
	var builder *iface.TransitionBuilder
	if operation != "" {
		builder, err = iface.NamedTransition(id, ifc, schemaIfaces.Schema, impl, operation)
	} else {
		builder, err = iface.DefaultTransition(id, ifc, schemaIfaces.Schema, impl)
	}
	if err != nil {
		return nil, dataWrap(CodeBuilder, err)
	}
	if err := inv.seedAssetTags(ctx, id, builder); err != nil {
		return nil, err
	}
	return builder, nil
}

// BlankBuilder resolves a builder for blank transitions of a contract.
// When the contract's schema does not implement the requested interface,
// the first implementation in interface-id order is used instead.
func (inv *Inventory) BlankBuilder(ctx context.Context, id contract.ContractID, ifaceName string) (*iface.TransitionBuilder, error) {
	schemaIfaces, ifc, err := inv.contractIfaceImpl(ctx, id, ifaceName)
	if err != nil {
		return nil, err
	}
	if len(schemaIfaces.Impls) == 0 {
		return nil, dataErr(CodeNoIfaceImpl, "schema %s implements no interfaces", schemaIfaces.Schema.ID())
	}
	impl, ok := schemaIfaces.Impls[ifc.ID()]
	if !ok {
		ids := make([]contract.IfaceID, 0, len(schemaIfaces.Impls))
		for ifaceID := range schemaIfaces.Impls {
			ids = append(ids, ifaceID)
		}
		contract.SortHashes(ids)
		impl = schemaIfaces.Impls[ids[0]]
		fallback, ok := schemaIfaces.Ifaces[ids[0]]
		if !ok {
			var err error
			fallback, err = inv.stash.Iface(ctx, ids[0])
			if err != nil {
				return nil, stashErr("iface lookup", CodeStateAbsent, err)
			}
		}
		ifc = fallback
	}
	builder := iface.BlankTransition(id, ifc, schemaIfaces.Schema, impl)
	if err := inv.seedAssetTags(ctx, id, builder); err != nil {
		return nil, err
	}
	return builder, nil
}

func (inv *Inventory) seedAssetTags(ctx context.Context, id contract.ContractID, builder *iface.TransitionBuilder) error {
	genesis, err := inv.stash.Genesis(ctx, id)
	if err != nil {
		return stashErr("genesis lookup", CodeStateAbsent, err)
	}
	for _, ty := range confined.SortedKeys(genesis.AssetTags) {
		// Tags come from a map and cannot repeat.
		if err := builder.AddAssetTag(ty, genesis.AssetTags[ty]); err != nil {
			return internalWrap(CodeStateAbsent, err)
		}
	}
	return nil
}
