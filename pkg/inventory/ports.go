package inventory

import (
	"context"

	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
	"github.com/eauxxs/rgb-std/pkg/validate"
)

// OutputAssignment is one piece of state a contract holds at a resolved
// ledger output.
type OutputAssignment struct {
	Opout  contract.Opout
	Output contract.OutputSeal
	State  contract.PersistedState
}

// NotFoundError distinguishes definitive lookup misses from connectivity
// failures. Stash implementations return it (possibly wrapped) when an id
// is not present; any other error is treated as retryable.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " " + e.ID + " is not known"
}

// Stash is the storage port. Implementations must offer atomic,
// linearizable single-witness commits: a Fold either becomes fully
// visible or not at all, and readers never observe a partial fold.
type Stash interface {
	// Schema and interface lookup.
	Schema(ctx context.Context, id contract.SchemaID) (iface.SchemaIfaces, error)
	Iface(ctx context.Context, id contract.IfaceID) (iface.Iface, error)
	IfaceByName(ctx context.Context, name string) (iface.Iface, error)

	// Contract lookup.
	Genesis(ctx context.Context, id contract.ContractID) (contract.Genesis, error)
	ContractSchema(ctx context.Context, id contract.ContractID) (iface.SchemaIfaces, error)
	ContractSuppl(ctx context.Context, id contract.ContractID) (*iface.Supplement, error)
	ContractIDsByIface(ctx context.Context, ifaceName string) ([]contract.ContractID, error)

	// Operation graph lookup. Returned values must not alias stored
	// state: callers reveal transitions into the bundles they receive.
	Transition(ctx context.Context, id contract.OpID) (contract.Transition, error)
	OpBundleID(ctx context.Context, id contract.OpID) (contract.BundleID, error)
	BundledWitness(ctx context.Context, id contract.BundleID) (containers.BundledWitness, error)

	// Output index lookup.
	ContractsByOutputs(ctx context.Context, outputs []contract.OutputSeal) ([]contract.ContractID, error)
	PublicOpouts(ctx context.Context, id contract.ContractID) ([]contract.Opout, error)
	OpoutsByOutputs(ctx context.Context, id contract.ContractID, outputs []contract.OutputSeal) ([]contract.Opout, error)
	OpoutsByTerminals(ctx context.Context, terminals []contract.SecretSeal) ([]contract.Opout, error)
	StateForOutputs(ctx context.Context, id contract.ContractID, outputs []contract.OutputSeal) ([]OutputAssignment, error)

	// Content persistence.
	StoreSchema(ctx context.Context, schema iface.Schema) error
	StoreIface(ctx context.Context, ifc iface.Iface) error
	StoreIfaceImpl(ctx context.Context, impl iface.IfaceImpl) error
	StoreSuppl(ctx context.Context, suppl iface.Supplement) error
	StoreGenesis(ctx context.Context, genesis contract.Genesis) error
	StoreSigs(ctx context.Context, contentID containers.ContentID, sigs containers.ContentSigs) error

	// Secret seal registry.
	StoreSealSecret(ctx context.Context, seal contract.GraphSeal) error
	SealSecrets(ctx context.Context) ([]contract.GraphSeal, error)

	// Fold atomically records a witness anchor and merge-reveals all its
	// bundles. Callers must have checked bundle consistency beforehand
	// (Consume does); existing knowledge is never overwritten and a
	// contradicting reveal fails the whole fold.
	Fold(ctx context.Context, witness containers.SealWitness, bundles map[contract.ContractID]contract.TransitionBundle) error
}

// WitnessAnchor is the confirmation data a resolver reports for a witness
// transaction.
type WitnessAnchor struct {
	WitnessID contract.WitnessID
	Height    uint32
	Timestamp int64
}

// Resolver reports base-ledger confirmation data for witnesses. A zero
// height means the witness is not yet mined.
type Resolver interface {
	ResolveHeight(ctx context.Context, witnessID contract.WitnessID) (WitnessAnchor, error)
}

// Validator runs full protocol validation over a consignment before it is
// admitted into the stash.
type Validator interface {
	Validate(ctx context.Context, consignment containers.Consignment) (validate.Status, error)
}

// Allocator picks a free ledger output for change and blank state of the
// given contract and assignment type. Returning false means no output is
// available and composition must fail.
type Allocator func(id contract.ContractID, ty contract.AssignmentType, velocity iface.VelocityHint) (contract.Vout, bool)

// AmountBlinder supplies the blinding factor for a re-blinded fungible
// assignment.
type AmountBlinder func(id contract.ContractID, ty contract.AssignmentType) contract.BlindingFactor

// SealBlinder supplies the blinding nonce for a newly allocated seal.
type SealBlinder func(id contract.ContractID, ty contract.AssignmentType) uint64
