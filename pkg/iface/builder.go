package iface

import (
	"errors"
	"fmt"
	"sort"

	"github.com/eauxxs/rgb-std/pkg/contract"
)

// BlankTransitionType is the reserved transition type for blank
// transitions carrying unrelated state forward unchanged.
const BlankTransitionType uint16 = 0xFFFF

var (
	ErrNoDefaultAssignment = errors.New("the interface declares no default assignment for this operation")
	ErrNoOperation         = errors.New("the interface declares no such operation, and no default operation exists")
	ErrNoInputs            = errors.New("a transition must consume at least one input")
	ErrDuplicateAssetTag   = errors.New("asset tag already registered for this assignment type")
)

// InvalidStateFieldError reports an assignment name the implementation
// does not bind.
type InvalidStateFieldError struct{ Name string }

func (e *InvalidStateFieldError) Error() string {
	return fmt.Sprintf("unknown state field %q", e.Name)
}

// StateKindError reports state added under an assignment type of a
// different kind.
type StateKindError struct {
	Ty   contract.AssignmentType
	Want contract.StateKind
	Got  contract.StateKind
}

func (e *StateKindError) Error() string {
	return fmt.Sprintf("assignment type %d holds state kind %d, not %d", e.Ty, e.Want, e.Got)
}

// ConservationError reports a fungible imbalance between consumed and
// produced state of one assignment type.
type ConservationError struct {
	Ty  contract.AssignmentType
	In  uint64
	Out uint64
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("assignment type %d consumes %d but produces %d", e.Ty, e.In, e.Out)
}

// TransitionBuilder accumulates inputs and typed assignments for a new
// transition of one contract under one interface implementation.
type TransitionBuilder struct {
	contractID     contract.ContractID
	iface          Iface
	schema         Schema
	impl           IfaceImpl
	operation      string
	transitionType uint16
	blank          bool

	assetTags   map[contract.AssignmentType]contract.AssetTag
	inputs      map[contract.Opout]contract.PersistedState
	assignments map[contract.AssignmentType][]contract.Assignment
}

func newBuilder(contractID contract.ContractID, ifc Iface, schema Schema, impl IfaceImpl) *TransitionBuilder {
	return &TransitionBuilder{
		contractID:  contractID,
		iface:       ifc,
		schema:      schema,
		impl:        impl,
		assetTags:   make(map[contract.AssignmentType]contract.AssetTag),
		inputs:      make(map[contract.Opout]contract.PersistedState),
		assignments: make(map[contract.AssignmentType][]contract.Assignment),
	}
}

// NamedTransition builds transitions for the named interface operation.
func NamedTransition(contractID contract.ContractID, ifc Iface, schema Schema, impl IfaceImpl, operation string) (*TransitionBuilder, error) {
	ty, ok := impl.Operations[operation]
	if !ok {
		return nil, ErrNoOperation
	}
	b := newBuilder(contractID, ifc, schema, impl)
	b.operation = operation
	b.transitionType = ty
	return b, nil
}

// DefaultTransition builds transitions for the interface's default
// operation.
func DefaultTransition(contractID contract.ContractID, ifc Iface, schema Schema, impl IfaceImpl) (*TransitionBuilder, error) {
	if ifc.DefaultOperation == "" {
		return nil, ErrNoOperation
	}
	return NamedTransition(contractID, ifc, schema, impl, ifc.DefaultOperation)
}

// BlankTransition builds transitions that carry state forward unchanged,
// protecting contracts that share spent outputs.
func BlankTransition(contractID contract.ContractID, ifc Iface, schema Schema, impl IfaceImpl) *TransitionBuilder {
	b := newBuilder(contractID, ifc, schema, impl)
	b.transitionType = BlankTransitionType
	b.blank = true
	return b
}

// AddAssetTag registers the asset tag for an assignment type. Tags come
// from the contract genesis and must not repeat.
func (b *TransitionBuilder) AddAssetTag(ty contract.AssignmentType, tag contract.AssetTag) error {
	if _, ok := b.assetTags[ty]; ok {
		return ErrDuplicateAssetTag
	}
	b.assetTags[ty] = tag
	return nil
}

// DefaultAssignment resolves the assignment name the interface declares
// for the builder's operation.
func (b *TransitionBuilder) DefaultAssignment() (string, error) {
	op, ok := b.iface.Operations[b.operation]
	if !ok || op.DefaultAssignment == "" {
		return "", ErrNoDefaultAssignment
	}
	return op.DefaultAssignment, nil
}

// AssignmentType resolves an assignment name to its concrete type.
func (b *TransitionBuilder) AssignmentType(name string) (contract.AssignmentType, error) {
	ty, ok := b.impl.Assignments[name]
	if !ok {
		return 0, &InvalidStateFieldError{Name: name}
	}
	return ty, nil
}

// AddInput consumes a prior output together with the state assigned there.
func (b *TransitionBuilder) AddInput(opout contract.Opout, state contract.PersistedState) error {
	if _, ok := b.inputs[opout]; ok {
		return fmt.Errorf("input %s added twice", opout)
	}
	b.inputs[opout] = state
	return nil
}

// AddOwnedStateRaw emits existing state unchanged at a new seal.
func (b *TransitionBuilder) AddOwnedStateRaw(ty contract.AssignmentType, seal contract.AssignmentSeal, state contract.PersistedState) error {
	if want, ok := b.schema.OwnedTypes[ty]; ok && want != state.Kind {
		return &StateKindError{Ty: ty, Want: want, Got: state.Kind}
	}
	b.assignments[ty] = append(b.assignments[ty], contract.Assignment{Seal: seal, State: state})
	return nil
}

// AddFungibleStateRaw emits a blinded fungible amount at a new seal.
func (b *TransitionBuilder) AddFungibleStateRaw(ty contract.AssignmentType, seal contract.AssignmentSeal, amount uint64, blinding contract.BlindingFactor) error {
	if want, ok := b.schema.OwnedTypes[ty]; ok && want != contract.KindAmount {
		return &StateKindError{Ty: ty, Want: want, Got: contract.KindAmount}
	}
	state := contract.AmountState(amount, blinding, b.assetTags[ty])
	b.assignments[ty] = append(b.assignments[ty], contract.Assignment{Seal: seal, State: state})
	return nil
}

// AddDataRaw emits a non-fungible allocation at a new seal.
func (b *TransitionBuilder) AddDataRaw(ty contract.AssignmentType, seal contract.AssignmentSeal, allocation []byte, blinding uint64) error {
	if want, ok := b.schema.OwnedTypes[ty]; ok && want != contract.KindData {
		return &StateKindError{Ty: ty, Want: want, Got: contract.KindData}
	}
	state := contract.DataState(allocation, blinding)
	b.assignments[ty] = append(b.assignments[ty], contract.Assignment{Seal: seal, State: state})
	return nil
}

// Finalize checks fungible conservation per assignment type and produces
// the transition.
func (b *TransitionBuilder) Finalize() (contract.Transition, error) {
	if len(b.inputs) == 0 {
		return contract.Transition{}, ErrNoInputs
	}

	consumed := make(map[contract.AssignmentType]uint64)
	for opout, state := range b.inputs {
		if state.Kind == contract.KindAmount {
			consumed[opout.Ty] += state.Amount
		}
	}
	produced := make(map[contract.AssignmentType]uint64)
	for ty, list := range b.assignments {
		for _, a := range list {
			if a.State.Kind == contract.KindAmount {
				produced[ty] += a.State.Amount
			}
		}
	}
	for ty, in := range consumed {
		if out := produced[ty]; out != in {
			return contract.Transition{}, &ConservationError{Ty: ty, In: in, Out: out}
		}
	}
	for ty, out := range produced {
		if _, ok := consumed[ty]; !ok && out > 0 {
			return contract.Transition{}, &ConservationError{Ty: ty, In: 0, Out: out}
		}
	}

	inputs := make([]contract.Input, 0, len(b.inputs))
	for opout := range b.inputs {
		inputs = append(inputs, contract.Input{PrevOut: opout})
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].PrevOut.Less(inputs[j].PrevOut) })

	return contract.Transition{
		ContractID:     b.contractID,
		TransitionType: b.transitionType,
		Inputs:         inputs,
		Assignments:    b.assignments,
	}, nil
}
