// Package iface models contract ABI descriptors: schemata, interface
// definitions, interface implementations and the transition builder used
// to compose new operations against them.
package iface

import (
	"fmt"

	"github.com/eauxxs/rgb-std/pkg/canonhash"
	"github.com/eauxxs/rgb-std/pkg/contract"
)

// Schema declares the state types a contract carries. The full schema
// definition language is an external collaborator; only what the builder
// and the inventory need is modelled here.
type Schema struct {
	Name        string                                         `json:"name"`
	OwnedTypes  map[contract.AssignmentType]contract.StateKind `json:"ownedTypes"`
	PublicTypes map[contract.AssignmentType]bool               `json:"publicTypes,omitempty"`
	Transitions map[uint16]string                              `json:"transitions"`
}

// ID derives the schema id from the schema content.
func (s Schema) ID() contract.SchemaID {
	id, err := canonhash.SumID(s)
	if err != nil {
		panic(fmt.Sprintf("schema commitment: %v", err))
	}
	return contract.SchemaID(id)
}

// IsPublic reports whether state of the given type is publicly
// disclosable and must always travel with its seal revealed.
func (s Schema) IsPublic(ty contract.AssignmentType) bool { return s.PublicTypes[ty] }

// OperationIface describes one operation an interface exposes.
type OperationIface struct {
	DefaultAssignment string `json:"defaultAssignment,omitempty"`
}

// Iface is an interface definition: the abstract operation and state
// vocabulary contracts can implement.
type Iface struct {
	Name             string                    `json:"name"`
	Operations       map[string]OperationIface `json:"operations"`
	DefaultOperation string                    `json:"defaultOperation,omitempty"`
}

// ID derives the interface id from the interface content.
func (i Iface) ID() contract.IfaceID {
	id, err := canonhash.SumID(i)
	if err != nil {
		panic(fmt.Sprintf("iface commitment: %v", err))
	}
	return contract.IfaceID(id)
}

// IfaceImpl binds an interface vocabulary to the concrete types of one
// schema.
type IfaceImpl struct {
	SchemaID    contract.SchemaID                  `json:"schemaId"`
	IfaceID     contract.IfaceID                   `json:"ifaceId"`
	Assignments map[string]contract.AssignmentType `json:"assignments"`
	Operations  map[string]uint16                  `json:"operations"`
}

// ID derives the implementation id from the implementation content.
func (im IfaceImpl) ID() contract.ImplID {
	id, err := canonhash.SumID(im)
	if err != nil {
		panic(fmt.Sprintf("iface impl commitment: %v", err))
	}
	return contract.ImplID(id)
}

// IfacePair carries an interface together with its implementation for a
// concrete schema.
type IfacePair struct {
	Iface Iface     `json:"iface"`
	Impl  IfaceImpl `json:"impl"`
}

// SchemaIfaces is a schema plus every known interface implementation for
// it, keyed by interface id.
type SchemaIfaces struct {
	Schema Schema                         `json:"schema"`
	Impls  map[contract.IfaceID]IfaceImpl `json:"impls"`
	Ifaces map[contract.IfaceID]Iface     `json:"ifaces"`
}

// VelocityHint describes the expected reuse frequency of an assignment
// type. Allocators use it to pick an allocation strategy for change and
// blank outputs.
type VelocityHint uint8

const (
	VelocityUnspecified VelocityHint = 0
	VelocitySeldom      VelocityHint = 15
	VelocityEpisodic    VelocityHint = 31
	VelocityRegular     VelocityHint = 63
	VelocityFrequent    VelocityHint = 127
	VelocityHighFreq    VelocityHint = 255
)

func (v VelocityHint) String() string {
	switch v {
	case VelocityUnspecified:
		return "unspecified"
	case VelocitySeldom:
		return "seldom"
	case VelocityEpisodic:
		return "episodic"
	case VelocityRegular:
		return "regular"
	case VelocityFrequent:
		return "frequent"
	case VelocityHighFreq:
		return "high-frequency"
	default:
		return fmt.Sprintf("velocity(%d)", uint8(v))
	}
}

// Supplement carries non-consensus metadata about a contract, such as
// velocity hints for its owned state types.
type Supplement struct {
	ContractID contract.ContractID                      `json:"contractId"`
	OwnedState map[contract.AssignmentType]VelocityHint `json:"ownedState,omitempty"`
}

// ID derives the supplement id from the supplement content.
func (s Supplement) ID() contract.SupplID {
	id, err := canonhash.SumID(s)
	if err != nil {
		panic(fmt.Sprintf("supplement commitment: %v", err))
	}
	return contract.SupplID(id)
}

// Velocity returns the hint for an assignment type, defaulting to
// unspecified.
func (s *Supplement) Velocity(ty contract.AssignmentType) VelocityHint {
	if s == nil {
		return VelocityUnspecified
	}
	return s.OwnedState[ty]
}
