package containers

import (
	"errors"
	"fmt"

	"github.com/eauxxs/rgb-std/pkg/confined"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
)

// ContainerVer tags the consignment container format. Versions 0 and 1
// predate this library and are not supported.
type ContainerVer uint8

const ContainerV2 ContainerVer = 2

// Bounds carries the consensus-derived ceilings on consignment and batch
// collections. Bounds are runtime parameters so different consensus
// parameter sets can vary them without recompilation.
type Bounds struct {
	MaxBundles           int
	MaxTerminals         int
	MaxBlanks            int
	MaxBundleTransitions int
	MaxTerminalSeals     int
}

// DefaultBounds mirrors the consensus constants of the reference
// parameter set.
func DefaultBounds() Bounds {
	return Bounds{
		MaxBundles:           1<<24 - 1,
		MaxTerminals:         1<<24 - 1,
		MaxBlanks:            1<<24 - 1,
		MaxBundleTransitions: 1<<16 - 1,
		MaxTerminalSeals:     1<<16 - 1,
	}
}

var ErrUnsupportedContainerVer = errors.New("unsupported container version")

// Consignment is the exported proof package of one contract: its schema,
// genesis, interface implementations, anchored bundle set and disclosure
// terminals. The transfer flag distinguishes a full contract export from
// a transfer disclosure.
type Consignment struct {
	Version  ContainerVer `json:"version"`
	Transfer bool         `json:"transfer"`

	Schema  iface.Schema     `json:"schema"`
	Genesis contract.Genesis `json:"genesis"`

	Ifaces map[contract.IfaceID]iface.IfacePair `json:"ifaces,omitempty"`

	// Bundles are ordered by witness id; at most one entry per witness.
	Bundles []BundledWitness `json:"bundles"`

	// Terminals hold at most one entry per bundle id.
	Terminals map[contract.BundleID]Terminal `json:"terminals,omitempty"`

	Signatures map[ContentID]ContentSigs `json:"signatures,omitempty"`
}

// NewConsignment starts an empty consignment for a contract.
func NewConsignment(schema iface.Schema, genesis contract.Genesis) Consignment {
	return Consignment{
		Version:   ContainerV2,
		Schema:    schema,
		Genesis:   genesis,
		Ifaces:    make(map[contract.IfaceID]iface.IfacePair),
		Terminals: make(map[contract.BundleID]Terminal),
	}
}

// ContractID returns the id of the consigned contract.
func (c Consignment) ContractID() contract.ContractID {
	return c.Genesis.ContractID()
}

// WitnessIDs lists the ids of every bundled witness, in container order.
func (c Consignment) WitnessIDs() []contract.WitnessID {
	out := make([]contract.WitnessID, 0, len(c.Bundles))
	for _, bw := range c.Bundles {
		out = append(out, bw.WitnessID)
	}
	return out
}

// Validate checks the structural invariants of the container against the
// given bounds: version tag, collection ceilings, bundle consistency and
// anchor relation for the consigned contract.
func (c Consignment) Validate(bounds Bounds) error {
	if c.Version != ContainerV2 {
		return ErrUnsupportedContainerVer
	}
	if err := confined.CheckLen("consignment bundles", len(c.Bundles), 0, bounds.MaxBundles); err != nil {
		return err
	}
	if err := confined.CheckLen("consignment terminals", len(c.Terminals), 0, bounds.MaxTerminals); err != nil {
		return err
	}
	contractID := c.ContractID()
	seen := make(map[contract.WitnessID]struct{}, len(c.Bundles))
	for _, bw := range c.Bundles {
		if _, ok := seen[bw.WitnessID]; ok {
			return fmt.Errorf("witness %s appears twice in the consignment", bw.WitnessID)
		}
		seen[bw.WitnessID] = struct{}{}
		bundle, ok := bw.Bundle(contractID)
		if !ok {
			return fmt.Errorf("witness %s carries no bundle for contract %s", bw.WitnessID, contractID)
		}
		if err := confined.CheckLen("bundle transitions", len(bundle.KnownTransitions), 0, bounds.MaxBundleTransitions); err != nil {
			return err
		}
		if !bundle.CheckConsistency() {
			return fmt.Errorf("bundle %s of witness %s reveals transitions outside its input map", bundle.BundleID(), bw.WitnessID)
		}
		if !bw.Anchor.RelatesTo(contractID, bundle.BundleID()) {
			return fmt.Errorf("anchor of witness %s does not commit bundle %s", bw.WitnessID, bundle.BundleID())
		}
	}
	for _, terminal := range c.Terminals {
		if err := confined.CheckLen("terminal seals", len(terminal.Seals), 1, bounds.MaxTerminalSeals); err != nil {
			return err
		}
	}
	for contentID, sigs := range c.Signatures {
		if err := confined.CheckLen(fmt.Sprintf("signatures over %s", contentID), len(sigs), MinSigs, MaxSigs); err != nil {
			return err
		}
	}
	return nil
}
