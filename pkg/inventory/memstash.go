package inventory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
)

// MemStash is an in-memory Stash. It keeps the authoritative data in plain
// maps and derives the output, secret-seal and public-state indexes from
// revealed assignment seals. All operations run under one lock, so a Fold
// is atomic by construction.
//
// MemStash backs tests and the file-snapshot mode of the CLI; the Postgres
// store is the production implementation.
type MemStash struct {
	mu sync.RWMutex

	schemas map[contract.SchemaID]iface.Schema
	ifaces  map[contract.IfaceID]iface.Iface
	impls   map[contract.ImplID]iface.IfaceImpl
	geneses map[contract.ContractID]contract.Genesis
	suppls  map[contract.ContractID]iface.Supplement
	sigs    map[containers.ContentID]containers.ContentSigs
	seals   map[contract.SecretSeal]contract.GraphSeal

	witnesses      map[contract.WitnessID]containers.SealWitness
	witnessBundles map[contract.WitnessID]map[contract.ContractID]contract.BundleID
	bundles        map[contract.BundleID]contract.TransitionBundle
	bundleWitness  map[contract.BundleID]contract.WitnessID
	bundleContract map[contract.BundleID]contract.ContractID
	opBundle       map[contract.OpID]contract.BundleID

	// Derived indexes, rebuilt incrementally on every mutation.
	outIndex    map[contract.OutputSeal]map[contract.Opout]contract.ContractID
	secretIndex map[contract.SecretSeal]map[contract.Opout]contract.ContractID
	pubIndex    map[contract.ContractID]map[contract.Opout]struct{}
	stateIndex  map[contract.ContractID]map[contract.Opout]contract.PersistedState
}

// NewMemStash makes an empty in-memory stash.
func NewMemStash() *MemStash {
	s := &MemStash{}
	s.reset()
	return s
}

func (s *MemStash) reset() {
	s.schemas = make(map[contract.SchemaID]iface.Schema)
	s.ifaces = make(map[contract.IfaceID]iface.Iface)
	s.impls = make(map[contract.ImplID]iface.IfaceImpl)
	s.geneses = make(map[contract.ContractID]contract.Genesis)
	s.suppls = make(map[contract.ContractID]iface.Supplement)
	s.sigs = make(map[containers.ContentID]containers.ContentSigs)
	s.seals = make(map[contract.SecretSeal]contract.GraphSeal)
	s.witnesses = make(map[contract.WitnessID]containers.SealWitness)
	s.witnessBundles = make(map[contract.WitnessID]map[contract.ContractID]contract.BundleID)
	s.bundles = make(map[contract.BundleID]contract.TransitionBundle)
	s.bundleWitness = make(map[contract.BundleID]contract.WitnessID)
	s.bundleContract = make(map[contract.BundleID]contract.ContractID)
	s.opBundle = make(map[contract.OpID]contract.BundleID)
	s.outIndex = make(map[contract.OutputSeal]map[contract.Opout]contract.ContractID)
	s.secretIndex = make(map[contract.SecretSeal]map[contract.Opout]contract.ContractID)
	s.pubIndex = make(map[contract.ContractID]map[contract.Opout]struct{})
	s.stateIndex = make(map[contract.ContractID]map[contract.Opout]contract.PersistedState)
}

var _ Stash = (*MemStash)(nil)

func (s *MemStash) Schema(_ context.Context, id contract.SchemaID) (iface.SchemaIfaces, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemaIfacesLocked(id)
}

func (s *MemStash) schemaIfacesLocked(id contract.SchemaID) (iface.SchemaIfaces, error) {
	schema, ok := s.schemas[id]
	if !ok {
		return iface.SchemaIfaces{}, &NotFoundError{Kind: "schema", ID: id.String()}
	}
	out := iface.SchemaIfaces{
		Schema: schema,
		Impls:  make(map[contract.IfaceID]iface.IfaceImpl),
		Ifaces: make(map[contract.IfaceID]iface.Iface),
	}
	for _, impl := range s.impls {
		if impl.SchemaID != id {
			continue
		}
		out.Impls[impl.IfaceID] = impl
		if ifc, ok := s.ifaces[impl.IfaceID]; ok {
			out.Ifaces[impl.IfaceID] = ifc
		}
	}
	return out, nil
}

func (s *MemStash) Iface(_ context.Context, id contract.IfaceID) (iface.Iface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ifc, ok := s.ifaces[id]
	if !ok {
		return iface.Iface{}, &NotFoundError{Kind: "iface", ID: id.String()}
	}
	return ifc, nil
}

func (s *MemStash) IfaceByName(_ context.Context, name string) (iface.Iface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ifc := range s.ifaces {
		if ifc.Name == name {
			return ifc, nil
		}
	}
	return iface.Iface{}, &NotFoundError{Kind: "iface", ID: name}
}

func (s *MemStash) Genesis(_ context.Context, id contract.ContractID) (contract.Genesis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	genesis, ok := s.geneses[id]
	if !ok {
		return contract.Genesis{}, &NotFoundError{Kind: "contract", ID: id.String()}
	}
	return genesis, nil
}

func (s *MemStash) ContractSchema(_ context.Context, id contract.ContractID) (iface.SchemaIfaces, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	genesis, ok := s.geneses[id]
	if !ok {
		return iface.SchemaIfaces{}, &NotFoundError{Kind: "contract", ID: id.String()}
	}
	return s.schemaIfacesLocked(genesis.SchemaID)
}

func (s *MemStash) ContractSuppl(_ context.Context, id contract.ContractID) (*iface.Supplement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	suppl, ok := s.suppls[id]
	if !ok {
		return nil, nil
	}
	return &suppl, nil
}

func (s *MemStash) ContractIDsByIface(_ context.Context, ifaceName string) ([]contract.ContractID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ifaceID contract.IfaceID
	found := false
	for id, ifc := range s.ifaces {
		if ifc.Name == ifaceName {
			ifaceID, found = id, true
			break
		}
	}
	if !found {
		return nil, nil
	}
	implemented := make(map[contract.SchemaID]struct{})
	for _, impl := range s.impls {
		if impl.IfaceID == ifaceID {
			implemented[impl.SchemaID] = struct{}{}
		}
	}
	var out []contract.ContractID
	for id, genesis := range s.geneses {
		if _, ok := implemented[genesis.SchemaID]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *MemStash) Transition(_ context.Context, id contract.OpID) (contract.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bundleID, ok := s.opBundle[id]
	if !ok {
		return contract.Transition{}, &NotFoundError{Kind: "transition", ID: id.String()}
	}
	t, ok := s.bundles[bundleID].KnownTransitions[id]
	if !ok {
		return contract.Transition{}, &NotFoundError{Kind: "transition", ID: id.String()}
	}
	return t, nil
}

func (s *MemStash) OpBundleID(_ context.Context, id contract.OpID) (contract.BundleID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bundleID, ok := s.opBundle[id]
	if !ok {
		return contract.BundleID{}, &NotFoundError{Kind: "operation", ID: id.String()}
	}
	return bundleID, nil
}

func (s *MemStash) BundledWitness(_ context.Context, id contract.BundleID) (containers.BundledWitness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	witnessID, ok := s.bundleWitness[id]
	if !ok {
		return containers.BundledWitness{}, &NotFoundError{Kind: "bundle", ID: id.String()}
	}
	witness := s.witnesses[witnessID]
	out := containers.BundledWitness{
		WitnessID: witnessID,
		Anchor:    witness.Anchor,
		Bundles:   make(map[contract.ContractID]contract.TransitionBundle),
	}
	for contractID, bundleID := range s.witnessBundles[witnessID] {
		// Cloned so callers revealing into the copy never touch stored
		// bundles outside the lock.
		out.Bundles[contractID] = s.bundles[bundleID].Clone()
	}
	return out, nil
}

func (s *MemStash) ContractsByOutputs(_ context.Context, outputs []contract.OutputSeal) ([]contract.ContractID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[contract.ContractID]struct{})
	var out []contract.ContractID
	for _, output := range outputs {
		for _, contractID := range s.outIndex[output] {
			if _, ok := seen[contractID]; ok {
				continue
			}
			seen[contractID] = struct{}{}
			out = append(out, contractID)
		}
	}
	return out, nil
}

func (s *MemStash) PublicOpouts(_ context.Context, id contract.ContractID) ([]contract.Opout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contract.Opout, 0, len(s.pubIndex[id]))
	for opout := range s.pubIndex[id] {
		out = append(out, opout)
	}
	return out, nil
}

func (s *MemStash) OpoutsByOutputs(_ context.Context, id contract.ContractID, outputs []contract.OutputSeal) ([]contract.Opout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contract.Opout
	for _, output := range outputs {
		for opout, contractID := range s.outIndex[output] {
			if contractID == id {
				out = append(out, opout)
			}
		}
	}
	return out, nil
}

func (s *MemStash) OpoutsByTerminals(_ context.Context, terminals []contract.SecretSeal) ([]contract.Opout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contract.Opout
	for _, secret := range terminals {
		for opout := range s.secretIndex[secret] {
			out = append(out, opout)
		}
	}
	return out, nil
}

func (s *MemStash) StateForOutputs(_ context.Context, id contract.ContractID, outputs []contract.OutputSeal) ([]OutputAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []OutputAssignment
	for _, output := range outputs {
		for opout, contractID := range s.outIndex[output] {
			if contractID != id {
				continue
			}
			state, ok := s.stateIndex[id][opout]
			if !ok {
				return nil, &NotFoundError{Kind: "state", ID: opout.String()}
			}
			out = append(out, OutputAssignment{Opout: opout, Output: output, State: state})
		}
	}
	return out, nil
}

func (s *MemStash) StoreSchema(_ context.Context, schema iface.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[schema.ID()] = schema
	return nil
}

func (s *MemStash) StoreIface(_ context.Context, ifc iface.Iface) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ifaces[ifc.ID()] = ifc
	return nil
}

func (s *MemStash) StoreIfaceImpl(_ context.Context, impl iface.IfaceImpl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.impls[impl.ID()] = impl
	return nil
}

func (s *MemStash) StoreSuppl(_ context.Context, suppl iface.Supplement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppls[suppl.ContractID] = suppl
	return nil
}

func (s *MemStash) StoreGenesis(_ context.Context, genesis contract.Genesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contractID := genesis.ContractID()
	s.geneses[contractID] = genesis
	// Genesis outputs are addressed with the contract id in place of an
	// operation id. Genesis seals carry explicit txids, so resolution
	// needs no witness.
	s.indexAssignmentsLocked(contractID, contract.OpID(contractID), genesis.Assignments, contract.WitnessID{})
	return nil
}

func (s *MemStash) StoreSigs(_ context.Context, contentID containers.ContentID, sigs containers.ContentSigs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if known, ok := s.sigs[contentID]; ok {
		merged, err := known.Merge(sigs)
		if err != nil {
			return err
		}
		s.sigs[contentID] = merged
		return nil
	}
	s.sigs[contentID] = sigs
	return nil
}

// Sigs returns the stored attestations over a content id.
func (s *MemStash) Sigs(contentID containers.ContentID) (containers.ContentSigs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sigs, ok := s.sigs[contentID]
	return sigs, ok
}

func (s *MemStash) StoreSealSecret(_ context.Context, seal contract.GraphSeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seals[seal.Conceal()] = seal
	return nil
}

func (s *MemStash) SealSecrets(_ context.Context) ([]contract.GraphSeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contract.GraphSeal, 0, len(s.seals))
	for _, seal := range s.seals {
		out = append(out, seal)
	}
	return out, nil
}

// Fold merges a witness anchor and its bundles into the stash. All merges
// are staged before anything is written, so a conflicting reveal leaves
// the stash untouched.
func (s *MemStash) Fold(_ context.Context, witness containers.SealWitness, bundles map[contract.ContractID]contract.TransitionBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := witness.Anchor
	if known, ok := s.witnesses[witness.WitnessID]; ok {
		merged, err := known.Anchor.Merge(anchor)
		if err != nil {
			return err
		}
		anchor = merged
	}
	staged := make(map[contract.ContractID]contract.TransitionBundle, len(bundles))
	for contractID, bundle := range bundles {
		if known, ok := s.bundles[bundle.BundleID()]; ok {
			merged, err := known.MergeReveal(bundle)
			if err != nil {
				return err
			}
			bundle = merged
		}
		staged[contractID] = bundle
	}

	s.witnesses[witness.WitnessID] = containers.SealWitness{WitnessID: witness.WitnessID, Anchor: anchor}
	byContract, ok := s.witnessBundles[witness.WitnessID]
	if !ok {
		byContract = make(map[contract.ContractID]contract.BundleID)
		s.witnessBundles[witness.WitnessID] = byContract
	}
	for contractID, bundle := range staged {
		bundleID := bundle.BundleID()
		s.bundles[bundleID] = bundle
		s.bundleWitness[bundleID] = witness.WitnessID
		s.bundleContract[bundleID] = contractID
		byContract[contractID] = bundleID
		for _, opid := range bundle.InputMap {
			s.opBundle[opid] = bundleID
		}
		for opid, t := range bundle.KnownTransitions {
			s.indexAssignmentsLocked(contractID, opid, t.Assignments, witness.WitnessID)
		}
	}
	return nil
}

// indexAssignmentsLocked rebuilds the derived index entries for one
// operation's assignments. Entries are keyed, so re-indexing after a
// merge-reveal is idempotent.
func (s *MemStash) indexAssignmentsLocked(contractID contract.ContractID, opid contract.OpID, assignments map[contract.AssignmentType][]contract.Assignment, witnessID contract.WitnessID) {
	var schema iface.Schema
	haveSchema := false
	if genesis, ok := s.geneses[contractID]; ok {
		schema, haveSchema = s.schemas[genesis.SchemaID]
	}
	for ty, list := range assignments {
		for no, a := range list {
			opout := contract.Opout{Op: opid, Ty: ty, No: uint16(no)}
			secret := a.Seal.Secret()
			if s.secretIndex[secret] == nil {
				s.secretIndex[secret] = make(map[contract.Opout]contract.ContractID)
			}
			s.secretIndex[secret][opout] = contractID
			if haveSchema && schema.IsPublic(ty) {
				if s.pubIndex[contractID] == nil {
					s.pubIndex[contractID] = make(map[contract.Opout]struct{})
				}
				s.pubIndex[contractID][opout] = struct{}{}
			}
			if !a.Seal.IsRevealed() {
				continue
			}
			output := a.Seal.Revealed.Resolve(witnessID)
			if s.outIndex[output] == nil {
				s.outIndex[output] = make(map[contract.Opout]contract.ContractID)
			}
			s.outIndex[output][opout] = contractID
			if s.stateIndex[contractID] == nil {
				s.stateIndex[contractID] = make(map[contract.Opout]contract.PersistedState)
			}
			s.stateIndex[contractID][opout] = a.State
		}
	}
}

// memSnapshot is the serialized form of a MemStash. Only authoritative
// data is stored; indexes are rebuilt on load.
type memSnapshot struct {
	Schemas   []iface.Schema                                  `json:"schemas,omitempty"`
	Ifaces    []iface.Iface                                   `json:"ifaces,omitempty"`
	Impls     []iface.IfaceImpl                               `json:"impls,omitempty"`
	Geneses   []contract.Genesis                              `json:"geneses,omitempty"`
	Suppls    []iface.Supplement                              `json:"suppls,omitempty"`
	Sigs      map[containers.ContentID]containers.ContentSigs `json:"sigs,omitempty"`
	Seals     []contract.GraphSeal                            `json:"seals,omitempty"`
	Witnesses []memWitnessSnapshot                            `json:"witnesses,omitempty"`
}

type memWitnessSnapshot struct {
	Witness containers.SealWitness                            `json:"witness"`
	Bundles map[contract.ContractID]contract.TransitionBundle `json:"bundles"`
}

// Snapshot serializes the stash contents to JSON.
func (s *MemStash) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap memSnapshot
	for _, schema := range s.schemas {
		snap.Schemas = append(snap.Schemas, schema)
	}
	for _, ifc := range s.ifaces {
		snap.Ifaces = append(snap.Ifaces, ifc)
	}
	for _, impl := range s.impls {
		snap.Impls = append(snap.Impls, impl)
	}
	for _, genesis := range s.geneses {
		snap.Geneses = append(snap.Geneses, genesis)
	}
	for _, suppl := range s.suppls {
		snap.Suppls = append(snap.Suppls, suppl)
	}
	if len(s.sigs) > 0 {
		snap.Sigs = s.sigs
	}
	for _, seal := range s.seals {
		snap.Seals = append(snap.Seals, seal)
	}
	for witnessID, witness := range s.witnesses {
		entry := memWitnessSnapshot{
			Witness: witness,
			Bundles: make(map[contract.ContractID]contract.TransitionBundle),
		}
		for contractID, bundleID := range s.witnessBundles[witnessID] {
			entry.Bundles[contractID] = s.bundles[bundleID]
		}
		snap.Witnesses = append(snap.Witnesses, entry)
	}
	return json.Marshal(snap)
}

// LoadSnapshot replaces the stash contents with a serialized snapshot and
// rebuilds all derived indexes.
func (s *MemStash) LoadSnapshot(data []byte) error {
	var snap memSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	s.reset()
	for _, schema := range snap.Schemas {
		s.schemas[schema.ID()] = schema
	}
	for _, ifc := range snap.Ifaces {
		s.ifaces[ifc.ID()] = ifc
	}
	for _, impl := range snap.Impls {
		s.impls[impl.ID()] = impl
	}
	for contentID, sigs := range snap.Sigs {
		s.sigs[contentID] = sigs
	}
	for _, suppl := range snap.Suppls {
		s.suppls[suppl.ContractID] = suppl
	}
	for _, seal := range snap.Seals {
		s.seals[seal.Conceal()] = seal
	}
	s.mu.Unlock()

	ctx := context.Background()
	for _, genesis := range snap.Geneses {
		if err := s.StoreGenesis(ctx, genesis); err != nil {
			return err
		}
	}
	for _, entry := range snap.Witnesses {
		if err := s.Fold(ctx, entry.Witness, entry.Bundles); err != nil {
			return err
		}
	}
	return nil
}
