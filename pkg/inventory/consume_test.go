package inventory

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/signature"
	"github.com/eauxxs/rgb-std/pkg/validate"
)

// spendGenesis builds a transfer of the full genesis amount to a
// witness-relative seal and wraps it in a fascia anchored by witnessTx.
func spendGenesis(genesis contract.Genesis, witnessTx byte) (containers.Fascia, contract.Transition) {
	contractID := genesis.ContractID()
	var total uint64
	inputs := make([]contract.Input, 0)
	for no := range genesis.Assignments[tyAssets] {
		total += genesis.Assignments[tyAssets][no].State.Amount
		inputs = append(inputs, contract.Input{
			PrevOut: contract.Opout{Op: contract.OpID(contractID), Ty: tyAssets, No: uint16(no)},
		})
	}
	transition := contract.Transition{
		ContractID:     contractID,
		TransitionType: 1,
		Inputs:         inputs,
		Assignments: map[contract.AssignmentType][]contract.Assignment{
			tyAssets: {{
				Seal:  contract.RevealedSeal(contract.NewBlindedVoutSeal(contract.ChainBitcoin, 0, 5)),
				State: contract.AmountState(total, contract.BlindingFactor{}, contract.AssetTag{}),
			}},
		},
	}
	bundle := contract.NewBundle(transition)
	witness := containers.SealWitness{
		WitnessID: contract.WitnessID{Chain: contract.ChainBitcoin, Txid: testTxid(witnessTx)},
		Anchor: containers.Anchor{
			Commitments: map[contract.ContractID]contract.BundleID{contractID: bundle.BundleID()},
			Proof:       []byte{1},
		},
	}
	fascia := containers.Fascia{
		Witness: witness,
		Bundles: map[contract.ContractID]contract.TransitionBundle{contractID: bundle},
	}
	return fascia, transition
}

// spendTransition moves the full amount of an earlier hop to a fresh
// witness-relative seal, extending the history by one witness.
func spendTransition(prev contract.Transition, witnessTx byte) (containers.Fascia, contract.Transition) {
	contractID := prev.ContractID
	amount := prev.Assignments[tyAssets][0].State.Amount
	transition := contract.Transition{
		ContractID:     contractID,
		TransitionType: 1,
		Inputs:         []contract.Input{{PrevOut: contract.Opout{Op: prev.ID(), Ty: tyAssets, No: 0}}},
		Assignments: map[contract.AssignmentType][]contract.Assignment{
			tyAssets: {{
				Seal:  contract.RevealedSeal(contract.NewBlindedVoutSeal(contract.ChainBitcoin, 0, 6)),
				State: contract.AmountState(amount, contract.BlindingFactor{}, contract.AssetTag{}),
			}},
		},
	}
	bundle := contract.NewBundle(transition)
	witness := containers.SealWitness{
		WitnessID: contract.WitnessID{Chain: contract.ChainBitcoin, Txid: testTxid(witnessTx)},
		Anchor: containers.Anchor{
			Commitments: map[contract.ContractID]contract.BundleID{contractID: bundle.BundleID()},
			Proof:       []byte{1},
		},
	}
	fascia := containers.Fascia{
		Witness: witness,
		Bundles: map[contract.ContractID]contract.TransitionBundle{contractID: bundle},
	}
	return fascia, transition
}

func TestConsumeFoldsWitnessData(t *testing.T) {
	genesis := testGenesis(1, 30, 40)
	inv, _ := newTestInventory(t, genesis)
	fascia, transition := spendGenesis(genesis, 20)

	if err := inv.Consume(context.Background(), fascia); err != nil {
		t.Fatalf("consume: %v", err)
	}
	got, err := inv.Transition(context.Background(), transition.ID())
	if err != nil {
		t.Fatalf("transition lookup: %v", err)
	}
	if got.ID() != transition.ID() {
		t.Fatalf("stored transition mismatch")
	}
	bundleID, err := inv.OpBundleID(context.Background(), transition.ID())
	if err != nil {
		t.Fatalf("bundle id lookup: %v", err)
	}
	bw, err := inv.BundledWitness(context.Background(), bundleID)
	if err != nil {
		t.Fatalf("bundled witness lookup: %v", err)
	}
	if bw.WitnessID != fascia.Witness.WitnessID {
		t.Fatalf("witness mismatch")
	}
}

func TestConsumeRejectsInconsistentBundle(t *testing.T) {
	genesis := testGenesis(1, 30)
	inv, _ := newTestInventory(t, genesis)
	fascia, _ := spendGenesis(genesis, 20)

	foreign := contract.Transition{
		ContractID:     genesis.ContractID(),
		TransitionType: 2,
		Inputs:         []contract.Input{{PrevOut: contract.Opout{Op: contract.Hash32{9}, Ty: tyAssets, No: 0}}},
	}
	bundle := fascia.Bundles[genesis.ContractID()]
	bundle.KnownTransitions[foreign.ID()] = foreign
	fascia.Bundles[genesis.ContractID()] = bundle

	err := inv.Consume(context.Background(), fascia)
	if CodeOf(err) != CodeInvalidBundle || !IsDataError(err) {
		t.Fatalf("expected InvalidBundle data error, got %v", err)
	}
	// Rejection must not leave partial state behind.
	if _, err := inv.OpBundleID(context.Background(), foreign.ID()); err == nil {
		t.Fatalf("expected nothing folded")
	}
}

func TestConsumeRejectsUnrelatedAnchor(t *testing.T) {
	genesis := testGenesis(1, 30)
	inv, _ := newTestInventory(t, genesis)
	fascia, _ := spendGenesis(genesis, 20)
	fascia.Witness.Anchor.Commitments = map[contract.ContractID]contract.BundleID{genesis.ContractID(): {42}}

	err := inv.Consume(context.Background(), fascia)
	if CodeOf(err) != CodeUnrelatedAnchor || !IsInternal(err) {
		t.Fatalf("expected UnrelatedAnchor internal error, got %v", err)
	}
}

func TestConsumeReportsMergeConflicts(t *testing.T) {
	genesis := testGenesis(1, 30)
	inv, _ := newTestInventory(t, genesis)
	fascia, _ := spendGenesis(genesis, 20)
	if err := inv.Consume(context.Background(), fascia); err != nil {
		t.Fatalf("consume: %v", err)
	}

	// A second observation of the same witness with a different anchor
	// proof contradicts the recorded one.
	conflicting := fascia
	conflicting.Witness.Anchor.Proof = []byte{2}
	err := inv.Consume(context.Background(), conflicting)
	if CodeOf(err) != CodeMergeConflict || !IsDataError(err) {
		t.Fatalf("expected MergeConflict data error, got %v", err)
	}
}

func TestConsumeEnforcesBundleCeiling(t *testing.T) {
	genesis := testGenesis(1, 30)
	inv, _ := newTestInventory(t, genesis)
	bounds := containers.DefaultBounds()
	bounds.MaxBundleTransitions = 0
	inv = New(inv.Stash(), stubResolver{}, stubValidator{}, WithBounds(bounds))

	fascia, _ := spendGenesis(genesis, 20)
	err := inv.Consume(context.Background(), fascia)
	if CodeOf(err) != CodeOutsizedBundle {
		t.Fatalf("expected OutsizedBundle, got %v", err)
	}
}

func TestConsignDisclosesTerminalAndTraversesToGenesis(t *testing.T) {
	genesis := testGenesis(1, 30, 40)
	inv, _ := newTestInventory(t, genesis)
	fascia, transition := spendGenesis(genesis, 20)
	if err := inv.Consume(context.Background(), fascia); err != nil {
		t.Fatalf("consume: %v", err)
	}

	// The transferred state now sits on vout 0 of the witness.
	output := contract.OutputSeal{Chain: contract.ChainBitcoin, Txid: testTxid(20), Vout: 0}
	consignment, err := inv.Transfer(context.Background(), genesis.ContractID(), []contract.OutputSeal{output}, nil)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !consignment.Transfer {
		t.Fatalf("expected transfer flag")
	}
	if consignment.ContractID() != genesis.ContractID() {
		t.Fatalf("contract id mismatch")
	}
	if len(consignment.Bundles) != 1 {
		t.Fatalf("expected one bundled witness, got %d", len(consignment.Bundles))
	}
	bundle, ok := consignment.Bundles[0].Bundle(genesis.ContractID())
	if !ok {
		t.Fatalf("expected the contract's bundle")
	}
	if _, ok := bundle.KnownTransitions[transition.ID()]; !ok {
		t.Fatalf("expected the disclosed transition revealed")
	}
	terminal, ok := consignment.Terminals[bundle.BundleID()]
	if !ok || len(terminal.Seals) != 1 {
		t.Fatalf("expected one terminal seal, got %+v", consignment.Terminals)
	}
	if err := consignment.Validate(inv.Bounds()); err != nil {
		t.Fatalf("consignment must validate: %v", err)
	}
}

func TestConsignBySecretSeal(t *testing.T) {
	genesis := testGenesis(1, 30)
	inv, _ := newTestInventory(t, genesis)
	fascia, transition := spendGenesis(genesis, 20)
	if err := inv.Consume(context.Background(), fascia); err != nil {
		t.Fatalf("consume: %v", err)
	}
	secret := transition.Assignments[tyAssets][0].Seal.Secret()
	consignment, err := inv.Transfer(context.Background(), genesis.ContractID(), nil, []contract.SecretSeal{secret})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(consignment.Bundles) != 1 || len(consignment.Terminals) != 1 {
		t.Fatalf("expected the terminal disclosed via its secret")
	}
}

func TestConsignIsDeterministic(t *testing.T) {
	genesis := testGenesis(1, 30, 40)
	inv, _ := newTestInventory(t, genesis)
	fascia, _ := spendGenesis(genesis, 20)
	if err := inv.Consume(context.Background(), fascia); err != nil {
		t.Fatalf("consume: %v", err)
	}
	output := contract.OutputSeal{Chain: contract.ChainBitcoin, Txid: testTxid(20), Vout: 0}

	a, err := inv.Transfer(context.Background(), genesis.ContractID(), []contract.OutputSeal{output}, nil)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	b, err := inv.Transfer(context.Background(), genesis.ContractID(), []contract.OutputSeal{output}, nil)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aJSON, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(aJSON, bJSON) {
		t.Fatalf("two consignments of the same state must serialize identically")
	}
}

// Concurrent transfers over a multi-hop history must not write into
// stash-owned bundles: the traversal reveals earlier transitions into
// the bundles it fetched, and those have to be private copies.
func TestConcurrentTransfersLeaveStashUntouched(t *testing.T) {
	genesis := testGenesis(1, 70)
	inv, _ := newTestInventory(t, genesis)
	ctx := context.Background()

	first, hop1 := spendGenesis(genesis, 20)
	if err := inv.Consume(ctx, first); err != nil {
		t.Fatalf("consume first hop: %v", err)
	}
	second, _ := spendTransition(hop1, 21)
	if err := inv.Consume(ctx, second); err != nil {
		t.Fatalf("consume second hop: %v", err)
	}
	output := contract.OutputSeal{Chain: contract.ChainBitcoin, Txid: testTxid(21), Vout: 0}

	want, err := inv.Transfer(ctx, genesis.ContractID(), []contract.OutputSeal{output}, nil)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	wantJSON, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := inv.Transfer(ctx, genesis.ContractID(), []contract.OutputSeal{output}, nil)
			if err != nil {
				errs <- err
				return
			}
			gotJSON, err := json.Marshal(got)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(gotJSON, wantJSON) {
				errs <- fmt.Errorf("concurrent consignments diverged")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent transfer: %v", err)
	}
}

func TestConsignEnforcesBundleCeiling(t *testing.T) {
	genesis := testGenesis(1, 30)
	inv, _ := newTestInventory(t, genesis)
	fascia, _ := spendGenesis(genesis, 20)
	if err := inv.Consume(context.Background(), fascia); err != nil {
		t.Fatalf("consume: %v", err)
	}
	bounds := containers.DefaultBounds()
	bounds.MaxBundles = 0
	inv = New(inv.Stash(), stubResolver{}, stubValidator{}, WithBounds(bounds))

	output := contract.OutputSeal{Chain: contract.ChainBitcoin, Txid: testTxid(20), Vout: 0}
	_, err := inv.Transfer(context.Background(), genesis.ContractID(), []contract.OutputSeal{output}, nil)
	if CodeOf(err) != CodeTooManyBundles || !IsDataError(err) {
		t.Fatalf("expected TooManyBundles data error, got %v", err)
	}
}

// exportedTransfer assembles a valid transfer consignment out of one
// seeded inventory, for import tests against a fresh one.
func exportedTransfer(t *testing.T) (containers.Consignment, contract.ContractID) {
	t.Helper()
	genesis := testGenesis(1, 30, 40)
	inv, _ := newTestInventory(t, genesis)
	fascia, _ := spendGenesis(genesis, 20)
	if err := inv.Consume(context.Background(), fascia); err != nil {
		t.Fatalf("consume: %v", err)
	}
	output := contract.OutputSeal{Chain: contract.ChainBitcoin, Txid: testTxid(20), Vout: 0}
	consignment, err := inv.Transfer(context.Background(), genesis.ContractID(), []contract.OutputSeal{output}, nil)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	return consignment, genesis.ContractID()
}

func TestImportContractAdmitsValidConsignment(t *testing.T) {
	consignment, contractID := exportedTransfer(t)

	stash := NewMemStash()
	inv := New(stash, stubResolver{}, stubValidator{})
	status, err := inv.ImportContract(context.Background(), consignment)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if status.Validity() != validate.Valid {
		t.Fatalf("expected valid status, got %s", status)
	}
	if _, err := stash.Genesis(context.Background(), contractID); err != nil {
		t.Fatalf("genesis not stored: %v", err)
	}
	for _, bw := range consignment.Bundles {
		bundle, _ := bw.Bundle(contractID)
		for opid := range bundle.KnownTransitions {
			if _, err := inv.Transition(context.Background(), opid); err != nil {
				t.Fatalf("transition %s not folded: %v", opid, err)
			}
		}
	}
}

func TestImportContractRejectsInvalidWithoutMutation(t *testing.T) {
	consignment, contractID := exportedTransfer(t)

	stash := NewMemStash()
	invalid := stubValidator{status: validate.Status{Failures: []validate.Failure{{Code: "SCHEMA_MISMATCH"}}}}
	inv := New(stash, stubResolver{}, invalid)
	_, err := inv.ImportContract(context.Background(), consignment)
	if CodeOf(err) != CodeInvalid || !IsDataError(err) {
		t.Fatalf("expected Invalid data error, got %v", err)
	}
	if _, err := stash.Genesis(context.Background(), contractID); err == nil {
		t.Fatalf("rejected import must not mutate the stash")
	}
}

func TestImportContractForceBypassesUnresolved(t *testing.T) {
	consignment, _ := exportedTransfer(t)
	witnessID := consignment.Bundles[0].WitnessID

	unresolved := stubValidator{status: validate.Status{Unresolved: []contract.WitnessID{witnessID}}}
	inv := New(NewMemStash(), stubResolver{}, unresolved)
	if _, err := inv.ImportContract(context.Background(), consignment); CodeOf(err) != CodeUnresolvedTransactions {
		t.Fatalf("expected UnresolvedTransactions, got %v", err)
	}

	inv = New(NewMemStash(), stubResolver{}, unresolved)
	if _, err := inv.ImportContractForce(context.Background(), consignment); err != nil {
		t.Fatalf("force import: %v", err)
	}
}

func TestAcceptTransferRequiresMinedTerminals(t *testing.T) {
	consignment, _ := exportedTransfer(t)
	witnessID := consignment.Bundles[0].WitnessID

	// Resolver reports the terminal witness as unmined.
	inv := New(NewMemStash(), stubResolver{heights: map[contract.WitnessID]uint32{}}, stubValidator{})
	if _, err := inv.AcceptTransfer(context.Background(), consignment); CodeOf(err) != CodeTerminalsUnmined {
		t.Fatalf("expected TerminalsUnmined, got %v", err)
	}

	inv = New(NewMemStash(), stubResolver{heights: map[contract.WitnessID]uint32{}}, stubValidator{})
	if _, err := inv.AcceptTransferForce(context.Background(), consignment); err != nil {
		t.Fatalf("force accept: %v", err)
	}

	mined := stubResolver{heights: map[contract.WitnessID]uint32{witnessID: 800_000}}
	inv = New(NewMemStash(), mined, stubValidator{})
	if _, err := inv.AcceptTransfer(context.Background(), consignment); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func TestImportRejectsWrongContainerVersion(t *testing.T) {
	consignment, _ := exportedTransfer(t)
	consignment.Version = 1
	inv := New(NewMemStash(), stubResolver{}, stubValidator{})
	if _, err := inv.ImportContract(context.Background(), consignment); !IsDataError(err) {
		t.Fatalf("expected data error, got %v", err)
	}
}

func TestImportIfaceImplRequiresKnownSchemaAndIface(t *testing.T) {
	inv := New(NewMemStash(), stubResolver{}, stubValidator{})
	ctx := context.Background()

	impl := testImpl()
	if _, err := inv.ImportIfaceImpl(ctx, impl); CodeOf(err) != CodeUnknownSchema {
		t.Fatalf("expected UnknownSchema, got %v", err)
	}
	if _, err := inv.ImportSchema(ctx, testSchema()); err != nil {
		t.Fatalf("import schema: %v", err)
	}
	if _, err := inv.ImportIfaceImpl(ctx, impl); CodeOf(err) != CodeUnknownIface {
		t.Fatalf("expected UnknownIface, got %v", err)
	}
	if _, err := inv.ImportIface(ctx, testIface()); err != nil {
		t.Fatalf("import iface: %v", err)
	}
	if _, err := inv.ImportIfaceImpl(ctx, impl); err != nil {
		t.Fatalf("import impl: %v", err)
	}
}

func attestationBlob(t *testing.T, contentHash [32]byte) []byte {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	env := signature.Envelope{
		Version:     "att-v1",
		Algorithm:   "ed25519",
		PublicKey:   base64.StdEncoding.EncodeToString(pub),
		Signature:   base64.StdEncoding.EncodeToString(ed25519.Sign(priv, contentHash[:])),
		ContentHash: hex.EncodeToString(contentHash[:]),
		IssuedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	blob, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return blob
}

func TestImportSigsVerifiesAndStores(t *testing.T) {
	stash := NewMemStash()
	inv := New(stash, stubResolver{}, stubValidator{})
	ctx := context.Background()

	schemaID := testSchema().ID()
	contentID := containers.ContentID{Kind: containers.ContentSchema, ID: schemaID}
	blob := attestationBlob(t, [32]byte(schemaID))

	if err := inv.ImportSigs(ctx, contentID, map[containers.Identity][]byte{"alice": blob}); err != nil {
		t.Fatalf("import sigs: %v", err)
	}
	if _, ok := stash.Sigs(contentID); !ok {
		t.Fatalf("expected signatures stored")
	}

	// A signature over different content must be rejected.
	wrong := attestationBlob(t, [32]byte{9})
	err := inv.ImportSigs(ctx, contentID, map[containers.Identity][]byte{"mallory": wrong})
	if CodeOf(err) != CodeInvalid || !IsDataError(err) {
		t.Fatalf("expected Invalid data error, got %v", err)
	}
}

func TestImportSigsEnforcesConfinement(t *testing.T) {
	inv := New(NewMemStash(), stubResolver{}, stubValidator{})
	contentID := containers.ContentID{Kind: containers.ContentSchema, ID: contract.Hash32{1}}

	if err := inv.ImportSigs(context.Background(), contentID, nil); CodeOf(err) != CodeConfinement {
		t.Fatalf("expected Confinement for empty set, got %v", err)
	}
	tooMany := make(map[containers.Identity][]byte)
	for i := 0; i < containers.MaxSigs+1; i++ {
		tooMany[containers.Identity(string(rune('a'+i)))] = []byte{1}
	}
	if err := inv.ImportSigs(context.Background(), contentID, tooMany); CodeOf(err) != CodeConfinement {
		t.Fatalf("expected Confinement for oversized set, got %v", err)
	}
}

func TestSealSecretRegistry(t *testing.T) {
	inv := New(NewMemStash(), stubResolver{}, stubValidator{})
	ctx := context.Background()
	seal := contract.GraphSeal{Chain: contract.ChainBitcoin, Txid: testTxid(3), Vout: 1, Blinding: 99}
	if err := inv.StoreSealSecret(ctx, seal); err != nil {
		t.Fatalf("store: %v", err)
	}
	seals, err := inv.SealSecrets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(seals) != 1 || seals[0] != seal {
		t.Fatalf("unexpected registry contents: %+v", seals)
	}
}
