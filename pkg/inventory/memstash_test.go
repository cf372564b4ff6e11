package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/eauxxs/rgb-std/pkg/contract"
)

func TestMemStashMissesReturnNotFound(t *testing.T) {
	stash := NewMemStash()
	ctx := context.Background()
	var nf *NotFoundError

	if _, err := stash.Genesis(ctx, contract.ContractID{1}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := stash.Transition(ctx, contract.OpID{1}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := stash.IfaceByName(ctx, "RGB20"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMemStashFoldIsAtomicOnConflict(t *testing.T) {
	genesis := testGenesis(1, 30)
	_, stash := newTestInventory(t, genesis)
	ctx := context.Background()
	fascia, transition := spendGenesis(genesis, 20)
	if err := stash.Fold(ctx, fascia.Witness, fascia.Bundles); err != nil {
		t.Fatalf("fold: %v", err)
	}

	// Same witness, contradicting anchor proof: the fold must fail and
	// leave the first observation intact.
	conflicting := fascia.Witness
	conflicting.Anchor.Proof = []byte{2}
	if err := stash.Fold(ctx, conflicting, fascia.Bundles); err == nil {
		t.Fatalf("expected conflict")
	}
	bundleID, err := stash.OpBundleID(ctx, transition.ID())
	if err != nil {
		t.Fatalf("lookup after failed fold: %v", err)
	}
	bw, err := stash.BundledWitness(ctx, bundleID)
	if err != nil {
		t.Fatalf("lookup after failed fold: %v", err)
	}
	if len(bw.Anchor.Proof) != 1 || bw.Anchor.Proof[0] != 1 {
		t.Fatalf("failed fold must not alter the anchor, got %v", bw.Anchor.Proof)
	}
}

func TestMemStashFoldMergesReveals(t *testing.T) {
	genesis := testGenesis(1, 30)
	_, stash := newTestInventory(t, genesis)
	ctx := context.Background()
	fascia, transition := spendGenesis(genesis, 20)
	contractID := genesis.ContractID()

	// First observation: input map only, nothing revealed.
	partial := contract.TransitionBundle{InputMap: fascia.Bundles[contractID].InputMap}
	if err := stash.Fold(ctx, fascia.Witness, map[contract.ContractID]contract.TransitionBundle{contractID: partial}); err != nil {
		t.Fatalf("fold partial: %v", err)
	}
	if _, err := stash.Transition(ctx, transition.ID()); err == nil {
		t.Fatalf("transition must not be known yet")
	}

	// Second observation reveals the transition.
	if err := stash.Fold(ctx, fascia.Witness, fascia.Bundles); err != nil {
		t.Fatalf("fold reveal: %v", err)
	}
	if _, err := stash.Transition(ctx, transition.ID()); err != nil {
		t.Fatalf("transition lookup after reveal: %v", err)
	}
}

func TestMemStashSnapshotRoundTrip(t *testing.T) {
	genesis := testGenesis(1, 30, 40)
	inv, stash := newTestInventory(t, genesis)
	ctx := context.Background()
	fascia, transition := spendGenesis(genesis, 20)
	if err := inv.Consume(ctx, fascia); err != nil {
		t.Fatalf("consume: %v", err)
	}
	seal := contract.GraphSeal{Chain: contract.ChainBitcoin, Txid: testTxid(5), Vout: 0, Blinding: 3}
	if err := stash.StoreSealSecret(ctx, seal); err != nil {
		t.Fatalf("store seal: %v", err)
	}

	data, err := stash.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	restored := NewMemStash()
	if err := restored.LoadSnapshot(data); err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := restored.Genesis(ctx, genesis.ContractID()); err != nil {
		t.Fatalf("genesis after restore: %v", err)
	}
	if _, err := restored.Transition(ctx, transition.ID()); err != nil {
		t.Fatalf("transition after restore: %v", err)
	}
	seals, err := restored.SealSecrets(ctx)
	if err != nil || len(seals) != 1 {
		t.Fatalf("seal registry after restore: %v (%d seals)", err, len(seals))
	}

	// Derived indexes must be rebuilt.
	output := contract.OutputSeal{Chain: contract.ChainBitcoin, Txid: testTxid(20), Vout: 0}
	state, err := restored.StateForOutputs(ctx, genesis.ContractID(), []contract.OutputSeal{output})
	if err != nil {
		t.Fatalf("state after restore: %v", err)
	}
	if len(state) != 1 || state[0].State.Amount != 70 {
		t.Fatalf("unexpected state after restore: %+v", state)
	}
}

func TestMemStashContractQueries(t *testing.T) {
	genesis := testGenesis(1, 30)
	_, stash := newTestInventory(t, genesis)
	ctx := context.Background()

	ids, err := stash.ContractIDsByIface(ctx, "RGB20")
	if err != nil {
		t.Fatalf("by iface: %v", err)
	}
	if len(ids) != 1 || ids[0] != genesis.ContractID() {
		t.Fatalf("unexpected contracts: %v", ids)
	}

	outputs := genesisOutputs(genesis)
	contracts, err := stash.ContractsByOutputs(ctx, outputs)
	if err != nil {
		t.Fatalf("by outputs: %v", err)
	}
	if len(contracts) != 1 || contracts[0] != genesis.ContractID() {
		t.Fatalf("unexpected contracts: %v", contracts)
	}
}
