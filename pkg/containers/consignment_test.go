package containers

import (
	"errors"
	"testing"

	"github.com/eauxxs/rgb-std/pkg/confined"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
)

func testGenesis() contract.Genesis {
	var txid contract.Txid
	txid[0] = 1
	seal := contract.GraphSeal{Chain: contract.ChainBitcoin, Txid: txid, Vout: 0, Blinding: 7}
	return contract.Genesis{
		SchemaID: contract.SchemaID{2},
		Chain:    contract.ChainBitcoin,
		Assignments: map[contract.AssignmentType][]contract.Assignment{
			1: {{Seal: contract.RevealedSeal(seal), State: contract.AmountState(100, contract.BlindingFactor{}, contract.AssetTag{})}},
		},
	}
}

func testBundledWitness(genesis contract.Genesis, witnessByte byte) BundledWitness {
	contractID := genesis.ContractID()
	var txid contract.Txid
	txid[0] = witnessByte
	spend := contract.Transition{
		ContractID:     contractID,
		TransitionType: 1,
		Inputs:         []contract.Input{{PrevOut: contract.Opout{Op: contract.OpID(contractID), Ty: 1, No: 0}}},
		Assignments: map[contract.AssignmentType][]contract.Assignment{
			1: {{
				Seal:  contract.RevealedSeal(contract.NewBlindedVoutSeal(contract.ChainBitcoin, 0, 9)),
				State: contract.AmountState(100, contract.BlindingFactor{}, contract.AssetTag{}),
			}},
		},
	}
	bundle := contract.NewBundle(spend)
	witness := SealWitness{
		WitnessID: contract.WitnessID{Chain: contract.ChainBitcoin, Txid: txid},
		Anchor: Anchor{
			Commitments: map[contract.ContractID]contract.BundleID{contractID: bundle.BundleID()},
			Proof:       []byte{1},
		},
	}
	return NewBundledWitness(witness, contractID, bundle)
}

func testConsignment() Consignment {
	genesis := testGenesis()
	c := NewConsignment(iface.Schema{Name: "FungibleAsset"}, genesis)
	c.Bundles = append(c.Bundles, testBundledWitness(genesis, 10))
	return c
}

func TestValidateAcceptsWellFormedConsignment(t *testing.T) {
	c := testConsignment()
	if err := c.Validate(DefaultBounds()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestValidateRejectsWrongVersion(t *testing.T) {
	c := testConsignment()
	c.Version = 1
	if err := c.Validate(DefaultBounds()); !errors.Is(err, ErrUnsupportedContainerVer) {
		t.Fatalf("expected version rejection, got %v", err)
	}
}

func TestValidateRejectsDuplicateWitness(t *testing.T) {
	c := testConsignment()
	c.Bundles = append(c.Bundles, c.Bundles[0])
	if err := c.Validate(DefaultBounds()); err == nil {
		t.Fatalf("expected duplicate witness rejection")
	}
}

func TestValidateRejectsMissingContractBundle(t *testing.T) {
	c := testConsignment()
	bw := c.Bundles[0]
	bw.Bundles = map[contract.ContractID]contract.TransitionBundle{{99}: {}}
	c.Bundles[0] = bw
	if err := c.Validate(DefaultBounds()); err == nil {
		t.Fatalf("expected missing bundle rejection")
	}
}

func TestValidateRejectsUnrelatedAnchor(t *testing.T) {
	c := testConsignment()
	bw := c.Bundles[0]
	bw.Anchor.Commitments = map[contract.ContractID]contract.BundleID{c.ContractID(): {42}}
	c.Bundles[0] = bw
	if err := c.Validate(DefaultBounds()); err == nil {
		t.Fatalf("expected anchor rejection")
	}
}

func TestValidateEnforcesBundleCeiling(t *testing.T) {
	c := testConsignment()
	bounds := DefaultBounds()
	bounds.MaxBundles = 0
	if err := c.Validate(bounds); !errors.Is(err, confined.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestValidateRejectsEmptyTerminal(t *testing.T) {
	c := testConsignment()
	c.Terminals[contract.BundleID{1}] = Terminal{}
	if err := c.Validate(DefaultBounds()); !errors.Is(err, confined.ErrUnderflow) {
		t.Fatalf("expected underflow for empty terminal, got %v", err)
	}
}

func TestAnchorMergeExtendsCommitments(t *testing.T) {
	a := Anchor{Commitments: map[contract.ContractID]contract.BundleID{{1}: {10}}, Proof: []byte{1}}
	b := Anchor{Commitments: map[contract.ContractID]contract.BundleID{{2}: {20}}}
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(merged.Commitments) != 2 {
		t.Fatalf("expected union of commitments, got %d", len(merged.Commitments))
	}
	conflicting := Anchor{Commitments: map[contract.ContractID]contract.BundleID{{1}: {11}}}
	if _, err := a.Merge(conflicting); err == nil {
		t.Fatalf("expected commitment conflict")
	}
}

func TestAnchorMergeProofConflictIdentifiesBothProofs(t *testing.T) {
	a := Anchor{Proof: []byte{1}}
	b := Anchor{Proof: []byte{2}}
	_, err := a.Merge(b)
	var conflict *contract.MergeRevealError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected merge-reveal error, got %v", err)
	}
	if conflict.Left == conflict.Right {
		t.Fatalf("conflict sides must carry distinct proof digests, both %q", conflict.Left)
	}
	if conflict.Left == "proof" || len(conflict.Left) != 16 {
		t.Fatalf("expected an 8-byte hex digest, got %q", conflict.Left)
	}
}

func TestTerminalAddSealDeduplicatesBySecret(t *testing.T) {
	seal := contract.GraphSeal{Chain: contract.ChainBitcoin, Vout: 1, Blinding: 5}
	terminal := NewTerminal(contract.ConcealedSeal(seal.Conceal()))
	terminal.AddSeal(contract.RevealedSeal(seal))
	if len(terminal.Seals) != 1 {
		t.Fatalf("expected dedup by secret, got %d seals", len(terminal.Seals))
	}
	if !terminal.Seals[0].IsRevealed() {
		t.Fatalf("expected revealed observation to replace concealed")
	}
}
