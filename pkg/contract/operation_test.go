package contract

import "testing"

func testTransition(seals ...AssignmentSeal) Transition {
	assignments := make([]Assignment, 0, len(seals))
	for i, seal := range seals {
		assignments = append(assignments, Assignment{
			Seal:  seal,
			State: AmountState(uint64(10*(i+1)), BlindingFactor{}, AssetTag{}),
		})
	}
	return Transition{
		ContractID:     Hash32{1},
		TransitionType: 1,
		Inputs:         []Input{{PrevOut: Opout{Op: Hash32{2}, Ty: 1, No: 0}}},
		Assignments:    map[AssignmentType][]Assignment{1: assignments},
	}
}

func TestTransitionIDStableAcrossReveal(t *testing.T) {
	seal := GraphSeal{Chain: ChainBitcoin, Txid: testTxid(3), Vout: 1, Blinding: 7}
	revealed := testTransition(RevealedSeal(seal))
	concealed := testTransition(ConcealedSeal(seal.Conceal()))
	if revealed.ID() != concealed.ID() {
		t.Fatalf("revealing a seal must not change the operation id")
	}
}

func TestTransitionIDIgnoresInputOrder(t *testing.T) {
	a := testTransition(RevealedSeal(GraphSeal{Txid: testTxid(3), Vout: 1}))
	a.Inputs = []Input{
		{PrevOut: Opout{Op: Hash32{2}, Ty: 1, No: 0}},
		{PrevOut: Opout{Op: Hash32{3}, Ty: 1, No: 1}},
	}
	b := a
	b.Inputs = []Input{a.Inputs[1], a.Inputs[0]}
	if a.ID() != b.ID() {
		t.Fatalf("input order must not change the operation id")
	}
}

func TestTransitionMergeRevealCommutativeAndIdempotent(t *testing.T) {
	seal := GraphSeal{Chain: ChainBitcoin, Txid: testTxid(4), Vout: 2, Blinding: 11}
	revealed := testTransition(RevealedSeal(seal))
	concealed := testTransition(ConcealedSeal(seal.Conceal()))

	ab, err := revealed.MergeReveal(concealed)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ba, err := concealed.MergeReveal(revealed)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ab.ID() != ba.ID() {
		t.Fatalf("merge must be commutative")
	}
	if !ab.Assignments[1][0].Seal.IsRevealed() || !ba.Assignments[1][0].Seal.IsRevealed() {
		t.Fatalf("merge must keep the revealed seal")
	}

	again, err := ab.MergeReveal(ab)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if again.ID() != ab.ID() {
		t.Fatalf("merge must be idempotent")
	}
}

func TestTransitionMergeRevealRejectsDifferentOperations(t *testing.T) {
	a := testTransition(RevealedSeal(GraphSeal{Txid: testTxid(5), Vout: 0}))
	b := testTransition(RevealedSeal(GraphSeal{Txid: testTxid(6), Vout: 0}))
	if _, err := a.MergeReveal(b); err == nil {
		t.Fatalf("expected conflict between different operations")
	}
}

func TestGenesisContractIDStableAcrossReveal(t *testing.T) {
	seal := GraphSeal{Chain: ChainBitcoin, Txid: testTxid(8), Vout: 0, Blinding: 1}
	revealed := Genesis{
		SchemaID: Hash32{9},
		Assignments: map[AssignmentType][]Assignment{
			1: {{Seal: RevealedSeal(seal), State: AmountState(100, BlindingFactor{}, AssetTag{})}},
		},
	}
	concealed := revealed
	concealed.Assignments = map[AssignmentType][]Assignment{
		1: {{Seal: ConcealedSeal(seal.Conceal()), State: AmountState(100, BlindingFactor{}, AssetTag{})}},
	}
	if revealed.ContractID() != concealed.ContractID() {
		t.Fatalf("revealing a genesis seal must not change the contract id")
	}
}

func TestSameValueIgnoresBlinding(t *testing.T) {
	a := AmountState(50, BlindingFactor{1}, AssetTag{})
	b := AmountState(50, BlindingFactor{2}, AssetTag{})
	if !a.SameValue(b) {
		t.Fatalf("blinding must not affect value equality")
	}
	c := AmountState(51, BlindingFactor{1}, AssetTag{})
	if a.SameValue(c) {
		t.Fatalf("different amounts must not compare equal")
	}
}
