package contract

import (
	"errors"
	"testing"
)

func TestBundleIDFromInputMapOnly(t *testing.T) {
	seal := GraphSeal{Chain: ChainBitcoin, Txid: testTxid(1), Vout: 0, Blinding: 3}
	full := NewBundle(testTransition(RevealedSeal(seal)))

	partial := TransitionBundle{InputMap: full.InputMap}
	if full.BundleID() != partial.BundleID() {
		t.Fatalf("revealing transitions must not change the bundle id")
	}
}

func TestCheckConsistencyRejectsForeignTransitions(t *testing.T) {
	bundle := NewBundle(testTransition(RevealedSeal(GraphSeal{Txid: testTxid(1)})))
	if !bundle.CheckConsistency() {
		t.Fatalf("fully revealed bundle must be consistent")
	}
	foreign := testTransition(RevealedSeal(GraphSeal{Txid: testTxid(2)}))
	bundle.KnownTransitions[foreign.ID()] = foreign
	if bundle.CheckConsistency() {
		t.Fatalf("expected inconsistency for unreferenced transition")
	}
}

func TestRevealTransitionRejectsUnreferenced(t *testing.T) {
	bundle := NewBundle(testTransition(RevealedSeal(GraphSeal{Txid: testTxid(1)})))
	foreign := testTransition(RevealedSeal(GraphSeal{Txid: testTxid(2)}))
	err := bundle.RevealTransition(foreign)
	var revealErr *RevealError
	if !errors.As(err, &revealErr) {
		t.Fatalf("expected RevealError, got %v", err)
	}
}

func TestBundleMergeRevealUnionsKnownTransitions(t *testing.T) {
	seal := GraphSeal{Chain: ChainBitcoin, Txid: testTxid(4), Vout: 1, Blinding: 8}
	full := NewBundle(testTransition(RevealedSeal(seal)))

	left := TransitionBundle{InputMap: full.InputMap}
	right := full

	merged, err := left.MergeReveal(right)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(merged.KnownTransitions) != 1 {
		t.Fatalf("expected the reveal to carry over, got %d transitions", len(merged.KnownTransitions))
	}
	if merged.BundleID() != full.BundleID() {
		t.Fatalf("merge must keep the bundle id")
	}
}

func TestBundleMergeRevealRejectsDifferentBundles(t *testing.T) {
	a := NewBundle(testTransition(RevealedSeal(GraphSeal{Txid: testTxid(1)})))
	other := testTransition(RevealedSeal(GraphSeal{Txid: testTxid(2)}))
	other.Inputs = []Input{{PrevOut: Opout{Op: Hash32{5}, Ty: 1, No: 0}}}
	b := NewBundle(other)
	_, err := a.MergeReveal(b)
	var mergeErr *MergeRevealError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected MergeRevealError, got %v", err)
	}
}
