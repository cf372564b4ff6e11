package inventory

import (
	"context"
	"errors"

	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
)

// Consume folds a fascia's witness anchor and bundles into the stash.
// It is the sole mutating path for operation-graph data: either the whole
// fascia is committed or nothing is. Previously known data is never
// overwritten; folding only adds knowledge via merge-reveal.
func (inv *Inventory) Consume(ctx context.Context, fascia containers.Fascia) error {
	witnessID := fascia.Witness.WitnessID
	for _, contractID := range fascia.ContractIDs() {
		bundle := fascia.Bundles[contractID]
		if !bundle.CheckConsistency() {
			return dataErr(CodeInvalidBundle, "bundle %s of contract %s reveals transitions outside its input map", bundle.BundleID(), contractID)
		}
		if len(bundle.KnownTransitions) > inv.bounds.MaxBundleTransitions {
			return internalErr(CodeOutsizedBundle, "bundle %s of contract %s exceeds consensus size restrictions", bundle.BundleID(), contractID)
		}
		// Precondition on the ingestion path: the anchor must commit
		// every bundle it arrives with. A fascia violating this was
		// assembled incorrectly by this library, not by a peer.
		if !fascia.Witness.Anchor.RelatesTo(contractID, bundle.BundleID()) {
			return internalErr(CodeUnrelatedAnchor, "anchor of witness %s does not commit bundle %s", witnessID, bundle.BundleID())
		}
	}
	if err := inv.stash.Fold(ctx, fascia.Witness, fascia.Bundles); err != nil {
		return foldErr(err)
	}
	return nil
}

// foldErr classifies a storage fold failure: merge-reveal conflicts are
// permanent data errors, everything else is retryable connectivity.
func foldErr(err error) *Error {
	if isMergeConflict(err) {
		return dataWrap(CodeMergeConflict, err)
	}
	return connectivity("fold witness", err)
}

func isMergeConflict(err error) bool {
	var mergeErr *contract.MergeRevealError
	var revealErr *contract.RevealError
	return errors.As(err, &mergeErr) || errors.As(err, &revealErr)
}
