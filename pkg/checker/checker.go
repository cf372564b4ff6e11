package checker

import (
	"context"

	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/inventory"
	"github.com/eauxxs/rgb-std/pkg/validate"
)

// Checker validates consignments ahead of admission: structural rules
// first, then per-witness confirmation via the chain resolver.
type Checker struct {
	resolver inventory.Resolver
	bounds   containers.Bounds
}

func New(resolver inventory.Resolver, bounds containers.Bounds) *Checker {
	return &Checker{resolver: resolver, bounds: bounds}
}

var _ inventory.Validator = (*Checker)(nil)

func (c *Checker) Validate(ctx context.Context, consignment containers.Consignment) (validate.Status, error) {
	var status validate.Status

	if err := consignment.Validate(c.bounds); err != nil {
		status.Failures = append(status.Failures, validate.Failure{
			Code:    "STRUCTURE",
			Message: err.Error(),
		})
		return status, nil
	}

	terminal := make(map[contract.WitnessID]bool)
	for _, bw := range consignment.Bundles {
		for _, bundle := range bw.Bundles {
			if _, ok := consignment.Terminals[bundle.BundleID()]; ok {
				terminal[bw.WitnessID] = true
			}
		}
	}

	for _, bw := range consignment.Bundles {
		anchor, err := c.resolver.ResolveHeight(ctx, bw.WitnessID)
		if err != nil {
			status.Unresolved = append(status.Unresolved, bw.WitnessID)
			continue
		}
		if anchor.Height == 0 && terminal[bw.WitnessID] {
			status.UnminedTerminal = append(status.UnminedTerminal, bw.WitnessID)
		}
	}
	return status, nil
}
