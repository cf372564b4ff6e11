// Package invoice models payment requests against contract state.
package invoice

import (
	"time"

	"github.com/eauxxs/rgb-std/pkg/contract"
)

// Beneficiary designates where the requested state is assigned: either a
// pre-blinded seal supplied by the payee, or an output of the payer's
// witness transaction whose index the payer picks at composition time.
type Beneficiary struct {
	BlindedSeal *contract.SecretSeal `json:"blindedSeal,omitempty"`
	WitnessVout bool                 `json:"witnessVout,omitempty"`
}

// Owned is the requested state: a fungible amount or one non-fungible
// allocation.
type Owned struct {
	Amount     uint64 `json:"amount,omitempty"`
	Allocation []byte `json:"allocation,omitempty"`
}

// IsFungible reports whether the invoice requests fungible state.
func (o Owned) IsFungible() bool { return o.Allocation == nil }

// Invoice is a payment/allocation request. Contract, interface, operation
// and assignment references are optional at the model level; composition
// requires at least contract and interface.
type Invoice struct {
	Contract   *contract.ContractID `json:"contract,omitempty"`
	Iface      string               `json:"iface,omitempty"`
	Operation  string               `json:"operation,omitempty"`
	Assignment string               `json:"assignment,omitempty"`

	Owned       Owned       `json:"owned"`
	Beneficiary Beneficiary `json:"beneficiary"`

	// Expiry is a unix timestamp; zero means the invoice never expires.
	Expiry int64 `json:"expiry,omitempty"`
}

// Expired reports whether the invoice expiry lies before now.
func (inv Invoice) Expired(now time.Time) bool {
	return inv.Expiry != 0 && inv.Expiry < now.Unix()
}
