package containers

import (
	"sort"

	"github.com/eauxxs/rgb-std/pkg/contract"
)

// Terminal is the seal set marking a disclosure endpoint for one bundle.
// Seals may be revealed or concealed; the set is kept id-ordered and
// deduplicated by secret.
type Terminal struct {
	Seals []contract.AssignmentSeal `json:"seals"`
}

// NewTerminal makes a terminal with a single seal.
func NewTerminal(seal contract.AssignmentSeal) Terminal {
	return Terminal{Seals: []contract.AssignmentSeal{seal}}
}

// AddSeal inserts a seal, keeping the set deduplicated and ordered. A
// revealed observation of an already known concealed seal replaces it.
func (t *Terminal) AddSeal(seal contract.AssignmentSeal) {
	secret := seal.Secret()
	for i, known := range t.Seals {
		if known.Secret() == secret {
			if !known.IsRevealed() && seal.IsRevealed() {
				t.Seals[i] = seal
			}
			return
		}
	}
	t.Seals = append(t.Seals, seal)
	sort.Slice(t.Seals, func(i, j int) bool {
		return t.Seals[i].Secret().Less(t.Seals[j].Secret())
	})
}

// Secrets lists the concealed form of every terminal seal.
func (t Terminal) Secrets() []contract.SecretSeal {
	out := make([]contract.SecretSeal, 0, len(t.Seals))
	for _, seal := range t.Seals {
		out = append(out, seal.Secret())
	}
	return out
}
