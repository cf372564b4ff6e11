package containers

import (
	"fmt"

	"github.com/eauxxs/rgb-std/pkg/confined"
	"github.com/eauxxs/rgb-std/pkg/contract"
)

// ContentKind names the kind of content an attestation covers.
type ContentKind string

const (
	ContentSchema    ContentKind = "schema"
	ContentGenesis   ContentKind = "genesis"
	ContentIface     ContentKind = "iface"
	ContentIfaceImpl ContentKind = "ifaceImpl"
	ContentSuppl     ContentKind = "suppl"
)

// ContentID identifies a piece of attestable content.
type ContentID struct {
	Kind ContentKind     `json:"kind"`
	ID   contract.Hash32 `json:"id"`
}

func (c ContentID) String() string {
	return fmt.Sprintf("%s:%s", c.Kind, c.ID)
}

func (c ContentID) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ContentID) UnmarshalText(b []byte) error {
	for i, r := range string(b) {
		if r == ':' {
			c.Kind = ContentKind(b[:i])
			return c.ID.UnmarshalText(b[i+1:])
		}
	}
	return fmt.Errorf("malformed content id %q", b)
}

// Identity names the party a signature blob belongs to.
type Identity string

// Signature blob and signature count bounds.
const (
	MinSigBlob = 1
	MaxSigBlob = 4096
	MinSigs    = 1
	MaxSigs    = 10
)

// ContentSigs is the set of third-party attestations over one content id:
// 1..10 identities, each with a non-empty bounded signature blob.
type ContentSigs map[Identity]confined.Blob

// NewContentSigs validates signature count and blob sizes.
func NewContentSigs(sigs map[Identity][]byte) (ContentSigs, error) {
	if err := confined.CheckLen("content signatures", len(sigs), MinSigs, MaxSigs); err != nil {
		return nil, err
	}
	out := make(ContentSigs, len(sigs))
	for identity, raw := range sigs {
		blob, err := confined.NewBlob(fmt.Sprintf("signature blob of %s", identity), raw, MinSigBlob, MaxSigBlob)
		if err != nil {
			return nil, err
		}
		out[identity] = blob
	}
	return out, nil
}

// Merge adds the other set's signatures, keeping existing ones. The
// combined set must still satisfy the count bound.
func (s ContentSigs) Merge(other ContentSigs) (ContentSigs, error) {
	out := make(ContentSigs, len(s))
	for id, blob := range s {
		out[id] = blob
	}
	for id, blob := range other {
		if _, ok := out[id]; !ok {
			out[id] = blob
		}
	}
	if err := confined.CheckLen("content signatures", len(out), MinSigs, MaxSigs); err != nil {
		return nil, err
	}
	return out, nil
}
