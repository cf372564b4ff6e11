package signature

// EnvelopeV1 is a content attestation: a detached signature over a 32-byte
// content digest, carried as a JSON blob inside a ContentSigs set.
type EnvelopeV1 struct {
	Version     string `json:"version"`
	Algorithm   string `json:"algorithm"`
	PublicKey   string `json:"public_key"`
	Signature   string `json:"signature"`
	ContentHash string `json:"content_hash"`
	IssuedAt    string `json:"issued_at"`
	KeyID       string `json:"key_id,omitempty"`
}

type Envelope = EnvelopeV1
