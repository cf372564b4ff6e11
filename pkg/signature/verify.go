package signature

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/subtle"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidIssuedAt      = errors.New("invalid issued_at")
	ErrContentHashMismatch  = errors.New("content hash mismatch")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidEncoding      = errors.New("invalid encoding")
)

type VerifyResult struct {
	IssuedAt time.Time
	KeyID    string
}

// VerifyBlob parses a signature blob as an attestation envelope and
// verifies it against the expected content digest.
func VerifyBlob(contentHash [32]byte, blob []byte) (VerifyResult, error) {
	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return VerifyEnvelope(contentHash, env)
}

// VerifyEnvelope verifies a parsed attestation envelope against the
// expected content digest.
func VerifyEnvelope(contentHash [32]byte, env Envelope) (VerifyResult, error) {
	if strings.TrimSpace(env.Version) != "att-v1" {
		return VerifyResult{}, ErrUnsupportedAlgorithm
	}
	if strings.TrimSpace(env.IssuedAt) == "" {
		return VerifyResult{}, ErrInvalidIssuedAt
	}
	issuedAt, err := time.Parse(time.RFC3339Nano, env.IssuedAt)
	if err != nil {
		return VerifyResult{}, ErrInvalidIssuedAt
	}
	if !strings.HasSuffix(env.IssuedAt, "Z") || !issuedAt.Equal(issuedAt.UTC()) {
		return VerifyResult{}, ErrInvalidIssuedAt
	}

	claimed, err := decodeLowerHex32(strings.TrimSpace(env.ContentHash))
	if err != nil {
		return VerifyResult{}, err
	}
	if subtle.ConstantTimeCompare(contentHash[:], claimed) != 1 {
		return VerifyResult{}, ErrContentHashMismatch
	}

	switch strings.ToLower(strings.TrimSpace(env.Algorithm)) {
	case "ed25519":
		err = verifyEd25519(claimed, env.PublicKey, env.Signature)
	case "es256":
		err = verifyES256(claimed, env.PublicKey, env.Signature)
	default:
		return VerifyResult{}, ErrUnsupportedAlgorithm
	}
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{IssuedAt: issuedAt.UTC(), KeyID: strings.TrimSpace(env.KeyID)}, nil
}

func verifyEd25519(messageHash []byte, publicKeyB64, sigB64 string) error {
	publicKey, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKeyB64))
	if err != nil {
		return ErrInvalidEncoding
	}
	signature, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigB64))
	if err != nil {
		return ErrInvalidEncoding
	}
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return ErrInvalidEncoding
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), messageHash, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func verifyES256(messageHash []byte, publicKeyB64URL, signatureInput string) error {
	publicKey, err := decodeBase64URLNoPaddingStrict(strings.TrimSpace(publicKeyB64URL))
	if err != nil {
		return ErrInvalidEncoding
	}
	if len(publicKey) != 65 || publicKey[0] != 0x04 {
		return ErrInvalidEncoding
	}
	curve := elliptic.P256()
	x := new(big.Int).SetBytes(publicKey[1:33])
	y := new(big.Int).SetBytes(publicKey[33:65])
	if !curve.IsOnCurve(x, y) {
		return ErrInvalidEncoding
	}
	pub := ecdsa.PublicKey{Curve: curve, X: x, Y: y}

	sigBytes, err := decodeSignatureBytesCompat(signatureInput)
	if err != nil {
		return ErrInvalidEncoding
	}
	r, s, err := parseES256Signature(sigBytes)
	if err != nil {
		return ErrInvalidEncoding
	}
	if !ecdsa.Verify(&pub, messageHash, r, s) {
		return ErrInvalidSignature
	}
	return nil
}

func decodeSignatureBytesCompat(in string) ([]byte, error) {
	s := strings.TrimSpace(in)
	if s == "" {
		return nil, ErrInvalidEncoding
	}
	// Canonical form: base64url without padding
	if bytes, err := decodeBase64URLNoPaddingStrict(s); err == nil {
		return bytes, nil
	}
	// Compatibility: std base64 with/without padding.
	std, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return std, nil
	}
	rawStd, err := base64.RawStdEncoding.DecodeString(s)
	if err == nil {
		return rawStd, nil
	}
	return nil, ErrInvalidEncoding
}

func decodeBase64URLNoPaddingStrict(in string) ([]byte, error) {
	s := strings.TrimSpace(in)
	if s == "" || strings.Contains(s, "=") {
		return nil, ErrInvalidEncoding
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_') {
			return nil, ErrInvalidEncoding
		}
	}
	out, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if base64.RawURLEncoding.EncodeToString(out) != s {
		return nil, ErrInvalidEncoding
	}
	return out, nil
}

func parseES256Signature(sig []byte) (*big.Int, *big.Int, error) {
	if len(sig) == 64 {
		r := new(big.Int).SetBytes(sig[:32])
		s := new(big.Int).SetBytes(sig[32:])
		if r.Sign() <= 0 || s.Sign() <= 0 {
			return nil, nil, ErrInvalidEncoding
		}
		return r, s, nil
	}
	var der struct {
		R *big.Int
		S *big.Int
	}
	rest, err := asn1.Unmarshal(sig, &der)
	if err != nil || len(rest) != 0 || der.R == nil || der.S == nil {
		return nil, nil, ErrInvalidEncoding
	}
	if der.R.Sign() <= 0 || der.S.Sign() <= 0 {
		return nil, nil, ErrInvalidEncoding
	}
	return der.R, der.S, nil
}

func decodeLowerHex32(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidEncoding
	}
	if s != strings.ToLower(s) {
		return nil, ErrInvalidEncoding
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: content_hash length", ErrInvalidEncoding)
	}
	return b, nil
}
