package keycrypto

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"signet-wallet/go-keystore/pkg/models"
)

const (
	// DigestLength is the required length of input to Sign.
	DigestLength = 32
	// SignatureLength is the length of a recoverable signature: R || S || V.
	SignatureLength = 65
	// PrivateKeyLength is the raw serialized private key length.
	PrivateKeyLength = 32
)

var (
	ErrInvalidKey          = errors.New("invalid private key")
	ErrInvalidDigestLength = errors.New("digest must be 32 bytes")
	ErrInvalidSignature    = errors.New("invalid signature")
)

const fingerprintPrefix = "key1"

// GenerateKey creates a fresh secp256k1 key pair.
func GenerateKey() (*btcec.PrivateKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return priv, nil
}

// ParsePrivateKey deserializes a private key from its raw 32-byte form.
// Rejects values outside the valid scalar range for the curve.
func ParsePrivateKey(raw []byte) (*btcec.PrivateKey, error) {
	if len(raw) != PrivateKeyLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	// PrivKeyFromBytes reduces mod the curve order; an out-of-range input
	// would silently map to a different key, so reject it.
	if !bytes.Equal(priv.Serialize(), raw) {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidKey)
	}
	return priv, nil
}

// PubkeyToAddress derives the 20-byte account address:
// Keccak256(uncompressed_pubkey[1:])[12:].
func PubkeyToAddress(pub *btcec.PublicKey) models.Address {
	uncompressed := pub.SerializeUncompressed()
	h := Keccak256(uncompressed[1:])
	return models.BytesToAddress(h[12:])
}

// Sign produces a 65-byte recoverable signature R || S || V over a 32-byte
// digest, with V in {0, 1}.
func Sign(digest []byte, priv *btcec.PrivateKey) ([]byte, error) {
	if len(digest) != DigestLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDigestLength, len(digest))
	}
	if priv == nil || priv.Key.IsZero() {
		return nil, ErrInvalidKey
	}
	// SignCompact puts the recovery byte first as 27+recid; callers here
	// expect R || S || V with V in {0, 1}.
	compact := ecdsa.SignCompact(priv, digest, false)
	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

// RecoverPubkey returns the public key that produced sig over digest.
func RecoverPubkey(digest, sig []byte) (*btcec.PublicKey, error) {
	if len(digest) != DigestLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDigestLength, len(digest))
	}
	if len(sig) != SignatureLength || sig[64] > 1 {
		return nil, ErrInvalidSignature
	}
	compact := make([]byte, SignatureLength)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])
	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return pub, nil
}

// Fingerprint returns a short human-readable identifier for a public key,
// for logs and CLI listings. Never used for storage lookup.
func Fingerprint(pub *btcec.PublicKey) string {
	h := blake2b.Sum256(pub.SerializeCompressed())
	return fingerprintPrefix + base58.Encode(h[:8])
}

// Keccak256 computes the legacy Keccak-256 hash of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// ZeroBytes wipes b in place.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroKey wipes the scalar inside priv.
func ZeroKey(priv *btcec.PrivateKey) {
	if priv != nil {
		priv.Key.Zero()
	}
}
