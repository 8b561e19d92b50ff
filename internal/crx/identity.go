package crx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// IdentityLen is the length of every valid identity.
const IdentityLen = 32

// Identity is a canonical package identity: lowercase letters a..p.
type Identity string

// String returns the identity as a plain string.
func (id Identity) String() string {
	return string(id)
}

// Valid reports whether id has exactly 32 characters, all in a..p.
func (id Identity) Valid() bool {
	if len(id) != IdentityLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 'a' || id[i] > 'p' {
			return false
		}
	}
	return true
}

// Canonicalize renders raw as lowercase hex and maps every hex digit onto
// the letters a..p ('0' -> 'a', 'f' -> 'p').
func Canonicalize(raw []byte) Identity {
	h := []byte(hex.EncodeToString(raw))
	for i, c := range h {
		var n byte
		if c >= 'a' {
			n = c - 'a' + 10
		} else {
			n = c - '0'
		}
		h[i] = 'a' + n
	}
	return Identity(h)
}

// IdentityFromPublicKey derives the identity owned by a public key.
func IdentityFromPublicKey(publicKey []byte) Identity {
	sum := sha256.Sum256(publicKey)
	return Canonicalize(sum[:16])
}

// IdentityFromPath derives the identity a browser assigns to an unpacked
// package directory whose manifest carries no key.
func IdentityFromPath(absPath string) Identity {
	sum := sha256.Sum256([]byte(absPath))
	return Canonicalize(sum[:16])
}

// Package is a parsed container whose key material matched its declared
// identity.
type Package struct {
	Identity  Identity
	PublicKey []byte
	Payload   []byte
}

// Verify returns the first public key, RSA proofs before ECDSA proofs, whose
// derived identity equals the identity declared in the signed header.
func Verify(h *Header) ([]byte, Identity, error) {
	rawID, err := h.DeclaredID()
	if err != nil {
		return nil, "", err
	}

	expected := Canonicalize(rawID)
	if len(expected) != IdentityLen {
		return nil, "", formatErr(fmt.Sprintf("invalid crx_id length: %d", len(expected)), nil)
	}

	proofs := h.Proofs()
	for _, proof := range proofs {
		if proof.PublicKey == nil {
			continue
		}
		if IdentityFromPublicKey(proof.PublicKey) == expected {
			return proof.PublicKey, expected, nil
		}
	}

	return nil, "", &TrustError{Expected: expected, Candidates: len(proofs)}
}

// Open parses data and verifies its identity.
func Open(data []byte) (*Package, error) {
	header, payload, err := Parse(data)
	if err != nil {
		return nil, err
	}

	key, id, err := Verify(header)
	if err != nil {
		return nil, err
	}

	return &Package{
		Identity:  id,
		PublicKey: key,
		Payload:   payload,
	}, nil
}
