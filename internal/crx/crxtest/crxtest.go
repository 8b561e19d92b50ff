// Package crxtest builds CRX3 containers and zip payloads for tests.
package crxtest

import (
	"archive/zip"
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"sort"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// Proof mirrors crx.Proof without importing it, so the builder can also
// produce headers the parser must reject.
type Proof struct {
	PublicKey []byte
	Signature []byte
}

// Options describes a container to build.
type Options struct {
	RSA   []Proof
	ECDSA []Proof
	// CrxID is the raw declared id. Nil omits the signed header entirely
	// unless OmitCrxID is set, in which case an empty signed header is kept.
	CrxID     []byte
	OmitCrxID bool
	Payload   []byte
	// Version overrides the format version (default 3).
	Version uint32
}

// NewPublicKey returns a DER-encoded ECDSA P-256 public key.
func NewPublicKey(t *testing.T) []byte {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return der
}

// IDFor returns the raw declared id owned by publicKey.
func IDFor(publicKey []byte) []byte {
	sum := sha256.Sum256(publicKey)
	return sum[:16]
}

// Header encodes a CrxFileHeader message.
func Header(opts Options) []byte {
	var b []byte
	for _, p := range opts.RSA {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, proof(p))
	}
	for _, p := range opts.ECDSA {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, proof(p))
	}
	if opts.CrxID != nil || opts.OmitCrxID {
		var signed []byte
		if !opts.OmitCrxID {
			signed = protowire.AppendTag(signed, 1, protowire.BytesType)
			signed = protowire.AppendBytes(signed, opts.CrxID)
		}
		b = protowire.AppendTag(b, 10000, protowire.BytesType)
		b = protowire.AppendBytes(b, signed)
	}
	return b
}

func proof(p Proof) []byte {
	var b []byte
	if p.PublicKey != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, p.PublicKey)
	}
	if p.Signature != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Signature)
	}
	return b
}

// Build frames a header and payload as a container.
func Build(opts Options) []byte {
	return Frame(opts.Version, Header(opts), opts.Payload)
}

// Frame writes magic, version, header length, header and payload.
// A zero version means 3.
func Frame(version uint32, header, payload []byte) []byte {
	if version == 0 {
		version = 3
	}
	var buf bytes.Buffer
	buf.WriteString("Cr24")
	_ = binary.Write(&buf, binary.LittleEndian, version)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(header)))
	buf.Write(header)
	buf.Write(payload)
	return buf.Bytes()
}

// Signed builds a valid container for publicKey around payload.
func Signed(publicKey, payload []byte) []byte {
	return Build(Options{
		RSA:     []Proof{{PublicKey: publicKey, Signature: []byte("sig")}},
		CrxID:   IDFor(publicKey),
		Payload: payload,
	})
}

// Zip builds a zip archive. Names ending in "/" become directory entries.
func Zip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if len(name) > 0 && name[len(name)-1] == '/' {
			continue
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
