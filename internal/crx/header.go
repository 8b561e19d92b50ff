package crx

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the CRX3 header messages.
const (
	fieldHeaderSHA256WithRSA   protowire.Number = 2
	fieldHeaderSHA256WithECDSA protowire.Number = 3
	fieldHeaderSignedData      protowire.Number = 10000

	fieldProofPublicKey protowire.Number = 1
	fieldProofSignature protowire.Number = 2

	fieldSignedDataCrxID protowire.Number = 1
)

// Proof is one (public key, signature) pair from the header.
type Proof struct {
	PublicKey []byte
	Signature []byte
}

// Header is the decoded CrxFileHeader.
type Header struct {
	SHA256WithRSA   []Proof
	SHA256WithECDSA []Proof
	// SignedHeaderData is the raw nested SignedData message, nil when absent.
	SignedHeaderData []byte
}

// Proofs returns all proofs in verification order: RSA first, then ECDSA,
// each in declaration order.
func (h *Header) Proofs() []Proof {
	out := make([]Proof, 0, len(h.SHA256WithRSA)+len(h.SHA256WithECDSA))
	out = append(out, h.SHA256WithRSA...)
	return append(out, h.SHA256WithECDSA...)
}

// DeclaredID decodes the nested signed data and returns the raw declared id.
func (h *Header) DeclaredID() ([]byte, error) {
	if h.SignedHeaderData == nil {
		return nil, formatErr("missing signed_header_data", nil)
	}
	id, err := decodeSignedData(h.SignedHeaderData)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, formatErr("missing crx_id", nil)
	}
	return id, nil
}

// decodeHeader decodes a CrxFileHeader message.
func decodeHeader(b []byte) (*Header, error) {
	h := &Header{}
	err := walkFields(b, "header", func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldHeaderSHA256WithRSA, fieldHeaderSHA256WithECDSA:
			if typ != protowire.BytesType {
				return formatErr(fmt.Sprintf("header field %d: wrong wire type %d", num, typ), nil)
			}
			proof, err := decodeProof(v)
			if err != nil {
				return err
			}
			if num == fieldHeaderSHA256WithRSA {
				h.SHA256WithRSA = append(h.SHA256WithRSA, proof)
			} else {
				h.SHA256WithECDSA = append(h.SHA256WithECDSA, proof)
			}
		case fieldHeaderSignedData:
			if typ != protowire.BytesType {
				return formatErr("signed_header_data: wrong wire type", nil)
			}
			h.SignedHeaderData = cloneBytes(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// decodeProof decodes an AsymmetricKeyProof message.
func decodeProof(b []byte) (Proof, error) {
	var p Proof
	err := walkFields(b, "proof", func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldProofPublicKey, fieldProofSignature:
			if typ != protowire.BytesType {
				return formatErr(fmt.Sprintf("proof field %d: wrong wire type %d", num, typ), nil)
			}
			if num == fieldProofPublicKey {
				p.PublicKey = cloneBytes(v)
			} else {
				p.Signature = cloneBytes(v)
			}
		}
		return nil
	})
	return p, err
}

// decodeSignedData decodes a SignedData message and returns crx_id, or nil
// when the field is absent.
func decodeSignedData(b []byte) ([]byte, error) {
	var id []byte
	err := walkFields(b, "signed data", func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != fieldSignedDataCrxID {
			return nil
		}
		if typ != protowire.BytesType {
			return formatErr("crx_id: wrong wire type", nil)
		}
		id = cloneBytes(v)
		return nil
	})
	return id, err
}

// walkFields iterates the top-level fields of a protobuf message. For
// length-delimited fields v holds the payload; for other wire types v is nil
// and the value is skipped.
func walkFields(b []byte, what string, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return formatErr(what+": bad tag", protowire.ParseError(n))
		}
		b = b[n:]

		var v []byte
		if typ == protowire.BytesType {
			v, n = protowire.ConsumeBytes(b)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return formatErr(fmt.Sprintf("%s: bad value for field %d", what, num), protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
