// Package crx decodes CRX3 package containers and verifies that a package
// belongs to the identity it declares.
//
// # Container Layout
//
//	magic[4]   "Cr24"
//	version    uint32 little-endian, must be 3
//	header_len uint32 little-endian
//	header     header_len bytes, protobuf CrxFileHeader
//	payload    remaining bytes, a zip archive
//
// The header carries (public key, signature) proofs under two algorithm
// fields and a nested signed-data blob holding the declared package id.
//
// # Identity Model
//
// A package identity is 32 characters from the alphabet a..p: the first 16
// bytes of a SHA-256 digest rendered as hex, with every hex digit shifted
// onto the letters a..p. A package is trusted when one of its declared public
// keys hashes to the declared identity. Signatures themselves are not
// verified.
//
// # Usage
//
//	pkg, err := crx.Open(data)
//	if err != nil {
//	    var trustErr *crx.TrustError
//	    if errors.As(err, &trustErr) {
//	        // wrong key material, discard the package
//	    }
//	    return err
//	}
//	// pkg.PublicKey, pkg.Payload, pkg.Identity
//
// Every function in this package is pure and safe on adversarial input.
package crx
