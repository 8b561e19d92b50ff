package crx

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// Magic is the 4-byte prefix of every container.
	Magic = "Cr24"
	// SupportedVersion is the only accepted container format version.
	SupportedVersion = 3
	// prefixLen covers magic, version and header length.
	prefixLen = 12
)

// Parse validates the container framing, decodes the header and returns it
// together with a copy of the archive payload.
func Parse(data []byte) (*Header, []byte, error) {
	if len(data) < prefixLen {
		return nil, nil, formatErr(fmt.Sprintf("container too small: %d bytes", len(data)), nil)
	}

	if !bytes.Equal(data[0:4], []byte(Magic)) {
		return nil, nil, formatErr(fmt.Sprintf("invalid magic %q", data[0:4]), nil)
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	if version != SupportedVersion {
		return nil, nil, formatErr(fmt.Sprintf("unsupported version %d", version), nil)
	}

	// Compare in uint64 so a huge header length cannot wrap.
	headerLen := uint64(binary.LittleEndian.Uint32(data[8:12]))
	headerEnd := uint64(prefixLen) + headerLen
	if uint64(len(data)) < headerEnd {
		return nil, nil, formatErr(fmt.Sprintf("header truncated: need %d bytes, have %d", headerEnd, len(data)), nil)
	}

	header, err := decodeHeader(data[prefixLen:headerEnd])
	if err != nil {
		return nil, nil, err
	}

	return header, cloneBytes(data[headerEnd:]), nil
}
