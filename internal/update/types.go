// Package update speaks the query/redirect update protocol: it builds the
// update-check URL, checks whether a newer package exists, and downloads
// package bytes following redirects by hand.
package update

import (
	"errors"
	"fmt"
)

// Status is the outcome of an update check.
type Status int

const (
	// NoUpdate means the local copy is current (HTTP 204).
	NoUpdate Status = iota
	// UpdateAvailable means a newer package exists.
	UpdateAvailable
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case NoUpdate:
		return "no-update"
	case UpdateAvailable:
		return "update-available"
	default:
		return "unknown"
	}
}

// CheckResult is the answer to an update check.
type CheckResult struct {
	Status Status
	// Payload holds the response body of a 200 answer. It is nil when the
	// server answered with a redirect and the caller must download.
	Payload []byte
}

// ErrProtocol matches any *ProtocolError via errors.Is.
var ErrProtocol = errors.New("update protocol error")

// ProtocolError reports an unexpected HTTP answer.
type ProtocolError struct {
	Op         string // "check" or "download"
	URL        string
	StatusCode int // 0 when the error is not about a status code
	Reason     string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed: unexpected status %d (%s)", e.Op, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s failed: %s (%s)", e.Op, e.Reason, e.URL)
}

// Is makes errors.Is(err, ErrProtocol) true for every ProtocolError.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }
