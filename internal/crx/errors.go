package crx

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat matches any *FormatError via errors.Is.
	ErrFormat = errors.New("malformed package")
	// ErrTrust matches any *TrustError via errors.Is.
	ErrTrust = errors.New("untrusted package")
)

// FormatError reports a malformed container, header, or identity.
// It is never worth retrying.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crx format: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("crx format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) true for every FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErr(reason string, err error) error {
	return &FormatError{Reason: reason, Err: err}
}

// TrustError reports that no declared public key hashes to the declared
// identity.
type TrustError struct {
	Expected   Identity
	Candidates int
}

func (e *TrustError) Error() string {
	return fmt.Sprintf("crx trust: no public_key matched declared identity %s (%d candidates)",
		e.Expected, e.Candidates)
}

// Is makes errors.Is(err, ErrTrust) true for every TrustError.
func (e *TrustError) Is(target error) bool { return target == ErrTrust }
