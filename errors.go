package crc32c

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownImplementation is returned when a kernel name is not registered.
	ErrUnknownImplementation = errors.New("unknown crc32c implementation")

	// ErrUnsupportedImplementation is returned when a kernel needs CPU
	// features the host does not have.
	ErrUnsupportedImplementation = errors.New("unsupported crc32c implementation")

	// ErrChecksumMismatch matches every *ChecksumMismatchError via errors.Is.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// UnknownImplementationError reports a kernel name that is not registered.
//
// It matches ErrUnknownImplementation via errors.Is.
type UnknownImplementationError struct {
	Name      string
	Available []string
}

func (e *UnknownImplementationError) Error() string {
	return fmt.Sprintf("unknown crc32c implementation %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

func (e *UnknownImplementationError) Unwrap() error { return ErrUnknownImplementation }

// UnsupportedImplementationError reports a kernel whose required features
// are missing.
//
// It matches ErrUnsupportedImplementation via errors.Is.
type UnsupportedImplementationError struct {
	Name     string
	Requires Feature
	Have     Feature
}

func (e *UnsupportedImplementationError) Error() string {
	return fmt.Sprintf("crc32c implementation %q requires %s, host has %s", e.Name, e.Requires, e.Have)
}

func (e *UnsupportedImplementationError) Unwrap() error { return ErrUnsupportedImplementation }

// ChecksumMismatchError is returned when verification fails.
//
// Name optionally identifies the object that failed (a blob, block or frame).
type ChecksumMismatchError struct {
	Name     string
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("checksum mismatch for %s: expected 0x%08x, got 0x%08x", e.Name, e.Expected, e.Actual)
	}
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// IsChecksumMismatch returns true if err is or wraps a checksum mismatch.
func IsChecksumMismatch(err error) bool {
	var mm *ChecksumMismatchError
	return errors.As(err, &mm)
}
