// Package cpu detects the host features that CRC32C kernels depend on.
//
// Detection reads golang.org/x/sys/cpu once per process. The result is an
// immutable Capabilities value; nothing in this package is mutated after
// Host returns for the first time.
package cpu

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// Feature is a set of CPU feature bits relevant to checksum acceleration.
type Feature uint32

const (
	// SSE42 is the x86-64 SSE4.2 extension (CRC32 instruction).
	SSE42 Feature = 1 << iota
	// PCLMULQDQ is the x86-64 carry-less multiply extension.
	PCLMULQDQ
	// ARM64CRC32 is the ARMv8 CRC32 extension (CRC32C* instructions).
	ARM64CRC32
	// ARM64PMULL is the ARMv8 polynomial multiply long extension.
	ARM64PMULL
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{SSE42, "sse4.2"},
	{PCLMULQDQ, "pclmulqdq"},
	{ARM64CRC32, "crc32"},
	{ARM64PMULL, "pmull"},
}

// String returns the feature names joined by "|", or "none".
func (f Feature) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range featureNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
			f &^= fn.f
		}
	}
	if f != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(f)))
	}
	return strings.Join(parts, "|")
}

// ParseFeatures parses a comma or "|" separated list of feature names.
// The empty string parses to zero.
func ParseFeatures(s string) (Feature, error) {
	var out Feature
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	for _, field := range fields {
		name := strings.ToLower(strings.TrimSpace(field))
		found := false
		for _, fn := range featureNames {
			if fn.name == name {
				out |= fn.f
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("cpu: unknown feature %q", field)
		}
	}
	return out, nil
}

// Capabilities describes what the running host supports.
type Capabilities struct {
	Arch     string
	OS       string
	Features Feature
}

// Has reports whether every bit of f is present.
func (c Capabilities) Has(f Feature) bool {
	return c.Features&f == f
}

// Without returns a copy of c with the bits of f cleared.
func (c Capabilities) Without(f Feature) Capabilities {
	c.Features &^= f
	return c
}

func (c Capabilities) String() string {
	return fmt.Sprintf("%s/%s [%s]", c.OS, c.Arch, c.Features)
}

// Baseline returns the capabilities of a host without any accelerated
// feature.
func Baseline() Capabilities {
	return Capabilities{Arch: runtime.GOARCH, OS: runtime.GOOS}
}

// Detect probes the host. It never fails: an unknown architecture yields
// Baseline().
func Detect() Capabilities {
	c := Baseline()
	c.Features = detectFeatures()
	return c
}

var host = sync.OnceValue(Detect)

// Host returns the capabilities detected once for this process.
func Host() Capabilities {
	return host()
}
