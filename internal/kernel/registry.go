// Package kernel holds the CRC32C implementations and the registry that
// picks one of them for a given set of CPU capabilities.
//
// All kernels share the Portable register convention and must return
// bit-identical results for every input.
package kernel

import (
	"github.com/hupe1980/crc32c/internal/cpu"
)

// UpdateFunc feeds p into crc and returns the new checksum.
type UpdateFunc func(crc uint32, p []byte) uint32

// Kernel is one registered CRC32C implementation.
type Kernel struct {
	// Name identifies the kernel in logs and overrides (e.g. "sse42").
	Name string
	// Requires lists the CPU features that must all be present.
	Requires cpu.Feature
	// Update computes the checksum.
	Update UpdateFunc
}

// Eligible reports whether k may run on a host with caps.
func (k Kernel) Eligible(caps cpu.Capabilities) bool {
	return caps.Has(k.Requires)
}

// PortableKernel is the table-driven fallback. It requires nothing.
var PortableKernel = Kernel{Name: "portable", Update: Portable}

// Registry is an ordered list of kernels, most specialized first.
type Registry []Kernel

var builtin = append(append(Registry{}, archKernels()...), PortableKernel)

// Builtin returns the kernels compiled into this binary. The portable
// kernel is always the last entry.
func Builtin() Registry {
	return append(Registry(nil), builtin...)
}

// Select returns the first kernel whose requirements caps satisfies.
// It falls back to PortableKernel, so it never fails.
func (r Registry) Select(caps cpu.Capabilities) Kernel {
	for _, k := range r {
		if k.Eligible(caps) {
			return k
		}
	}
	return PortableKernel
}

// Lookup finds a kernel by name.
func (r Registry) Lookup(name string) (Kernel, bool) {
	for _, k := range r {
		if k.Name == name {
			return k, true
		}
	}
	return Kernel{}, false
}

// Eligible returns the kernels that may run with caps, in registry order.
func (r Registry) Eligible(caps cpu.Capabilities) Registry {
	var out Registry
	for _, k := range r {
		if k.Eligible(caps) {
			out = append(out, k)
		}
	}
	return out
}

// Names returns the kernel names in registry order.
func (r Registry) Names() []string {
	names := make([]string, len(r))
	for i, k := range r {
		names[i] = k.Name
	}
	return names
}
