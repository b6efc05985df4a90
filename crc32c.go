package crc32c

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/crc32c/internal/cpu"
	"github.com/hupe1980/crc32c/internal/kernel"
)

// Size is the size of a CRC32C checksum in bytes.
const Size = kernel.Size

const (
	// EnvImplementation forces a kernel by name when it is eligible on the host.
	EnvImplementation = "CRC32C_IMPL"
	// EnvDisable masks CPU features before selection (e.g. "sse4.2,pclmulqdq").
	EnvDisable = "CRC32C_DISABLE"
)

// Capabilities is the immutable set of CPU features detected for an Engine.
type Capabilities = cpu.Capabilities

// Feature is a set of CPU feature bits.
type Feature = cpu.Feature

// CPU features that gate accelerated kernels.
const (
	SSE42      = cpu.SSE42
	PCLMULQDQ  = cpu.PCLMULQDQ
	ARM64CRC32 = cpu.ARM64CRC32
	ARM64PMULL = cpu.ARM64PMULL
)

// Engine computes CRC32C checksums with one kernel chosen at construction.
//
// An Engine is immutable and safe for concurrent use. Create one at startup
// and pass it to the components that checksum data.
type Engine struct {
	caps       Capabilities
	kern       kernel.Kernel
	eligible   kernel.Registry
	overridden bool
	logger     *Logger
	metrics    MetricsCollector
}

// New detects the host capabilities and selects the best eligible kernel.
//
// Without options New never fails. WithImplementation returns an error if
// the named kernel is unknown or not eligible on the (possibly masked)
// capabilities.
func New(optFns ...Option) (*Engine, error) {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&o)
	}

	host := cpu.Host()
	caps := host
	if o.caps != nil {
		// Only detected features may gate a kernel.
		caps = *o.caps
		caps.Features &= host.Features
	}

	ctx := context.Background()

	if env := os.Getenv(EnvDisable); env != "" {
		f, err := cpu.ParseFeatures(env)
		if err != nil {
			o.logger.WarnContext(ctx, "ignoring invalid feature mask", "env", EnvDisable, "value", env, "error", err)
		} else {
			caps = caps.Without(f)
		}
	}
	caps = caps.Without(o.disabled)

	reg := kernel.Builtin()

	e := &Engine{
		caps:     caps,
		eligible: reg.Eligible(caps),
		logger:   o.logger,
		metrics:  o.metrics,
	}

	switch {
	case o.impl != "":
		k, err := lookupEligible(reg, o.impl, caps)
		if err != nil {
			return nil, err
		}
		e.kern = k
		e.overridden = true
	case os.Getenv(EnvImplementation) != "":
		name := os.Getenv(EnvImplementation)
		k, err := lookupEligible(reg, name, caps)
		if err != nil {
			o.logger.WarnContext(ctx, "ignoring implementation override", "env", EnvImplementation, "value", name, "error", err)
			e.kern = reg.Select(caps)
		} else {
			e.kern = k
			e.overridden = true
		}
	default:
		e.kern = reg.Select(caps)
	}

	e.logger.LogSelection(ctx, e.caps, e.kern.Name, e.overridden)

	return e, nil
}

func lookupEligible(reg kernel.Registry, name string, caps Capabilities) (kernel.Kernel, error) {
	k, ok := reg.Lookup(name)
	if !ok {
		return kernel.Kernel{}, &UnknownImplementationError{Name: name, Available: reg.Names()}
	}
	if !k.Eligible(caps) {
		return kernel.Kernel{}, &UnsupportedImplementationError{Name: name, Requires: k.Requires, Have: caps.Features}
	}
	return k, nil
}

// MustNew is like New but panics on error.
func MustNew(optFns ...Option) *Engine {
	e, err := New(optFns...)
	if err != nil {
		panic(err)
	}
	return e
}

var defaultEngine = sync.OnceValue(func() *Engine {
	// New cannot fail without options.
	return MustNew()
})

// Default returns the process-wide engine, created on first use.
func Default() *Engine {
	return defaultEngine()
}

// Capabilities returns the capabilities the engine selected its kernel from.
func (e *Engine) Capabilities() Capabilities {
	return e.caps
}

// Implementation returns the name of the selected kernel.
func (e *Engine) Implementation() string {
	return e.kern.Name
}

// Overridden reports whether the kernel was forced by option or environment.
func (e *Engine) Overridden() bool {
	return e.overridden
}

// Implementations returns every kernel that may run with the engine's
// capabilities, most specialized first.
func (e *Engine) Implementations() []string {
	return e.eligible.Names()
}

// Checksum feeds data into seed and returns the new checksum.
//
// Pass 0 to start a new checksum; pass a previous result to continue it:
// Checksum(Checksum(s, a), b) == Checksum(s, a+b).
func (e *Engine) Checksum(seed uint32, data []byte) uint32 {
	return e.kern.Update(seed, data)
}

// Combine returns the checksum of A+B given crcA = Checksum(seed, A),
// crcB = Checksum(0, B) and lenB = len(B). A is never re-read.
func (e *Engine) Combine(crcA, crcB uint32, lenB uint64) uint32 {
	return kernel.Combine(crcA, crcB, lenB)
}

// ExtendZeros returns the checksum of crc's input followed by n zero bytes.
func (e *Engine) ExtendZeros(crc uint32, n uint64) uint32 {
	return kernel.ExtendZeros(crc, n)
}

// Verify checksums data and compares the result with expected.
func (e *Engine) Verify(expected uint32, data []byte) error {
	start := time.Now()
	var err error
	if actual := e.Checksum(0, data); actual != expected {
		err = &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	e.metrics.RecordVerify(len(data), time.Since(start), err)
	return err
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *Logger {
	return e.logger
}

// Metrics returns the engine's metrics collector.
func (e *Engine) Metrics() MetricsCollector {
	return e.metrics
}

// Part is the checksum and length of one fragment of a larger object.
type Part struct {
	CRC    uint32
	Length uint64
}

// CombineAll folds independently computed fragment checksums, in order,
// into the checksum of their concatenation.
func (e *Engine) CombineAll(parts ...Part) Part {
	var out Part
	for _, p := range parts {
		out.CRC = kernel.Combine(out.CRC, p.CRC, p.Length)
		out.Length += p.Length
	}
	return out
}

// Checksum computes a checksum with the default engine.
func Checksum(seed uint32, data []byte) uint32 {
	return Default().Checksum(seed, data)
}

// Combine combines checksums with the default engine.
func Combine(crcA, crcB uint32, lenB uint64) uint32 {
	return Default().Combine(crcA, crcB, lenB)
}

// Verify verifies data with the default engine.
func Verify(expected uint32, data []byte) error {
	return Default().Verify(expected, data)
}

// HostCapabilities returns what the detector found on this host.
func HostCapabilities() Capabilities {
	return cpu.Host()
}
