//go:build arm64

package cpu

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

func detectFeatures() Feature {
	// Every Apple Silicon core has CRC32 and PMULL, but the feature
	// registers are not readable from user space on darwin.
	darwin := runtime.GOOS == "darwin"

	var f Feature
	if cpu.ARM64.HasCRC32 || darwin {
		f |= ARM64CRC32
	}
	if cpu.ARM64.HasPMULL || darwin {
		f |= ARM64PMULL
	}
	return f
}
