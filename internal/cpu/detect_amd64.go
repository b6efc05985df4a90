//go:build amd64

package cpu

import "golang.org/x/sys/cpu"

func detectFeatures() Feature {
	var f Feature
	if cpu.X86.HasSSE42 {
		f |= SSE42
	}
	if cpu.X86.HasPCLMULQDQ {
		f |= PCLMULQDQ
	}
	return f
}
