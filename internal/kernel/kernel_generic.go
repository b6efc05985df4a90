//go:build (!amd64 && !arm64) || purego

package kernel

func archKernels() []Kernel {
	return nil
}
