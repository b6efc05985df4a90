// Package fs provides filesystem abstractions for testability and fault injection.
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test wrapper that fails writes and syncs, or silently
//     flips bits on read to exercise checksum verification
//
// Production code uses fs.Default:
//
//	file, err := fs.Default.OpenFile(path, os.O_RDONLY, 0)
//
// Tests inject a FaultyFS:
//
//	ffs := fs.NewFaultyFS(nil)
//	fault := fs.NoFault()
//	fault.FlipBitAt = 20
//	ffs.AddRule("segment", fault)
//
// Operations take no context.Context. Local syscalls are not
// interruptible; slow remote storage goes through blobstore instead.
package fs
