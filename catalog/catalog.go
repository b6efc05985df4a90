// Package catalog records the CRC32C and length of stored objects.
//
// A catalog is the "where do checksums live" half of end-to-end
// verification: writers record an Entry when an object is stored, readers
// and the scrubber look it up to verify what they read back.
//
// # Built-in Implementations
//
//   - MemoryCatalog: in-process map, for tests and single-node use
//   - DynamoCatalog: Amazon DynamoDB table keyed by object name
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/crc32c"
)

// ErrNotFound is returned when no entry exists for a name.
var ErrNotFound = errors.New("catalog: entry not found")

// Entry is the recorded checksum of one object.
type Entry struct {
	Name   string
	CRC    uint32
	Length uint64
}

// Part returns the entry as a combinable fragment.
func (e Entry) Part() crc32c.Part {
	return crc32c.Part{CRC: e.CRC, Length: e.Length}
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (crc32c=0x%08x, %d bytes)", e.Name, e.CRC, e.Length)
}

// Catalog stores entries by name. Implementations must be safe for
// concurrent use.
type Catalog interface {
	// Put records or replaces the entry for e.Name.
	Put(ctx context.Context, e Entry) error
	// Get returns the entry for name or an error matching ErrNotFound.
	Get(ctx context.Context, name string) (Entry, error)
	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all entries whose name starts with prefix, sorted by name.
	List(ctx context.Context, prefix string) ([]Entry, error)
}
