// Package ids generates k-sortable unique identifiers for documents, terms,
// postings, labels, and tags. IDs are ULIDs: their
// lexicographic order tracks creation order at millisecond resolution, and a
// monotonic entropy source keeps IDs strictly increasing even when several
// are minted in the same millisecond by the same Generator.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator mints k-sortable ids. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator returns a Generator ready for use.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// New mints a new id, lexicographically non-decreasing relative to every
// previous id minted by this Generator.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return id.String()
}

// Valid reports whether s parses as a well-formed id.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
