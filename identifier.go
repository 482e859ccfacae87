package eradius

import (
	"crypto/rand"
	"sync/atomic"
)

// IdentifierSource produces RADIUS packet identifiers from a shared atomic
// counter. Every exchange attempt, including retries against other
// candidates and repeated challenge rounds, draws a fresh identifier so a
// reply can be matched to exactly one in-flight request. Identifiers are
// monotonic for the lifetime of the source and wrap modulo 256, the range
// the one-byte wire field allows.
//
// A single source is shared by all concurrent authentication calls of a
// Client; it is the only cross-call mutable state.
type IdentifierSource struct {
	counter atomic.Uint32
}

// NewIdentifierSource creates an identifier source seeded at a random
// starting point, so identifiers do not restart at zero on every process
// launch.
func NewIdentifierSource() *IdentifierSource {
	s := &IdentifierSource{}
	var seed [1]byte
	if _, err := rand.Read(seed[:]); err == nil {
		s.counter.Store(uint32(seed[0]))
	}
	return s
}

// Next atomically allocates the next identifier. Safe under unbounded
// concurrent callers.
func (s *IdentifierSource) Next() byte {
	return byte(s.counter.Add(1) - 1)
}
