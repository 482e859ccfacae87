package eradius

import (
	"encoding/binary"
	"fmt"
)

// continuationVersion is the current encoding version. Bump when the
// layout changes so old blobs fail decoding instead of misparsing.
const continuationVersion uint8 = 1

// Continuation captures where a challenge sequence must resume: the single
// server that issued the challenge and the protocol state it handed back.
// Once a challenge begins, the whole sequence must complete against that
// server; the authenticator exchange is server-specific, so no other
// candidate may be tried.
//
// The caller holds the encoded form between calls as an opaque blob and
// returns it verbatim. It is decoded exactly once, at the start of the
// resumed attempt, then discarded.
type Continuation struct {
	Server ServerCandidate
	State  []byte
}

// MarshalBinary encodes the continuation to its versioned binary format:
//
//	version (1) | addrLen (2) | addr | port (2) | secretLen (2) | secret | state
//
// All integers are big-endian. The trailing state runs to the end of the
// blob.
func (c *Continuation) MarshalBinary() ([]byte, error) {
	addr := []byte(c.Server.Address)
	if len(addr) > 0xFFFF {
		return nil, fmt.Errorf("%w: address too long", ErrCorruptContinuation)
	}
	if len(c.Server.Secret) > 0xFFFF {
		return nil, fmt.Errorf("%w: secret too long", ErrCorruptContinuation)
	}

	buf := make([]byte, 0, 7+len(addr)+len(c.Server.Secret)+len(c.State))
	buf = append(buf, continuationVersion)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(addr)))
	buf = append(buf, addr...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(c.Server.Port))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Server.Secret)))
	buf = append(buf, c.Server.Secret...)
	buf = append(buf, c.State...)
	return buf, nil
}

// UnmarshalBinary decodes a continuation previously produced by
// MarshalBinary. It returns ErrCorruptContinuation when the blob is
// truncated or carries an unknown version.
func (c *Continuation) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("%w: empty input", ErrCorruptContinuation)
	}
	if data[0] != continuationVersion {
		return fmt.Errorf("%w: unknown version %d", ErrCorruptContinuation, data[0])
	}
	rest := data[1:]

	if len(rest) < 2 {
		return fmt.Errorf("%w: truncated address length", ErrCorruptContinuation)
	}
	addrLen := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < addrLen+2 {
		return fmt.Errorf("%w: truncated address", ErrCorruptContinuation)
	}
	addr := string(rest[:addrLen])
	rest = rest[addrLen:]

	port := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]

	if len(rest) < 2 {
		return fmt.Errorf("%w: truncated secret length", ErrCorruptContinuation)
	}
	secretLen := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < secretLen {
		return fmt.Errorf("%w: truncated secret", ErrCorruptContinuation)
	}
	secret := make([]byte, secretLen)
	copy(secret, rest[:secretLen])
	rest = rest[secretLen:]

	state := make([]byte, len(rest))
	copy(state, rest)

	c.Server = ServerCandidate{Address: addr, Port: port, Secret: secret}
	c.State = state
	return nil
}
