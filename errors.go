package eradius

import "errors"

// Errors returned by client operations.
var (
	// ErrTimeout indicates a candidate server did not answer within the
	// per-exchange deadline. It triggers failover to the next candidate
	// and is only visible to callers through the reject reason once every
	// candidate is exhausted.
	ErrTimeout = errors.New("exchange timeout")

	// ErrNoServers indicates a fresh authentication request was submitted
	// with an empty candidate list.
	ErrNoServers = errors.New("no candidate servers")

	// ErrInvalidRequest indicates the request is missing required fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrCorruptContinuation indicates the continuation bytes supplied by
	// the caller do not match the codec's format. The blob is opaque and
	// must be passed back verbatim between calls.
	ErrCorruptContinuation = errors.New("corrupt continuation")

	// ErrShortPacket indicates a datagram too small to carry a RADIUS
	// response header.
	ErrShortPacket = errors.New("short packet")

	// ErrUnexpectedCode indicates the server replied with a RADIUS code
	// other than Access-Accept, Access-Reject, or Access-Challenge.
	ErrUnexpectedCode = errors.New("unexpected response code")
)
