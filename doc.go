// Package eradius implements a RADIUS (RFC 2865) authentication client
// with ordered server failover and multi-round challenge support.
//
// A client sends an Access-Request to each candidate server in turn,
// waiting up to a configurable timeout per server, and returns the first
// definitive answer: accept, reject, or challenge. A challenge carries an
// opaque continuation blob; passing it back on the next call resumes the
// exchange against the exact server that issued the challenge.
package eradius
