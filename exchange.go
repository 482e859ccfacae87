package eradius

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"layeh.com/radius"
)

// maxResponseLength bounds the reply read buffer. RFC 2865 caps a RADIUS
// packet at 4096 octets.
const maxResponseLength = 4096

// radiusHeaderLength is the fixed RADIUS packet header size in octets.
const radiusHeaderLength = 20

// exchange performs one UDP round trip: dial a transient socket, send the
// encoded Access-Request, and wait until a reply carrying the matching
// identifier arrives or the deadline fires. Datagrams with a foreign
// identifier are stray replies to earlier requests and are discarded. The
// socket is released on every exit path.
func (c *Client) exchange(ctx context.Context, server ServerCandidate, wire []byte, id byte, timeout time.Duration) (*radius.Packet, error) {
	conn, err := c.dialer.Dial(ctx, "udp", server.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", server.Addr(), err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(wire); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	buf := make([]byte, maxResponseLength)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, ErrTimeout
			}
			// A connected UDP socket reports ICMP port-unreachable
			// as a refused read. The candidate gave no answer, so
			// it counts as a timeout and triggers failover.
			if errors.Is(err, syscall.ECONNREFUSED) {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("read reply: %w", err)
		}
		if n < radiusHeaderLength {
			return nil, fmt.Errorf("%w: %d bytes", ErrShortPacket, n)
		}

		resp, err := radius.Parse(buf[:n], server.Secret)
		if err != nil {
			return nil, fmt.Errorf("parse reply: %w", err)
		}
		if resp.Identifier != id {
			continue
		}
		return resp, nil
	}
}
