package eradius

import (
	"context"
	"net"
	"time"
)

// Conn represents a network connection used for one RADIUS exchange.
type Conn interface {
	net.Conn
}

// Dialer establishes connections to RADIUS servers. Each exchange dials a
// fresh ephemeral endpoint and closes it before returning; endpoints are
// never pooled or shared, matching RADIUS's stateless UDP model.
type Dialer interface {
	// Dial connects to the address on the named network.
	Dial(ctx context.Context, network, address string) (Conn, error)
}

// udpConn wraps a net.Conn to implement the Conn interface.
type udpConn struct {
	net.Conn
}

// UDPDialer implements Dialer for UDP datagram exchanges.
type UDPDialer struct {
	// Timeout is the maximum duration for the dial to complete.
	// If zero, no timeout is applied.
	Timeout time.Duration

	// LocalAddr is the local address to bind when dialing.
	// If nil, an ephemeral local address is chosen.
	LocalAddr *net.UDPAddr
}

// Dial connects a datagram socket to the address.
func (d *UDPDialer) Dial(ctx context.Context, network, address string) (Conn, error) {
	dialer := &net.Dialer{
		Timeout: d.Timeout,
	}
	if d.LocalAddr != nil {
		dialer.LocalAddr = d.LocalAddr
	}

	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return &udpConn{Conn: conn}, nil
}

// DefaultUDPDialer returns a UDP dialer with default settings.
func DefaultUDPDialer() *UDPDialer {
	return &UDPDialer{
		Timeout: 5 * time.Second,
	}
}
