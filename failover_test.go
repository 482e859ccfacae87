package eradius

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

const testTimeout = 150 * time.Millisecond

// testServer is a loopback RADIUS server driven by a handler. A nil handler
// return stays silent, which the client observes as a timeout.
type testServer struct {
	pc      net.PacketConn
	secret  []byte
	hits    atomic.Int32
	handler func(req *radius.Packet) *radius.Packet
}

func newTestServer(t *testing.T, secret []byte, handler func(*radius.Packet) *radius.Packet) *testServer {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testServer{pc: pc, secret: secret, handler: handler}
	go s.serve()
	t.Cleanup(func() { pc.Close() })
	return s
}

func (s *testServer) serve() {
	buf := make([]byte, 4096)
	for {
		n, addr, err := s.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		s.hits.Add(1)

		req, err := radius.Parse(buf[:n], s.secret)
		if err != nil {
			continue
		}
		resp := s.handler(req)
		if resp == nil {
			continue
		}
		wire, err := resp.Encode()
		if err != nil {
			continue
		}
		s.pc.WriteTo(wire, addr)
	}
}

func (s *testServer) candidate() ServerCandidate {
	addr := s.pc.LocalAddr().(*net.UDPAddr)
	return ServerCandidate{Address: addr.IP.String(), Port: addr.Port, Secret: s.secret}
}

func (s *testServer) hitCount() int {
	return int(s.hits.Load())
}

// rawTestServer answers every datagram with fixed raw bytes, bypassing the
// RADIUS codec entirely.
type rawTestServer struct {
	pc   net.PacketConn
	hits atomic.Int32
	raw  [][]byte
}

func newRawTestServer(t *testing.T, raw ...[]byte) *rawTestServer {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &rawTestServer{pc: pc, raw: raw}
	go s.serve()
	t.Cleanup(func() { pc.Close() })
	return s
}

func (s *rawTestServer) serve() {
	buf := make([]byte, 4096)
	for {
		_, addr, err := s.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		s.hits.Add(1)
		for _, datagram := range s.raw {
			s.pc.WriteTo(datagram, addr)
		}
	}
}

func (s *rawTestServer) candidate(secret []byte) ServerCandidate {
	addr := s.pc.LocalAddr().(*net.UDPAddr)
	return ServerCandidate{Address: addr.IP.String(), Port: addr.Port, Secret: secret}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func acceptHandler(req *radius.Packet) *radius.Packet {
	return req.Response(radius.CodeAccessAccept)
}

func rejectHandler(req *radius.Packet) *radius.Packet {
	return req.Response(radius.CodeAccessReject)
}

func silentHandler(*radius.Packet) *radius.Packet {
	return nil
}

func TestFailoverSequential(t *testing.T) {
	secret := []byte("s3cret")

	var mu sync.Mutex
	var order []string

	recorded := func(name string, handler func(*radius.Packet) *radius.Packet) func(*radius.Packet) *radius.Packet {
		return func(req *radius.Packet) *radius.Packet {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return handler(req)
		}
	}

	first := newTestServer(t, secret, recorded("first", silentHandler))
	second := newTestServer(t, secret, recorded("second", silentHandler))
	third := newTestServer(t, secret, recorded("third", acceptHandler))

	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username: "alice",
		Password: "password",
		Servers:  []ServerCandidate{first.candidate(), second.candidate(), third.candidate()},
		Timeout:  testTimeout,
	})
	require.NoError(t, err)

	assert.True(t, outcome.IsAccept())
	mu.Lock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
	mu.Unlock()
}

func TestFailoverExhaustion(t *testing.T) {
	secret := []byte("s3cret")

	first := newTestServer(t, secret, silentHandler)
	second := newTestServer(t, secret, silentHandler)

	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username: "alice",
		Password: "password",
		Servers:  []ServerCandidate{first.candidate(), second.candidate()},
		Timeout:  testTimeout,
	})
	require.NoError(t, err)

	assert.True(t, outcome.IsReject())
	assert.Equal(t, ReasonBackendUnreachable, outcome.Reason)
	assert.Nil(t, outcome.Packet)
	assert.Equal(t, 1, first.hitCount())
	assert.Equal(t, 1, second.hitCount())
}

func TestFailoverMalformedReplyIsTerminal(t *testing.T) {
	secret := []byte("s3cret")

	garbage := newRawTestServer(t, []byte("definitely not a radius packet, but long enough to parse"))
	fallback := newTestServer(t, secret, acceptHandler)

	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username: "alice",
		Password: "password",
		Servers:  []ServerCandidate{garbage.candidate(secret), fallback.candidate()},
		Timeout:  testTimeout,
	})
	require.NoError(t, err)

	assert.True(t, outcome.IsReject())
	assert.Equal(t, ReasonInternalError, outcome.Reason)
	assert.Equal(t, 0, fallback.hitCount(), "next candidate must not be contacted after a malformed reply")
}

func TestFailoverChallengePinning(t *testing.T) {
	secret := []byte("s3cret")
	state := []byte("round-one-state")

	issuer := newTestServer(t, secret, func(req *radius.Packet) *radius.Packet {
		if got := rfc2865.State_Get(req); len(got) > 0 {
			// Second round: the request must carry back our state.
			if string(got) != string(state) {
				return req.Response(radius.CodeAccessReject)
			}
			return req.Response(radius.CodeAccessAccept)
		}
		resp := req.Response(radius.CodeAccessChallenge)
		rfc2865.State_Set(resp, state)
		rfc2865.ReplyMessage_SetString(resp, "Enter OTP")
		return resp
	})
	bystander := newTestServer(t, secret, acceptHandler)
	bystander2 := newTestServer(t, secret, acceptHandler)

	servers := []ServerCandidate{issuer.candidate(), bystander.candidate(), bystander2.candidate()}
	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username: "alice",
		Password: "password",
		Servers:  servers,
		Timeout:  testTimeout,
	})
	require.NoError(t, err)
	require.True(t, outcome.IsChallenge())
	assert.Equal(t, "Enter OTP", outcome.ReplyMessage)
	require.NotEmpty(t, outcome.Continuation)

	// Resume with the original full list; only the issuer may be contacted.
	resumed, err := client.Authenticate(context.Background(), &AuthRequest{
		Username:     "alice",
		Password:     "123456",
		Servers:      servers,
		Timeout:      testTimeout,
		Continuation: outcome.Continuation,
	})
	require.NoError(t, err)

	assert.True(t, resumed.IsAccept())
	assert.Equal(t, 2, issuer.hitCount())
	assert.Equal(t, 0, bystander.hitCount())
	assert.Equal(t, 0, bystander2.hitCount())
}

func TestFailoverResumingTimeoutIsUnreachable(t *testing.T) {
	secret := []byte("s3cret")

	issuer := newTestServer(t, secret, func(req *radius.Packet) *radius.Packet {
		if len(rfc2865.State_Get(req)) > 0 {
			return nil // stop answering once the challenge round starts
		}
		resp := req.Response(radius.CodeAccessChallenge)
		rfc2865.State_Set(resp, []byte("st"))
		return resp
	})
	fallback := newTestServer(t, secret, acceptHandler)

	servers := []ServerCandidate{issuer.candidate(), fallback.candidate()}
	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username: "alice",
		Password: "password",
		Servers:  servers,
		Timeout:  testTimeout,
	})
	require.NoError(t, err)
	require.True(t, outcome.IsChallenge())

	resumed, err := client.Authenticate(context.Background(), &AuthRequest{
		Username:     "alice",
		Password:     "123456",
		Servers:      servers,
		Timeout:      testTimeout,
		Continuation: outcome.Continuation,
	})
	require.NoError(t, err)

	// No fallback to the original list once a challenge sequence begins.
	assert.True(t, resumed.IsReject())
	assert.Equal(t, ReasonBackendUnreachable, resumed.Reason)
	assert.Equal(t, 0, fallback.hitCount())
}

func TestFailoverProtocolReject(t *testing.T) {
	secret := []byte("s3cret")

	server := newTestServer(t, secret, func(req *radius.Packet) *radius.Packet {
		resp := req.Response(radius.CodeAccessReject)
		rfc2865.ReplyMessage_SetString(resp, "bad credentials")
		return resp
	})

	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username: "alice",
		Password: "wrong",
		Servers:  []ServerCandidate{server.candidate()},
		Timeout:  testTimeout,
	})
	require.NoError(t, err)

	assert.True(t, outcome.IsReject())
	assert.Equal(t, ReasonProtocol, outcome.Reason)
	assert.NotNil(t, outcome.Packet)
	assert.Equal(t, "bad credentials", outcome.ReplyMessage)
}

func TestFailoverDuplicateCandidateTriedOnce(t *testing.T) {
	secret := []byte("s3cret")

	server := newTestServer(t, secret, silentHandler)
	cand := server.candidate()

	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username: "alice",
		Password: "password",
		Servers:  []ServerCandidate{cand, cand, cand},
		Timeout:  testTimeout,
	})
	require.NoError(t, err)

	assert.Equal(t, ReasonBackendUnreachable, outcome.Reason)
	assert.Equal(t, 1, server.hitCount())
}

func TestFailoverCorruptContinuation(t *testing.T) {
	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username:     "alice",
		Password:     "password",
		Continuation: []byte{0xFF, 0x01, 0x02},
	})
	require.NoError(t, err)

	assert.True(t, outcome.IsReject())
	assert.Equal(t, ReasonInternalError, outcome.Reason)
}

func TestFailoverUnexpectedCodeIsTerminal(t *testing.T) {
	secret := []byte("s3cret")

	odd := newTestServer(t, secret, func(req *radius.Packet) *radius.Packet {
		return req.Response(radius.CodeAccountingResponse)
	})
	fallback := newTestServer(t, secret, acceptHandler)

	client := NewClient(WithLogger(discardLogger()))

	outcome, err := client.Authenticate(context.Background(), &AuthRequest{
		Username: "alice",
		Password: "password",
		Servers:  []ServerCandidate{odd.candidate(), fallback.candidate()},
		Timeout:  testTimeout,
	})
	require.NoError(t, err)

	assert.Equal(t, ReasonInternalError, outcome.Reason)
	assert.Equal(t, 0, fallback.hitCount())
}
