package eradius

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// DefaultTimeout is the default per-exchange reply timeout.
const DefaultTimeout = 5 * time.Second

// ServerCandidate identifies one RADIUS server in the failover list.
type ServerCandidate struct {
	// Address is the server host name or IP address.
	Address string

	// Port is the UDP port, conventionally 1812.
	Port int

	// Secret is the shared secret configured for this server.
	Secret []byte
}

// Addr returns the dialable host:port form of the candidate.
func (s ServerCandidate) Addr() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// AuthRequest describes one authentication call.
type AuthRequest struct {
	// Username is the credential identifier.
	Username string

	// Password is the credential secret. It is carried in the
	// Access-Request as a PAP-obfuscated User-Password attribute and is
	// not retained after the call.
	Password string

	// NASIdentifier is sent as the NAS-Identifier attribute when set.
	// It overrides the client-level default.
	NASIdentifier string

	// NASIPAddress is sent as the NAS-IP-Address attribute when set.
	// It overrides the client-level default.
	NASIPAddress net.IP

	// Servers is the ordered failover candidate list. Candidates are
	// tried strictly in this order, never in parallel. Required for a
	// fresh authentication; ignored when resuming a challenge, which is
	// pinned to the server that issued it.
	Servers []ServerCandidate

	// Timeout is the reply deadline per server. Zero uses the client
	// default. The deadline applies per exchange, not across the whole
	// failover sequence.
	Timeout time.Duration

	// Continuation resumes a challenge sequence. Empty starts fresh;
	// otherwise it must be the blob returned by the previous challenge
	// outcome, unmodified.
	Continuation []byte
}

// Client is a RADIUS authentication client. A single Client is safe for
// concurrent use; each call runs in its own goroutine and the only state
// shared between calls is the identifier source.
type Client struct {
	timeout       time.Duration
	nasIdentifier string
	nasIP         net.IP
	dialer        Dialer
	ids           *IdentifierSource
	logger        *slog.Logger
	metrics       *Metrics
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the default per-exchange reply timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithNASIdentifier sets the default NAS-Identifier attribute value.
func WithNASIdentifier(id string) ClientOption {
	return func(c *Client) {
		c.nasIdentifier = id
	}
}

// WithNASIPAddress sets the default NAS-IP-Address attribute value.
func WithNASIPAddress(ip net.IP) ClientOption {
	return func(c *Client) {
		c.nasIP = ip
	}
}

// WithDialer sets a custom dialer for exchanges.
// If dialer is nil, the default UDP dialer is retained.
func WithDialer(dialer Dialer) ClientOption {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithLogger sets the structured logger for client events.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus instrumentation for the client.
func WithMetrics(metrics *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithIdentifierSource sets a shared identifier source. Useful when several
// clients in one process must draw from a single identifier space.
func WithIdentifierSource(ids *IdentifierSource) ClientOption {
	return func(c *Client) {
		if ids != nil {
			c.ids = ids
		}
	}
}

// NewClient creates a new RADIUS authentication client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout: DefaultTimeout,
		dialer:  DefaultUDPDialer(),
		ids:     NewIdentifierSource(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	// Update dialer timeout after all options are applied
	if d, ok := c.dialer.(*UDPDialer); ok {
		d.Timeout = c.timeout
	}

	return c
}

// Authenticate performs one authentication attempt and blocks until a
// terminal outcome is ready. The attempt itself runs in its own goroutine;
// candidates are contacted sequentially within it, while separate calls
// proceed fully concurrently.
//
// An error is returned only for requests that are invalid before any server
// is contacted. Every protocol-path failure, including panics inside the
// attempt, is folded into a reject outcome so the caller always receives a
// well-formed verdict.
func (c *Client) Authenticate(ctx context.Context, req *AuthRequest) (*Outcome, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}
	if len(req.Continuation) == 0 && len(req.Servers) == 0 {
		return nil, ErrNoServers
	}

	results := make(chan *Outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				// Reply first, then surface the defect to the
				// supervising layers.
				results <- rejectOutcome(ReasonInternalError)
				c.logger.Error("authentication worker panic",
					slog.String("user", req.Username),
					slog.Any("panic", r),
				)
				c.metrics.observePanic()
			}
		}()
		results <- c.runFailover(ctx, req)
	}()

	return <-results, nil
}
