package eradius

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

// runFailover drives one authentication attempt to a terminal outcome. It
// walks the effective candidate list in order, one exchange at a time: a
// timeout advances to the next candidate, a decoded verdict is terminal,
// and any other failure is terminal with an internal-error reject. A
// malformed reply is attributed to this attempt rather than the server, so
// it is never blindly retried against the remaining candidates.
func (c *Client) runFailover(ctx context.Context, req *AuthRequest) *Outcome {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	candidates := req.Servers
	var state []byte
	resuming := false

	if len(req.Continuation) > 0 {
		var cont Continuation
		if err := cont.UnmarshalBinary(req.Continuation); err != nil {
			c.logger.Error("continuation decode failed",
				slog.String("user", req.Username),
				slog.Any("error", err),
			)
			c.metrics.observeResult(OutcomeReject, ReasonInternalError)
			return rejectOutcome(ReasonInternalError)
		}
		// A challenge sequence is pinned to the server that issued
		// it; the original candidate list no longer applies.
		candidates = []ServerCandidate{cont.Server}
		state = cont.State
		resuming = true
	}

	seen := make(map[string]struct{}, len(candidates))

	for _, server := range candidates {
		addr := server.Addr()
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		outcome, err := c.attempt(ctx, req, server, state, timeout)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				c.metrics.observeTimeout(addr)
				c.logger.Warn("candidate timed out",
					slog.String("user", req.Username),
					slog.String("server", addr),
					slog.Duration("timeout", timeout),
					slog.Bool("resuming", resuming),
				)
				continue
			}
			c.logger.Error("exchange failed",
				slog.String("user", req.Username),
				slog.String("server", addr),
				slog.Any("error", err),
			)
			c.metrics.observeResult(OutcomeReject, ReasonInternalError)
			return rejectOutcome(ReasonInternalError)
		}

		c.logger.Debug("authentication outcome",
			slog.String("user", req.Username),
			slog.String("server", addr),
			slog.String("outcome", outcome.Code.String()),
		)
		c.metrics.observeResult(outcome.Code, outcome.Reason)
		return outcome
	}

	c.logger.Warn("all candidates exhausted",
		slog.String("user", req.Username),
		slog.Int("candidates", len(candidates)),
	)
	c.metrics.observeResult(OutcomeReject, ReasonBackendUnreachable)
	return rejectOutcome(ReasonBackendUnreachable)
}

// attempt performs one request/response round trip against one candidate
// and classifies the decoded reply. It returns ErrTimeout when the server
// did not answer in time; any other error is terminal for the attempt.
func (c *Client) attempt(ctx context.Context, req *AuthRequest, server ServerCandidate, state []byte, timeout time.Duration) (*Outcome, error) {
	packet := radius.New(radius.CodeAccessRequest, server.Secret)
	packet.Identifier = c.ids.Next()

	if err := rfc2865.UserName_SetString(packet, req.Username); err != nil {
		return nil, fmt.Errorf("set User-Name: %w", err)
	}
	if err := rfc2865.UserPassword_SetString(packet, req.Password); err != nil {
		return nil, fmt.Errorf("set User-Password: %w", err)
	}
	if nasID := c.requestNASIdentifier(req); nasID != "" {
		if err := rfc2865.NASIdentifier_SetString(packet, nasID); err != nil {
			return nil, fmt.Errorf("set NAS-Identifier: %w", err)
		}
	}
	if nasIP := c.requestNASIPAddress(req); nasIP != nil {
		if err := rfc2865.NASIPAddress_Set(packet, nasIP); err != nil {
			return nil, fmt.Errorf("set NAS-IP-Address: %w", err)
		}
	}
	if len(state) > 0 {
		if err := rfc2865.State_Set(packet, state); err != nil {
			return nil, fmt.Errorf("set State: %w", err)
		}
	}

	wire, err := packet.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	started := time.Now()
	resp, err := c.exchange(ctx, server, wire, packet.Identifier, timeout)
	c.metrics.observeExchange(server.Addr(), time.Since(started))
	if err != nil {
		return nil, err
	}

	switch resp.Code {
	case radius.CodeAccessAccept:
		return &Outcome{
			Code:         OutcomeAccept,
			Packet:       resp,
			ReplyMessage: rfc2865.ReplyMessage_GetString(resp),
		}, nil

	case radius.CodeAccessReject:
		return &Outcome{
			Code:         OutcomeReject,
			Reason:       ReasonProtocol,
			Packet:       resp,
			ReplyMessage: rfc2865.ReplyMessage_GetString(resp),
		}, nil

	case radius.CodeAccessChallenge:
		cont := Continuation{
			Server: server,
			State:  rfc2865.State_Get(resp),
		}
		blob, err := cont.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode continuation: %w", err)
		}
		return &Outcome{
			Code:         OutcomeChallenge,
			Packet:       resp,
			ReplyMessage: rfc2865.ReplyMessage_GetString(resp),
			Continuation: blob,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedCode, resp.Code)
	}
}

// requestNASIdentifier resolves the NAS-Identifier for one request.
func (c *Client) requestNASIdentifier(req *AuthRequest) string {
	if req.NASIdentifier != "" {
		return req.NASIdentifier
	}
	return c.nasIdentifier
}

// requestNASIPAddress resolves the NAS-IP-Address for one request.
func (c *Client) requestNASIPAddress(req *AuthRequest) net.IP {
	if req.NASIPAddress != nil {
		return req.NASIPAddress
	}
	return c.nasIP
}
