package eradius

import (
	"layeh.com/radius"
)

// OutcomeCode classifies the terminal result of an authentication call.
type OutcomeCode uint8

const (
	// OutcomeAccept indicates the server granted access.
	OutcomeAccept OutcomeCode = iota

	// OutcomeReject indicates access was denied, either by the server or
	// because no server could be reached.
	OutcomeReject

	// OutcomeChallenge indicates the server requires another round of
	// input before it issues a verdict. The outcome carries a
	// continuation to pass into the follow-up call.
	OutcomeChallenge
)

// String returns a string representation of the outcome code.
func (c OutcomeCode) String() string {
	switch c {
	case OutcomeAccept:
		return "ACCEPT"
	case OutcomeReject:
		return "REJECT"
	case OutcomeChallenge:
		return "CHALLENGE"
	default:
		return "UNKNOWN"
	}
}

// RejectReason explains why an authentication call was rejected.
type RejectReason uint8

const (
	// ReasonNone is set on non-reject outcomes.
	ReasonNone RejectReason = iota

	// ReasonProtocol indicates the server answered with Access-Reject.
	ReasonProtocol

	// ReasonBackendUnreachable indicates every candidate server timed out.
	ReasonBackendUnreachable

	// ReasonInternalError indicates a malformed reply, a corrupt
	// continuation, or an unexpected internal fault. Internal errors are
	// terminal for the attempt and are never retried against the
	// remaining candidates.
	ReasonInternalError
)

// String returns a string representation of the reject reason.
func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonProtocol:
		return "PROTOCOL_REJECT"
	case ReasonBackendUnreachable:
		return "BACKEND_UNREACHABLE"
	case ReasonInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the terminal result of one authentication call. Callers always
// receive a well-formed Outcome from the protocol path; timeouts and
// per-candidate failures only surface as the eventual reject reason.
type Outcome struct {
	// Code is the outcome classification.
	Code OutcomeCode

	// Reason is set on reject outcomes only.
	Reason RejectReason

	// Packet is the decoded server reply. It is nil for synthetic rejects
	// (backend unreachable, internal error) that were never answered by a
	// server. Attributes can be extracted with the layeh.com/radius
	// rfc2865 helpers.
	Packet *radius.Packet

	// ReplyMessage is the server's Reply-Message text, if any. For
	// challenges this is the prompt to present to the user.
	ReplyMessage string

	// Continuation is the opaque state to pass into the next call when
	// Code is OutcomeChallenge. The caller must return it verbatim.
	Continuation []byte
}

// IsAccept returns true if access was granted.
func (o *Outcome) IsAccept() bool {
	return o.Code == OutcomeAccept
}

// IsReject returns true if access was denied.
func (o *Outcome) IsReject() bool {
	return o.Code == OutcomeReject
}

// IsChallenge returns true if the server requested another round.
func (o *Outcome) IsChallenge() bool {
	return o.Code == OutcomeChallenge
}

// rejectOutcome builds a synthetic reject with no server packet.
func rejectOutcome(reason RejectReason) *Outcome {
	return &Outcome{Code: OutcomeReject, Reason: reason}
}
