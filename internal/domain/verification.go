package domain

import "time"

// Verdict statuses. Anything else coming back from a backend is normalised to rejected.
const (
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Rejection reasons produced locally rather than by a backend.
const (
	ReasonVerifierUnreachable = "verifier_unreachable"
	ReasonBadResponse         = "bad_response"
	ReasonManual              = "Manual rejection"
)

// Verdict is the normalised result of a verification backend call.
type Verdict struct {
	Status         string  `json:"status"`
	ReferenceID    string  `json:"reference_id,omitempty"`
	ApprovedAmount float64 `json:"approved_amount,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	Message        string  `json:"message,omitempty"`
}

func (v Verdict) Approved() bool { return v.Status == StatusApproved }

// Rejected builds a rejected verdict whose message mirrors the reason.
func Rejected(reason string) Verdict {
	return Verdict{Status: StatusRejected, Reason: reason, Message: reason}
}

// NormalizeVerdict coerces a raw backend verdict into approved|rejected.
// Unknown statuses become bad_response; a missing reason falls back to the message.
func NormalizeVerdict(v Verdict) Verdict {
	switch v.Status {
	case StatusApproved:
		return Verdict{Status: StatusApproved, ReferenceID: v.ReferenceID, ApprovedAmount: v.ApprovedAmount}
	case StatusRejected:
		if v.Reason == "" {
			v.Reason = v.Message
		}
		if v.Message == "" {
			v.Message = v.Reason
		}
		return Verdict{Status: StatusRejected, Reason: v.Reason, Message: v.Message}
	default:
		return Rejected(ReasonBadResponse)
	}
}

// SessionPhase is the server-visible state of a verification session.
// PENDING_UPLOAD only exists in the browser.
type SessionPhase string

const (
	PhaseNone      SessionPhase = "NONE"
	PhaseVerifying SessionPhase = "VERIFYING"
	PhaseApproved  SessionPhase = "APPROVED"
	PhaseRejected  SessionPhase = "REJECTED"
)

// VerificationSession is the state stored per session token.
// The durable copy only ever holds approvals.
type VerificationSession struct {
	Phase          SessionPhase `json:"phase"`
	Approved       bool         `json:"approved"`
	AttachmentRef  string       `json:"attachment_ref,omitempty"`
	ApprovedAmount float64      `json:"approved_amount,omitempty"`
	ReferenceID    string       `json:"reference_id,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
