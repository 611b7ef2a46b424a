package audit

import "time"

// Event records the outcome of one attestation claim. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Kind      string    `json:"kind,omitempty"`
	Wallet    string    `json:"wallet"`
	Token     string    `json:"token"`
	Spender   string    `json:"spender"`
	FID       uint64    `json:"fid,omitempty"`
	Nonce     string    `json:"nonce,omitempty"`
	Reasons   []string  `json:"reasons,omitempty"`
}

type Outcome string

const (
	OutcomeIssued   Outcome = "issued"
	OutcomeRejected Outcome = "rejected"
)
