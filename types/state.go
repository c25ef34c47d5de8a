package types

// Phase is the observable lifecycle stage of one payment attempt.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseRequesting        Phase = "requesting"
	PhaseAwaitingSignature Phase = "awaiting-signature"
	PhaseSubmitted         Phase = "submitted"
	PhaseConfirming        Phase = "confirming"
	PhaseSucceeded         Phase = "succeeded"
	PhaseFailed            Phase = "failed"
)

// Terminal reports whether the phase ends an attempt.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// InFlight reports whether an attempt is currently being driven.
func (p Phase) InFlight() bool {
	return p != PhaseIdle && !p.Terminal()
}

// PaymentState is a snapshot of one in-flight logical payment. Snapshots are
// value copies; mutation happens only inside the flow owning the attempt.
//
// Invariants: TransactionHash is set no earlier than PhaseSubmitted, and
// PhaseFailed implies a non-nil Error.
type PaymentState struct {
	Phase           Phase           `json:"phase"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Confirmations   int             `json:"confirmations"`
	Error           *PaymentError   `json:"error,omitempty"`
	Receipt         *PaymentReceipt `json:"receipt,omitempty"`
}
