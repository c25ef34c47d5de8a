package types

// ErrorKind is the closed set of payment failure classifications. Every
// failure surfaced by the payment flow carries exactly one of these; raw
// transport and chain-client errors never cross the boundary unclassified.
type ErrorKind string

const (
	ErrInsufficientFunds  ErrorKind = "INSUFFICIENT_FUNDS"
	ErrNetworkError       ErrorKind = "NETWORK_ERROR"
	ErrTransactionFailed  ErrorKind = "TRANSACTION_FAILED"
	ErrWalletNotConnected ErrorKind = "WALLET_NOT_CONNECTED"
	ErrInvalidAmount      ErrorKind = "INVALID_AMOUNT"
	ErrTimeout            ErrorKind = "TIMEOUT"
	ErrUserRejected       ErrorKind = "USER_REJECTED"
	ErrUnknown            ErrorKind = "UNKNOWN"
)

// PaymentError is an immutable classified payment failure.
type PaymentError struct {
	Kind    ErrorKind   `json:"kind"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// userMessages maps each kind to the sentence shown to end users.
var userMessages = map[ErrorKind]string{
	ErrInsufficientFunds:  "Insufficient USDC balance to complete payment",
	ErrNetworkError:       "Network error occurred. Please check your connection and try again",
	ErrTransactionFailed:  "Transaction failed. Please try again",
	ErrWalletNotConnected: "Please connect your wallet to continue",
	ErrInvalidAmount:      "Invalid payment amount",
	ErrTimeout:            "Transaction timed out. Please try again",
	ErrUserRejected:       "Transaction was rejected by user",
	ErrUnknown:            "An unexpected error occurred",
}

// NewPaymentError constructs a classified payment error. An empty message is
// filled from the kind's user-facing sentence so Message is never empty.
func NewPaymentError(kind ErrorKind, message string, details interface{}) *PaymentError {
	if _, ok := userMessages[kind]; !ok {
		kind = ErrUnknown
	}
	if message == "" {
		message = userMessages[kind]
	}
	return &PaymentError{Kind: kind, Message: message, Details: details}
}

func (e *PaymentError) Error() string {
	return e.Message
}

// UserMessage returns the fixed human-readable sentence for the error kind.
// Unknown errors fall back to their own message.
func (e *PaymentError) UserMessage() string {
	if e.Kind == ErrUnknown && e.Message != "" {
		return e.Message
	}
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return userMessages[ErrUnknown]
}

// Transient reports whether the failure may clear on its own and is worth
// retrying. Precondition failures and terminal business outcomes are not.
func (e *PaymentError) Transient() bool {
	return e.Kind == ErrNetworkError || e.Kind == ErrTimeout
}
