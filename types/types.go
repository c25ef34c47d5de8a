// Package types defines the wire types, network metadata, payment state
// model, and error taxonomy shared by the payflow client, server, and
// orchestrator.
package types

// PaymentRequirement is one accepted payment option offered by a paywalled
// resource in its 402 response body. A resource may offer several; the
// client satisfies exactly one.
type PaymentRequirement struct {
	// Scheme of the signing protocol. Always "eip712" for USDC transfer
	// authorizations.
	Scheme string `json:"scheme" validate:"required,eq=eip712"`

	// Network the payment must settle on (e.g. "base").
	Network Network `json:"network" validate:"required"`

	// Token is the address of the stablecoin contract to pay with.
	Token string `json:"token" validate:"required"`

	// Amount to pay, as a decimal string in USDC (6 decimal places).
	Amount string `json:"amount" validate:"required"`

	// Recipient address the payment must be sent to.
	Recipient string `json:"recipient" validate:"required"`

	// Facilitator is the URL of the service that validates and relays
	// payment authorizations to the chain.
	Facilitator string `json:"facilitator" validate:"required,url"`

	// Description of the resource being purchased.
	Description string `json:"description"`

	// Metadata carries free-form information about the priced resource.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PaymentRequiredResponse is the JSON body of a 402 response.
type PaymentRequiredResponse struct {
	PaymentRequirements []PaymentRequirement `json:"paymentRequirements"`
}

// PaymentReceipt is the settlement receipt a resource server returns in the
// X-Payment-Response header (base64-encoded JSON) after a paid request.
type PaymentReceipt struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	Network         string `json:"network"`
	Token           string `json:"token"`
	Amount          string `json:"amount"`
	Timestamp       string `json:"timestamp"`
}

// Header names used by the 402 flow.
const (
	// HeaderPayment carries the signed payment authorization on a retried
	// request.
	HeaderPayment = "X-Payment"

	// HeaderPaymentRequired marks a 402 challenge response.
	HeaderPaymentRequired = "X-Payment-Required"

	// HeaderPaymentResponse carries the base64 settlement receipt on a
	// paid response.
	HeaderPaymentResponse = "X-Payment-Response"
)

// SchemeEIP712 is the only signing scheme currently supported.
const SchemeEIP712 = "eip712"
