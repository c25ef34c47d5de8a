package client

import (
	"context"

	"github.com/tradewise/payflow/types"
)

// Signer produces payment authorizations for requirements the client has
// accepted. Key custody belongs to the external wallet layer; a signer only
// reads the connected address and chain and signs on request.
type Signer interface {
	// Address returns the payer address, or "" when no wallet is connected.
	Address() string

	// ChainID returns the chain the wallet is connected to.
	ChainID() uint64

	// SignPayment produces the X-Payment header value satisfying one
	// requirement. Implementations may block on user interaction for an
	// unbounded time; a declined prompt must surface as a USER_REJECTED
	// PaymentError.
	SignPayment(ctx context.Context, req *types.PaymentRequirement) (string, error)
}
