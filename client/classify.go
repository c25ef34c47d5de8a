package client

import (
	"context"
	"errors"
	"net"

	"github.com/tradewise/payflow/types"
)

// Classify maps any transport or signing failure into the closed
// PaymentError taxonomy at the system boundary. Already-classified errors
// pass through unchanged.
func Classify(err error) *types.PaymentError {
	if err == nil {
		return nil
	}

	var perr *types.PaymentError
	if errors.As(err, &perr) {
		return perr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewPaymentError(types.ErrTimeout, "request timed out", err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return types.NewPaymentError(types.ErrTimeout, "request was cancelled", err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return types.NewPaymentError(types.ErrTimeout, "request timed out", err.Error())
		}
		return types.NewPaymentError(types.ErrNetworkError, "", err.Error())
	}

	return types.NewPaymentError(types.ErrUnknown, err.Error(), nil)
}
