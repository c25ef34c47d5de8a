package payflow

import (
	"github.com/tradewise/payflow/logger"
	"github.com/tradewise/payflow/metrics"
	"github.com/tradewise/payflow/retry"
	"github.com/tradewise/payflow/types"
)

type Option func(*Flow)

// WithConfirmations sets how deep a payment transaction must be buried
// before the flow reports success.
func WithConfirmations(n uint64) Option {
	return func(f *Flow) {
		if n > 0 {
			f.confirmations = n
		}
	}
}

// WithRetry replaces the request retry budget. A nil RetryIf keeps the
// default transient-only policy.
func WithRetry(cfg retry.Config) Option {
	return func(f *Flow) {
		f.retry = cfg
	}
}

func WithLogger(l logger.Logger) Option {
	return func(f *Flow) {
		f.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(f *Flow) {
		f.metrics = r
	}
}

// WithSuccessHook registers a callback invoked once per successful payment
// with the settlement receipt. It runs on the payment goroutine and must not
// block.
func WithSuccessHook(fn func(types.PaymentReceipt)) Option {
	return func(f *Flow) {
		f.onSuccess = fn
	}
}
