// Package confirm tracks a submitted transaction until it reaches a required
// confirmation depth, reporting progress along the way.
package confirm

import (
	"context"
	"errors"
	"time"

	"github.com/tradewise/payflow/logger"
	"github.com/tradewise/payflow/metrics"
	"github.com/tradewise/payflow/types"
)

// DefaultInterval is how often the chain is polled for confirmation depth.
const DefaultInterval = 2 * time.Second

// DefaultMaxFailures bounds consecutive failed polls before the wait is
// abandoned as timed out. At the default interval this allows roughly one
// minute of unreachable chain.
const DefaultMaxFailures = 30

// Receipt is the minimal view of a mined transaction the monitor needs.
type Receipt struct {
	BlockNumber uint64
	Failed      bool
}

// ChainReader supplies chain head and transaction lookups. A nil receipt
// with a nil error means the transaction is not yet mined.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// Monitor polls a ChainReader until a transaction is sufficiently buried.
type Monitor struct {
	reader      ChainReader
	interval    time.Duration
	maxFailures int
	log         logger.Logger
	metrics     metrics.Recorder
}

type Option func(*Monitor)

// WithInterval overrides the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMaxFailures overrides how many consecutive failed polls are tolerated.
func WithMaxFailures(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxFailures = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Monitor) {
		m.metrics = r
	}
}

func New(reader ChainReader, opts ...Option) *Monitor {
	m := &Monitor{
		reader:      reader,
		interval:    DefaultInterval,
		maxFailures: DefaultMaxFailures,
		log:         logger.Noop{},
		metrics:     metrics.Noop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wait blocks until txHash has at least required confirmations, the context
// ends, or too many consecutive polls fail. onProgress, when non-nil, is
// called with the current confirmation count each poll; the count never
// exceeds required and never decreases across successful polls of a stable
// chain. A transaction that mined but reverted fails with
// TRANSACTION_FAILED; context expiry and an unreachable chain fail with
// TIMEOUT.
func (m *Monitor) Wait(ctx context.Context, txHash string, required uint64, onProgress func(confirmations uint64)) error {
	if required == 0 {
		required = 1
	}

	start := time.Now()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	failures := 0
	for {
		confirmations, done, err := m.poll(ctx, txHash, required)
		if err != nil {
			var perr *types.PaymentError
			if errors.As(err, &perr) && !perr.Transient() {
				return perr
			}
			failures++
			m.log.Warn("confirmation poll failed", map[string]any{
				"txHash":   txHash,
				"failures": failures,
				"error":    err.Error(),
			})
			if failures >= m.maxFailures {
				return types.NewPaymentError(types.ErrTimeout,
					"gave up waiting for transaction confirmation", txHash)
			}
		} else {
			failures = 0
			if onProgress != nil {
				onProgress(confirmations)
			}
			if done {
				m.metrics.ObserveLatency("confirmation_wait", time.Since(start), nil)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return types.NewPaymentError(types.ErrTimeout,
				"confirmation wait was cancelled", ctx.Err().Error())
		case <-ticker.C:
		}
	}
}

// poll reads the chain once and reports the clamped confirmation count.
func (m *Monitor) poll(ctx context.Context, txHash string, required uint64) (uint64, bool, error) {
	receipt, err := m.reader.TransactionReceipt(ctx, txHash)
	if err != nil {
		return 0, false, err
	}
	if receipt == nil {
		// Not mined yet. Zero confirmations is progress, not failure.
		return 0, false, nil
	}
	if receipt.Failed {
		return 0, false, types.NewPaymentError(types.ErrTransactionFailed,
			"transaction was mined but reverted", txHash)
	}

	head, err := m.reader.BlockNumber(ctx)
	if err != nil {
		return 0, false, err
	}
	if head < receipt.BlockNumber {
		// A lagging or reorged node. Report no depth rather than underflow.
		return 0, false, nil
	}

	confirmations := head - receipt.BlockNumber
	if confirmations > required {
		confirmations = required
	}
	return confirmations, confirmations >= required, nil
}
