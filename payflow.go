// Package payflow drives paid HTTP requests end to end: request, 402
// challenge, wallet signature, settlement, and on-chain confirmation, with
// every stage observable as a PaymentState snapshot.
package payflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tradewise/payflow/client"
	"github.com/tradewise/payflow/logger"
	"github.com/tradewise/payflow/metrics"
	"github.com/tradewise/payflow/retry"
	"github.com/tradewise/payflow/types"
	"github.com/tradewise/payflow/utils"
)

// Confirmer waits until a transaction reaches the required confirmation
// depth, reporting progress on the way. confirm.Monitor is the production
// implementation.
type Confirmer interface {
	Wait(ctx context.Context, txHash string, required uint64, onProgress func(confirmations uint64)) error
}

// Flow owns one logical payment at a time. All exported methods are safe for
// concurrent use; state snapshots are value copies.
type Flow struct {
	client        *client.Client
	confirmer     Confirmer
	retry         retry.Config
	confirmations uint64
	log           logger.Logger
	metrics       metrics.Recorder
	onSuccess     func(types.PaymentReceipt)

	mu        sync.Mutex
	state     types.PaymentState
	gen       uint64
	cancel    context.CancelFunc
	observers map[int]func(types.PaymentState)
	nextObs   int
}

// New builds a flow around a payment-aware client and a confirmer.
func New(c *client.Client, confirmer Confirmer, opts ...Option) *Flow {
	f := &Flow{
		client:        c,
		confirmer:     confirmer,
		retry:         retry.DefaultConfig(),
		confirmations: 1,
		log:           logger.Noop{},
		metrics:       metrics.Noop{},
		state:         types.PaymentState{Phase: types.PhaseIdle},
		observers:     make(map[int]func(types.PaymentState)),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.retry.RetryIf == nil {
		f.retry.RetryIf = retryable
	}
	return f
}

// State returns a snapshot of the current payment state.
func (f *Flow) State() types.PaymentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers an observer called with a state snapshot after every
// transition. Observers must not block. The returned function removes the
// observer.
func (f *Flow) Subscribe(fn func(types.PaymentState)) func() {
	f.mu.Lock()
	id := f.nextObs
	f.nextObs++
	f.observers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.observers, id)
		f.mu.Unlock()
	}
}

// Reset abandons any in-flight attempt and returns the flow to idle. A
// payment already submitted on chain is not recalled; its outcome is simply
// no longer tracked.
func (f *Flow) Reset() {
	f.mu.Lock()
	f.gen++
	cancel := f.cancel
	f.cancel = nil
	f.state = types.PaymentState{Phase: types.PhaseIdle}
	observers, state := f.snapshotLocked()
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, fn := range observers {
		fn(state)
	}
}

// MakePayment runs the full payment lifecycle for one request and returns
// the paid resource body. Only one payment may be in flight per flow;
// concurrent calls fail without disturbing the active attempt. The error, if
// any, is always a classified PaymentError.
func (f *Flow) MakePayment(ctx context.Context, spec client.RequestSpec) ([]byte, error) {
	f.mu.Lock()
	if f.state.Phase.InFlight() {
		phase := f.state.Phase
		f.mu.Unlock()
		return nil, types.NewPaymentError(types.ErrUnknown,
			"a payment is already in progress", string(phase))
	}
	gen := f.gen
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.state = types.PaymentState{Phase: types.PhaseRequesting}
	observers, state := f.snapshotLocked()
	f.mu.Unlock()
	defer cancel()

	for _, fn := range observers {
		fn(state)
	}

	f.client.OnSigning(func() {
		f.advance(gen, func(s *types.PaymentState) {
			s.Phase = types.PhaseAwaitingSignature
		})
	})

	res, err := retry.Do(ctx, f.retry, func(ctx context.Context) (outcome, error) {
		return f.request(ctx, spec)
	})
	if err != nil {
		return nil, f.fail(gen, err)
	}

	if res.receipt != nil && res.receipt.TransactionHash != "" {
		hash := res.receipt.TransactionHash
		f.advance(gen, func(s *types.PaymentState) {
			s.Phase = types.PhaseSubmitted
			s.TransactionHash = hash
		})
		f.advance(gen, func(s *types.PaymentState) {
			s.Phase = types.PhaseConfirming
		})

		err := f.confirmer.Wait(ctx, hash, f.confirmations, func(confirmations uint64) {
			f.advance(gen, func(s *types.PaymentState) {
				s.Confirmations = int(confirmations)
			})
		})
		if err != nil {
			return nil, f.fail(gen, err)
		}
	}

	receipt := res.receipt
	if !f.advance(gen, func(s *types.PaymentState) {
		s.Phase = types.PhaseSucceeded
		s.Receipt = receipt
	}) {
		return nil, types.NewPaymentError(types.ErrTimeout,
			"payment flow was reset while the attempt was in flight", nil)
	}

	f.metrics.IncCounter("payment_succeeded", nil)
	f.log.Info("payment succeeded", map[string]any{
		"url": spec.URL,
	})
	if f.onSuccess != nil && receipt != nil {
		f.onSuccess(*receipt)
	}
	return res.body, nil
}

type outcome struct {
	body    []byte
	receipt *types.PaymentReceipt
}

// request performs one paid round trip and decodes the settlement receipt.
func (f *Flow) request(ctx context.Context, spec client.RequestSpec) (outcome, error) {
	resp, err := f.client.Do(ctx, spec)
	if err != nil {
		return outcome{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcome{}, err
	}
	if resp.StatusCode >= 400 {
		return outcome{}, types.NewPaymentError(types.ErrUnknown,
			fmt.Sprintf("resource returned status %d", resp.StatusCode),
			strings.TrimSpace(string(body)))
	}

	header := resp.Header.Get(types.HeaderPaymentResponse)
	if header == "" {
		// Some paid endpoints omit the receipt header. A 2xx after payment
		// still means the resource was delivered.
		f.log.Warn("settlement receipt header missing", map[string]any{
			"url": spec.URL,
		})
		return outcome{body: body}, nil
	}

	receipt, err := utils.DecodeReceipt(header)
	if err != nil {
		f.log.Warn("settlement receipt header is malformed", map[string]any{
			"url":   spec.URL,
			"error": err.Error(),
		})
		return outcome{body: body}, nil
	}
	if !receipt.Success {
		return outcome{}, types.NewPaymentError(types.ErrTransactionFailed,
			"payment settlement did not succeed", receipt.TransactionHash)
	}
	return outcome{body: body, receipt: receipt}, nil
}

// fail records a terminal failure for the attempt and returns the
// classified error.
func (f *Flow) fail(gen uint64, err error) *types.PaymentError {
	perr := client.Classify(err)
	f.advance(gen, func(s *types.PaymentState) {
		s.Phase = types.PhaseFailed
		s.Error = perr
	})
	f.metrics.IncCounter("payment_failed", map[string]string{
		"kind": string(perr.Kind),
	})
	f.log.Error("payment failed", map[string]any{
		"kind":    string(perr.Kind),
		"message": perr.Message,
	})
	return perr
}

// advance applies a state mutation if the attempt generation is still
// current, then notifies observers. It reports false when the flow was reset
// underneath the attempt.
func (f *Flow) advance(gen uint64, mutate func(*types.PaymentState)) bool {
	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return false
	}
	mutate(&f.state)
	observers, state := f.snapshotLocked()
	f.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
	return true
}

func (f *Flow) snapshotLocked() ([]func(types.PaymentState), types.PaymentState) {
	observers := make([]func(types.PaymentState), 0, len(f.observers))
	for _, fn := range f.observers {
		observers = append(observers, fn)
	}
	return observers, f.state
}

// retryable allows another attempt only for transient failures. Anything
// already terminal, a rejected signature for instance, is surfaced
// immediately.
func retryable(err error) bool {
	var perr *types.PaymentError
	if errors.As(err, &perr) {
		return perr.Transient()
	}
	return false
}
