package payflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewise/payflow/client"
	"github.com/tradewise/payflow/retry"
	"github.com/tradewise/payflow/server"
	"github.com/tradewise/payflow/types"
	"github.com/tradewise/payflow/utils"
	"github.com/tradewise/payflow/wallet"
)

const (
	testKey       = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testRecipient = "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6"
	testTxHash    = "0x3d4fc7a8e2b19c05d6e8f1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2"
)

type fakeSigner struct {
	address string
	chainID uint64
}

func (s *fakeSigner) Address() string { return s.address }
func (s *fakeSigner) ChainID() uint64 { return s.chainID }

func (s *fakeSigner) SignPayment(ctx context.Context, req *types.PaymentRequirement) (string, error) {
	return "signed-authorization", nil
}

type fakeConfirmer struct {
	steps   []uint64
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeConfirmer) Wait(ctx context.Context, txHash string, required uint64, onProgress func(uint64)) error {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return types.NewPaymentError(types.ErrTimeout,
				"confirmation wait was cancelled", ctx.Err().Error())
		}
	}
	for _, n := range f.steps {
		if onProgress != nil {
			onProgress(n)
		}
	}
	return f.err
}

// paidServer answers unpaid requests with a 402 challenge and paid requests
// with premium content plus an optional settlement receipt header.
func paidServer(t *testing.T, withReceipt bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(types.HeaderPayment) == "" {
			w.Header().Set(types.HeaderPaymentRequired, "true")
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(types.PaymentRequiredResponse{
				PaymentRequirements: []types.PaymentRequirement{{
					Scheme:      types.SchemeEIP712,
					Network:     types.NetworkBase,
					Token:       types.USDCAddressBase,
					Amount:      "0.01",
					Recipient:   testRecipient,
					Facilitator: "https://facilitator.x402.org",
				}},
			})
			return
		}
		if withReceipt {
			encoded, err := utils.EncodeReceipt(&types.PaymentReceipt{
				Success:         true,
				TransactionHash: testTxHash,
				BlockNumber:     18_500_000,
				Network:         "base",
				Token:           types.USDCAddressBase,
				Amount:          "0.01",
			})
			require.NoError(t, err)
			w.Header().Set(types.HeaderPaymentResponse, encoded)
		}
		w.Write([]byte("premium content"))
	}))
}

func newTestFlow(confirmer Confirmer, opts ...Option) *Flow {
	c := client.New(&fakeSigner{address: testAddress, chainID: types.ChainIDBase})
	return New(c, confirmer, opts...)
}

func TestMakePaymentFullLifecycle(t *testing.T) {
	srv := paidServer(t, true)
	defer srv.Close()

	var receipts []types.PaymentReceipt
	f := newTestFlow(
		&fakeConfirmer{steps: []uint64{0, 1, 2}},
		WithConfirmations(2),
		WithSuccessHook(func(r types.PaymentReceipt) { receipts = append(receipts, r) }),
	)

	var phases []types.Phase
	unsubscribe := f.Subscribe(func(s types.PaymentState) {
		phases = append(phases, s.Phase)
	})
	defer unsubscribe()

	body, err := f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "premium content", string(body))

	state := f.State()
	assert.Equal(t, types.PhaseSucceeded, state.Phase)
	assert.Equal(t, testTxHash, state.TransactionHash)
	assert.Equal(t, 2, state.Confirmations)
	require.NotNil(t, state.Receipt)
	assert.Nil(t, state.Error)

	require.Len(t, receipts, 1)
	assert.Equal(t, testTxHash, receipts[0].TransactionHash)

	// One pass through every stage, terminal exactly once, at the end.
	assert.Equal(t, types.PhaseRequesting, phases[0])
	assert.Contains(t, phases, types.PhaseAwaitingSignature)
	assert.Contains(t, phases, types.PhaseSubmitted)
	assert.Contains(t, phases, types.PhaseConfirming)
	for i, p := range phases {
		if p.Terminal() {
			assert.Equal(t, len(phases)-1, i)
			assert.Equal(t, types.PhaseSucceeded, p)
		}
	}
}

func TestMakePaymentWithoutReceiptHeader(t *testing.T) {
	srv := paidServer(t, false)
	defer srv.Close()

	f := newTestFlow(&fakeConfirmer{})

	body, err := f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "premium content", string(body))

	state := f.State()
	assert.Equal(t, types.PhaseSucceeded, state.Phase)
	assert.Empty(t, state.TransactionHash)
	assert.Nil(t, state.Receipt)
}

func TestMakePaymentFailureIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFlow(&fakeConfirmer{})

	_, err := f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
	require.Error(t, err)

	var perr *types.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrUnknown, perr.Kind)

	state := f.State()
	assert.Equal(t, types.PhaseFailed, state.Phase)
	require.NotNil(t, state.Error)
	assert.Equal(t, perr.Kind, state.Error.Kind)
}

func TestMakePaymentConfirmationFailure(t *testing.T) {
	srv := paidServer(t, true)
	defer srv.Close()

	f := newTestFlow(&fakeConfirmer{
		err: types.NewPaymentError(types.ErrTransactionFailed, "", testTxHash),
	})

	_, err := f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
	require.Error(t, err)

	var perr *types.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrTransactionFailed, perr.Kind)
	assert.Equal(t, types.PhaseFailed, f.State().Phase)
}

func TestMakePaymentRejectsConcurrentAttempt(t *testing.T) {
	srv := paidServer(t, true)
	defer srv.Close()

	confirmer := &fakeConfirmer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newTestFlow(confirmer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
		assert.NoError(t, err)
	}()

	<-confirmer.started
	_, err := f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, f.State().Phase.InFlight())

	close(confirmer.release)
	wg.Wait()
	assert.Equal(t, types.PhaseSucceeded, f.State().Phase)
}

func TestResetReturnsToIdle(t *testing.T) {
	srv := paidServer(t, true)
	defer srv.Close()

	f := newTestFlow(&fakeConfirmer{})
	_, err := f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, types.PhaseSucceeded, f.State().Phase)

	f.Reset()
	assert.Equal(t, types.PaymentState{Phase: types.PhaseIdle}, f.State())

	// The flow is reusable after a reset.
	_, err = f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, types.PhaseSucceeded, f.State().Phase)
}

func TestResetAbandonsInFlightAttempt(t *testing.T) {
	srv := paidServer(t, true)
	defer srv.Close()

	confirmer := &fakeConfirmer{started: make(chan struct{}), release: make(chan struct{})}
	f := newTestFlow(confirmer)

	done := make(chan error, 1)
	go func() {
		_, err := f.MakePayment(context.Background(), client.RequestSpec{URL: srv.URL})
		done <- err
	}()

	<-confirmer.started
	f.Reset()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("payment did not abort after reset")
	}
	assert.Equal(t, types.PhaseIdle, f.State().Phase)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	f := newTestFlow(&fakeConfirmer{})

	calls := 0
	unsubscribe := f.Subscribe(func(types.PaymentState) { calls++ })
	f.Reset()
	assert.Equal(t, 1, calls)

	unsubscribe()
	f.Reset()
	assert.Equal(t, 1, calls)
}

// TestEndToEndPaidRequest exercises the real stack: a local key signs an
// EIP-3009 authorization, the resource server verifies it and settles
// locally, and the flow confirms the resulting receipt.
func TestEndToEndPaidRequest(t *testing.T) {
	e := server.New(server.Config{
		Network:        types.NetworkBase,
		Recipient:      testRecipient,
		FacilitatorURL: "https://facilitator.x402.org",
	}, nil, nil, nil)
	srv := httptest.NewServer(e)
	defer srv.Close()

	signer, err := wallet.NewLocalSigner(testKey, types.ChainIDBase)
	require.NoError(t, err)

	c := client.New(signer, client.WithMaxPayment("0.50"))
	f := New(c, &fakeConfirmer{steps: []uint64{1}},
		WithRetry(retry.Config{MaxAttempts: 1}))

	body, err := f.MakePayment(context.Background(), client.RequestSpec{
		URL: srv.URL + "/api/premium-analysis?symbol=ETH",
	})
	require.NoError(t, err)

	var analysis map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &analysis))
	assert.Equal(t, "ETH", analysis["symbol"])
	assert.Equal(t, true, analysis["paymentVerified"])

	state := f.State()
	assert.Equal(t, types.PhaseSucceeded, state.Phase)
	require.NotNil(t, state.Receipt)
	assert.True(t, utils.IsTxHash(state.Receipt.TransactionHash))
}
