package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewise/payflow/types"
)

type fakeSigner struct {
	address string
	chainID uint64
	signed  []types.PaymentRequirement
	err     error
}

func (s *fakeSigner) Address() string { return s.address }
func (s *fakeSigner) ChainID() uint64 { return s.chainID }

func (s *fakeSigner) SignPayment(ctx context.Context, req *types.PaymentRequirement) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.signed = append(s.signed, *req)
	return "signed-authorization", nil
}

func baseSigner() *fakeSigner {
	return &fakeSigner{
		address: "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
		chainID: types.ChainIDBase,
	}
}

func requirement(amount string) types.PaymentRequirement {
	return types.PaymentRequirement{
		Scheme:      types.SchemeEIP712,
		Network:     types.NetworkBase,
		Token:       types.USDCAddressBase,
		Amount:      amount,
		Recipient:   "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
		Facilitator: "https://facilitator.x402.org",
	}
}

func challenge(w http.ResponseWriter, reqs ...types.PaymentRequirement) {
	w.Header().Set(types.HeaderPaymentRequired, "true")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(types.PaymentRequiredResponse{PaymentRequirements: reqs})
}

func TestDoPassesThroughWithoutChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(types.HeaderPayment))
		w.Write([]byte("free content"))
	}))
	defer srv.Close()

	signer := baseSigner()
	c := New(signer)

	resp, err := c.Do(context.Background(), RequestSpec{URL: srv.URL})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, signer.signed)
}

func TestDoSatisfies402Challenge(t *testing.T) {
	var sawAuthorization string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get(types.HeaderPayment); h != "" {
			sawAuthorization = h
			w.Write([]byte("paid content"))
			return
		}
		challenge(w, requirement("0.01"))
	}))
	defer srv.Close()

	signer := baseSigner()
	signing := 0
	c := New(signer)
	c.OnSigning(func() { signing++ })

	resp, err := c.Do(context.Background(), RequestSpec{URL: srv.URL})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "signed-authorization", sawAuthorization)
	assert.Equal(t, 1, signing)
	require.Len(t, signer.signed, 1)
	assert.Equal(t, "0.01", signer.signed[0].Amount)
}

func TestDoFailsFastWithoutWallet(t *testing.T) {
	c := New(nil)

	_, err := c.Do(context.Background(), RequestSpec{URL: "http://127.0.0.1:0"})
	require.Error(t, err)

	var perr *types.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrWalletNotConnected, perr.Kind)

	c = New(&fakeSigner{address: "", chainID: types.ChainIDBase})
	_, err = c.Do(context.Background(), RequestSpec{URL: "http://127.0.0.1:0"})
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrWalletNotConnected, perr.Kind)
}

func TestDoPersistent402IsInsufficientFunds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		challenge(w, requirement("0.01"))
	}))
	defer srv.Close()

	c := New(baseSigner())

	_, err := c.Do(context.Background(), RequestSpec{URL: srv.URL})
	require.Error(t, err)

	var perr *types.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrInsufficientFunds, perr.Kind)
}

func TestDoSignerErrorPassesThroughClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		challenge(w, requirement("0.01"))
	}))
	defer srv.Close()

	signer := baseSigner()
	signer.err = types.NewPaymentError(types.ErrUserRejected, "", nil)
	c := New(signer)

	_, err := c.Do(context.Background(), RequestSpec{URL: srv.URL})
	require.Error(t, err)

	var perr *types.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrUserRejected, perr.Kind)
}

func TestSelectRequirementPicksFirstEligible(t *testing.T) {
	c := New(baseSigner(), WithMaxPayment("0.50"))

	sepolia := requirement("0.01")
	sepolia.Network = types.NetworkBaseSepolia
	tooExpensive := requirement("5.00")
	first := requirement("0.10")
	second := requirement("0.05")

	selected, perr := c.selectRequirement([]types.PaymentRequirement{
		sepolia, tooExpensive, first, second,
	})
	require.Nil(t, perr)
	assert.Equal(t, "0.10", selected.Amount)

	// Same offers, same selection.
	again, perr := c.selectRequirement([]types.PaymentRequirement{
		sepolia, tooExpensive, first, second,
	})
	require.Nil(t, perr)
	assert.Equal(t, selected, again)
}

func TestSelectRequirementOverCeiling(t *testing.T) {
	c := New(baseSigner(), WithMaxPayment("0.05"))

	_, perr := c.selectRequirement([]types.PaymentRequirement{requirement("1.00")})
	require.NotNil(t, perr)
	assert.Equal(t, types.ErrInvalidAmount, perr.Kind)
}

func TestSelectRequirementWrongNetwork(t *testing.T) {
	signer := baseSigner()
	signer.chainID = types.ChainIDBaseSepolia
	c := New(signer)

	_, perr := c.selectRequirement([]types.PaymentRequirement{requirement("0.01")})
	require.NotNil(t, perr)
	assert.Equal(t, types.ErrNetworkError, perr.Kind)
}

func TestSelectRequirementUnsupportedChain(t *testing.T) {
	signer := baseSigner()
	signer.chainID = 1
	c := New(signer)

	_, perr := c.selectRequirement([]types.PaymentRequirement{requirement("0.01")})
	require.NotNil(t, perr)
	assert.Equal(t, types.ErrNetworkError, perr.Kind)
}

func TestDoMalformedChallengeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte("no requirements here"))
	}))
	defer srv.Close()

	c := New(baseSigner())

	_, err := c.Do(context.Background(), RequestSpec{URL: srv.URL})
	require.Error(t, err)

	var perr *types.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrUnknown, perr.Kind)
}

func TestReady(t *testing.T) {
	assert.True(t, New(baseSigner()).Ready())
	assert.False(t, New(nil).Ready())
	assert.False(t, New(&fakeSigner{}).Ready())
	assert.False(t, New(baseSigner(), WithMaxPayment("0")).Ready())
}
