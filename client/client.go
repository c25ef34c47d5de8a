// Package client implements the payment-aware HTTP client: it issues a
// request, reacts to a 402 by selecting one offered requirement and having
// the wallet sign it, and resubmits exactly once with the authorization
// attached. All failures leave this package as classified PaymentErrors.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradewise/payflow/logger"
	"github.com/tradewise/payflow/metrics"
	"github.com/tradewise/payflow/types"
	"github.com/tradewise/payflow/utils"
)

// DefaultMaxPayment is the payment ceiling applied when none is configured,
// in USDC.
const DefaultMaxPayment = "1.00"

// DefaultTimeout bounds each request round trip.
const DefaultTimeout = 30 * time.Second

// Client wraps an http.Client with the 402 payment interceptor.
type Client struct {
	http       *http.Client
	signer     Signer
	maxPayment decimal.Decimal
	log        logger.Logger
	metrics    metrics.Recorder
	onSigning  func()
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// WithMaxPayment sets the payment ceiling as a USDC decimal string. Values
// that do not parse leave the default in place.
func WithMaxPayment(amount string) Option {
	return func(c *Client) {
		if d, err := decimal.NewFromString(amount); err == nil {
			c.maxPayment = d
		}
	}
}

// New builds a payment-aware client around the given signer.
func New(signer Signer, opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: DefaultTimeout},
		signer:     signer,
		maxPayment: decimal.RequireFromString(DefaultMaxPayment),
		log:        logger.Noop{},
		metrics:    metrics.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSigning registers a hook invoked just before a signature is requested
// from the wallet.
func (c *Client) OnSigning(fn func()) {
	c.onSigning = fn
}

// Ready reports whether the client can attempt payments: a wallet is
// connected and the configured ceiling is a positive amount.
func (c *Client) Ready() bool {
	return c.signer != nil && c.signer.Address() != "" && c.maxPayment.IsPositive()
}

// RequestSpec describes one logical request. The body is held as bytes so
// the request can be replayed with the payment authorization attached.
type RequestSpec struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Do issues the request, satisfying at most one 402 challenge along the way.
// Non-402 responses pass through untouched; the caller owns the response
// body. Errors are always classified PaymentErrors.
func (c *Client) Do(ctx context.Context, spec RequestSpec) (*http.Response, error) {
	if c.signer == nil || c.signer.Address() == "" {
		return nil, types.NewPaymentError(types.ErrWalletNotConnected, "", nil)
	}
	if !c.maxPayment.IsPositive() {
		return nil, types.NewPaymentError(types.ErrInvalidAmount,
			"maximum payment amount is not a positive value", c.maxPayment.String())
	}

	resp, err := c.send(ctx, spec, "")
	if err != nil {
		return nil, Classify(err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, Classify(err)
	}

	required, perr := utils.ParsePaymentRequired(body)
	if perr != nil {
		return nil, Classify(perr)
	}

	selected, perr := c.selectRequirement(required.PaymentRequirements)
	if perr != nil {
		return nil, Classify(perr)
	}

	c.log.Debug("payment required", map[string]any{
		"url":     spec.URL,
		"amount":  selected.Amount,
		"network": selected.Network.String(),
	})

	if c.onSigning != nil {
		c.onSigning()
	}
	authorization, err := c.signer.SignPayment(ctx, selected)
	if err != nil {
		return nil, Classify(err)
	}

	resp, err = c.send(ctx, spec, authorization)
	if err != nil {
		return nil, Classify(err)
	}
	if resp.StatusCode == http.StatusPaymentRequired {
		resp.Body.Close()
		return nil, types.NewPaymentError(types.ErrInsufficientFunds,
			"payment was submitted but not accepted by the resource", nil)
	}

	c.metrics.IncCounter("payment_submitted", map[string]string{
		"network": selected.Network.String(),
	})
	return resp, nil
}

func (c *Client) send(ctx context.Context, spec RequestSpec, authorization string) (*http.Response, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, spec.URL, body)
	if err != nil {
		return nil, err
	}
	for key, values := range spec.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if authorization != "" {
		req.Header.Set(types.HeaderPayment, authorization)
	}
	return c.http.Do(req)
}

// selectRequirement keeps offers that settle on the connected network and
// fit under the payment ceiling, then deterministically picks the first
// survivor in offer order.
func (c *Client) selectRequirement(offers []types.PaymentRequirement) (*types.PaymentRequirement, *types.PaymentError) {
	network, ok := types.NetworkFromChainID(c.signer.ChainID())
	if !ok {
		return nil, types.NewPaymentError(types.ErrNetworkError,
			"connected chain is not supported for payments", c.signer.ChainID())
	}

	networkMatched := false
	for i := range offers {
		offer := &offers[i]
		if offer.Network != network {
			continue
		}
		networkMatched = true

		amount, err := decimal.NewFromString(offer.Amount)
		if err != nil || !amount.IsPositive() {
			continue
		}
		if amount.GreaterThan(c.maxPayment) {
			continue
		}
		return offer, nil
	}

	if networkMatched {
		return nil, types.NewPaymentError(types.ErrInvalidAmount,
			"offered payment amount exceeds the configured ceiling", c.maxPayment.String())
	}
	return nil, types.NewPaymentError(types.ErrNetworkError,
		"no payment requirement matches the connected network", network.String())
}
