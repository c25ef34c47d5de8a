// Package server hosts the paywalled resource endpoints: an echo server
// whose premium routes answer unpaid requests with a 402 challenge and stamp
// paid responses with a settlement receipt.
package server

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradewise/payflow/logger"
	"github.com/tradewise/payflow/metrics"
	"github.com/tradewise/payflow/types"
	"github.com/tradewise/payflow/utils"
	"github.com/tradewise/payflow/wallet"
)

// Config carries the payment identity of the resource server.
type Config struct {
	// Network payments must settle on.
	Network types.Network

	// Recipient address paid amounts are sent to.
	Recipient string

	// FacilitatorURL advertised to clients in 402 challenges.
	FacilitatorURL string
}

// Paywall issues 402 challenges and admits requests carrying a valid payment
// authorization.
type Paywall struct {
	cfg         Config
	facilitator Facilitator
	log         logger.Logger
	metrics     metrics.Recorder
}

// NewPaywall builds the paywall. A nil facilitator switches to local
// verification with simulated settlement, which is what test deployments
// without a relayer use.
func NewPaywall(cfg Config, facilitator Facilitator, log logger.Logger, rec metrics.Recorder) *Paywall {
	if log == nil {
		log = logger.Noop{}
	}
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Paywall{cfg: cfg, facilitator: facilitator, log: log, metrics: rec}
}

// Requirement builds the single payment option this server offers for a
// priced resource.
func (p *Paywall) Requirement(amount, description string, metadata map[string]interface{}) types.PaymentRequirement {
	return types.PaymentRequirement{
		Scheme:      types.SchemeEIP712,
		Network:     p.cfg.Network,
		Token:       p.cfg.Network.USDCAddress(),
		Amount:      amount,
		Recipient:   p.cfg.Recipient,
		Facilitator: p.cfg.FacilitatorURL,
		Description: description,
		Metadata:    metadata,
	}
}

// RequirePayment gates a route behind a payment of the given amount. Unpaid
// requests get the 402 challenge; paid requests are verified, settled, and
// passed through with the receipt header set.
func (p *Paywall) RequirePayment(amount, description string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(types.HeaderPayment)
			req := p.Requirement(amount, description, map[string]interface{}{
				"service": strings.TrimPrefix(c.Path(), "/api/"),
			})

			if header == "" {
				p.metrics.IncCounter("challenge_issued", map[string]string{
					"network": p.cfg.Network.String(),
				})
				c.Response().Header().Set(types.HeaderPaymentRequired, "true")
				return c.JSON(http.StatusPaymentRequired, types.PaymentRequiredResponse{
					PaymentRequirements: []types.PaymentRequirement{req},
				})
			}

			payload, err := wallet.DecodePayload(header)
			if err != nil {
				p.log.Warn("rejected malformed payment header", map[string]any{
					"error": err.Error(),
				})
				c.Response().Header().Set(types.HeaderPaymentRequired, "true")
				return c.JSON(http.StatusPaymentRequired, types.PaymentRequiredResponse{
					PaymentRequirements: []types.PaymentRequirement{req},
				})
			}

			receipt, err := p.settle(c, payload, &req)
			if err != nil {
				p.log.Error("payment settlement failed", map[string]any{
					"error": err.Error(),
				})
				p.metrics.IncCounter("settlement_failed", nil)
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "payment settlement failed",
				})
			}

			encoded, err := utils.EncodeReceipt(receipt)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "failed to encode settlement receipt",
				})
			}
			c.Response().Header().Set(types.HeaderPaymentResponse, encoded)

			p.metrics.IncCounter("payment_settled", map[string]string{
				"network": p.cfg.Network.String(),
			})
			p.log.Info("payment settled", map[string]any{
				"txHash": receipt.TransactionHash,
				"amount": receipt.Amount,
				"payer":  payload.Authorization.From,
			})
			return next(c)
		}
	}
}

func (p *Paywall) settle(c echo.Context, payload *wallet.Payload, req *types.PaymentRequirement) (*types.PaymentReceipt, error) {
	ctx := c.Request().Context()

	if p.facilitator != nil {
		if err := p.facilitator.Verify(ctx, payload, req); err != nil {
			return nil, err
		}
		return p.facilitator.Settle(ctx, payload, req)
	}
	return p.settleLocal(payload, req)
}

// settleLocal verifies the authorization signature in process and fabricates
// a settlement receipt without touching the chain.
func (p *Paywall) settleLocal(payload *wallet.Payload, req *types.PaymentRequirement) (*types.PaymentReceipt, error) {
	if payload.Scheme != types.SchemeEIP712 {
		return nil, fmt.Errorf("unsupported payment scheme %q", payload.Scheme)
	}
	if payload.Network != req.Network.String() {
		return nil, fmt.Errorf("payment network %q does not match required %q", payload.Network, req.Network)
	}

	signer, err := wallet.RecoverSigner(payload.Authorization, payload.Signature, req.Network.ChainID(), req.Token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(signer, payload.Authorization.From) {
		return nil, fmt.Errorf("authorization signed by %s, not by payer %s", signer, payload.Authorization.From)
	}
	if !strings.EqualFold(payload.Authorization.To, req.Recipient) {
		return nil, fmt.Errorf("authorization pays %s, not recipient %s", payload.Authorization.To, req.Recipient)
	}

	required, err := utils.ParseSubunits(req.Amount)
	if err != nil {
		return nil, err
	}
	if payload.Authorization.Value != required.String() {
		return nil, fmt.Errorf("authorization value %s does not match required %s", payload.Authorization.Value, required)
	}

	return &types.PaymentReceipt{
		Success:         true,
		TransactionHash: mockTxHash(),
		BlockNumber:     mockBlockNumber(),
		Network:         req.Network.String(),
		Token:           req.Token,
		Amount:          req.Amount,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func mockTxHash() string {
	b := make([]byte, 32)
	rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

func mockBlockNumber() uint64 {
	b := make([]byte, 8)
	rand.Read(b)
	return 18_000_000 + binary.BigEndian.Uint64(b)%1_000_000
}

// New assembles the resource server with its priced routes.
func New(cfg Config, facilitator Facilitator, log logger.Logger, rec metrics.Recorder) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	paywall := NewPaywall(cfg, facilitator, log, rec)
	h := &analysisHandler{}

	premium := paywall.RequirePayment(PricePremiumAnalysis, "Premium AI-powered trading analysis")
	e.GET("/api/premium-analysis", h.Get, premium)
	e.POST("/api/premium-analysis", h.Post, premium)

	historical := paywall.RequirePayment(PriceHistoricalData, "Historical Data Access")
	e.GET("/api/historical-data", h.Historical, historical)

	signals := paywall.RequirePayment(PriceAIRecommendations, "AI Trading Signals")
	e.GET("/api/ai-recommendations", h.Recommendations, signals)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
