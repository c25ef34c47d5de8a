package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tradewise/payflow/types"
	"github.com/tradewise/payflow/wallet"
)

// Facilitator validates a signed payment authorization and relays it to the
// chain for settlement.
type Facilitator interface {
	Verify(ctx context.Context, payload *wallet.Payload, req *types.PaymentRequirement) error
	Settle(ctx context.Context, payload *wallet.Payload, req *types.PaymentRequirement) (*types.PaymentReceipt, error)
}

// FacilitatorClient talks to a remote x402 facilitator service over HTTP.
type FacilitatorClient struct {
	baseURL string
	http    *http.Client
}

func NewFacilitatorClient(baseURL string) *FacilitatorClient {
	return &FacilitatorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// facilitatorRequest is the body posted to the facilitator's verify and
// settle endpoints.
type facilitatorRequest struct {
	Payload     *wallet.Payload           `json:"payload"`
	Requirement *types.PaymentRequirement `json:"requirement"`
}

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (f *FacilitatorClient) Verify(ctx context.Context, payload *wallet.Payload, req *types.PaymentRequirement) error {
	var result verifyResponse
	if err := f.post(ctx, "/verify", facilitatorRequest{Payload: payload, Requirement: req}, &result); err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("facilitator rejected authorization: %s", result.Reason)
	}
	return nil
}

func (f *FacilitatorClient) Settle(ctx context.Context, payload *wallet.Payload, req *types.PaymentRequirement) (*types.PaymentReceipt, error) {
	var receipt types.PaymentReceipt
	if err := f.post(ctx, "/settle", facilitatorRequest{Payload: payload, Requirement: req}, &receipt); err != nil {
		return nil, err
	}
	if !receipt.Success {
		return nil, fmt.Errorf("facilitator settlement failed for tx %s", receipt.TransactionHash)
	}
	return &receipt, nil
}

func (f *FacilitatorClient) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("facilitator unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}
