package utils

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/tradewise/payflow/types"
)

var validate = validator.New()

// ParsePaymentRequired parses and validates the JSON body of a 402 response.
func ParsePaymentRequired(body []byte) (*types.PaymentRequiredResponse, error) {
	var resp types.PaymentRequiredResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.NewPaymentError(types.ErrUnknown,
			"malformed payment requirements", err.Error())
	}
	if len(resp.PaymentRequirements) == 0 {
		return nil, types.NewPaymentError(types.ErrUnknown,
			"resource offered no payment requirements", nil)
	}
	for i := range resp.PaymentRequirements {
		if err := validate.Struct(&resp.PaymentRequirements[i]); err != nil {
			return nil, types.NewPaymentError(types.ErrUnknown,
				fmt.Sprintf("invalid payment requirement at index %d", i), err.Error())
		}
	}
	return &resp, nil
}

// DecodeReceipt decodes an X-Payment-Response header value into a settlement
// receipt.
func DecodeReceipt(header string) (*types.PaymentReceipt, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("settlement receipt is not valid base64: %w", err)
	}
	var receipt types.PaymentReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("settlement receipt is not valid JSON: %w", err)
	}
	return &receipt, nil
}

// EncodeReceipt encodes a settlement receipt for the X-Payment-Response
// header.
func EncodeReceipt(receipt *types.PaymentReceipt) (string, error) {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
