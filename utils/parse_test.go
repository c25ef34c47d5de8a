package utils

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewise/payflow/types"
)

const validRequirementBody = `{
	"paymentRequirements": [
		{
			"scheme": "eip712",
			"network": "base",
			"token": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			"amount": "0.01",
			"recipient": "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
			"facilitator": "https://facilitator.x402.org",
			"description": "Premium AI-powered trading analysis"
		}
	]
}`

func TestParsePaymentRequired(t *testing.T) {
	resp, err := ParsePaymentRequired([]byte(validRequirementBody))
	require.NoError(t, err)
	require.Len(t, resp.PaymentRequirements, 1)

	req := resp.PaymentRequirements[0]
	assert.Equal(t, types.SchemeEIP712, req.Scheme)
	assert.Equal(t, types.NetworkBase, req.Network)
	assert.Equal(t, "0.01", req.Amount)
}

func TestParsePaymentRequiredRejectsMalformedJSON(t *testing.T) {
	_, err := ParsePaymentRequired([]byte("{not json"))
	require.Error(t, err)

	var perr *types.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrUnknown, perr.Kind)
}

func TestParsePaymentRequiredRejectsEmptyList(t *testing.T) {
	_, err := ParsePaymentRequired([]byte(`{"paymentRequirements": []}`))
	assert.Error(t, err)
}

func TestParsePaymentRequiredRejectsBadScheme(t *testing.T) {
	body := `{
		"paymentRequirements": [
			{
				"scheme": "eip155",
				"network": "base",
				"token": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
				"amount": "0.01",
				"recipient": "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
				"facilitator": "https://facilitator.x402.org"
			}
		]
	}`
	_, err := ParsePaymentRequired([]byte(body))
	assert.Error(t, err)
}

func TestParsePaymentRequiredRejectsMissingFields(t *testing.T) {
	body := `{
		"paymentRequirements": [
			{"scheme": "eip712", "network": "base"}
		]
	}`
	_, err := ParsePaymentRequired([]byte(body))
	assert.Error(t, err)
}

func TestReceiptRoundTrip(t *testing.T) {
	receipt := &types.PaymentReceipt{
		Success:         true,
		TransactionHash: "0xabc123",
		BlockNumber:     18_500_000,
		Network:         "base",
		Token:           types.USDCAddressBase,
		Amount:          "0.01",
		Timestamp:       "2025-06-01T12:00:00Z",
	}

	encoded, err := EncodeReceipt(receipt)
	require.NoError(t, err)

	decoded, err := DecodeReceipt(encoded)
	require.NoError(t, err)
	assert.Equal(t, receipt, decoded)
}

func TestDecodeReceiptRejectsBadInput(t *testing.T) {
	_, err := DecodeReceipt("%%%not-base64%%%")
	assert.Error(t, err)

	notJSON := base64.StdEncoding.EncodeToString([]byte("plain text"))
	_, err = DecodeReceipt(notJSON)
	assert.Error(t, err)
}
