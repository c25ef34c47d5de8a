// Package wallet provides a key-backed signer that produces EIP-3009
// TransferWithAuthorization payment authorizations for the 402 flow. It is
// the Go equivalent of a connected browser wallet; an interactive wallet
// integration would implement the same client.Signer interface.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tradewise/payflow/types"
	"github.com/tradewise/payflow/utils"
)

// DefaultValidity bounds how long a signed authorization stays usable.
const DefaultValidity = 10 * time.Minute

// Authorization is the EIP-3009 TransferWithAuthorization message carried
// inside a payment payload. Numeric fields are decimal strings because the
// wire has no uint256.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// Payload is the decoded X-Payment header value.
type Payload struct {
	Scheme        string        `json:"scheme"`
	Network       string        `json:"network"`
	Authorization Authorization `json:"authorization"`
	Signature     string        `json:"signature"`
}

// LocalSigner signs payment authorizations with an in-process ECDSA key.
type LocalSigner struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	chainID  uint64
	validity time.Duration
}

// NewLocalSigner creates a signer from a hex-encoded private key connected
// to the given chain.
func NewLocalSigner(hexKey string, chainID uint64) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &LocalSigner{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		validity: DefaultValidity,
	}, nil
}

func (s *LocalSigner) Address() string {
	return s.address.Hex()
}

func (s *LocalSigner) ChainID() uint64 {
	return s.chainID
}

// SignPayment builds, signs, and encodes a transfer authorization satisfying
// the requirement. A local key never prompts, so this signer cannot produce
// a USER_REJECTED outcome.
func (s *LocalSigner) SignPayment(ctx context.Context, req *types.PaymentRequirement) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := utils.ParseSubunits(req.Amount)
	if err != nil {
		return "", types.NewPaymentError(types.ErrInvalidAmount, "", err.Error())
	}
	if !common.IsHexAddress(req.Recipient) {
		return "", types.NewPaymentError(types.ErrUnknown,
			"payment recipient is not a valid address", req.Recipient)
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	now := time.Now()
	auth := Authorization{
		From:        s.address.Hex(),
		To:          common.HexToAddress(req.Recipient).Hex(),
		Value:       value.String(),
		ValidAfter:  strconv.FormatInt(now.Add(-time.Minute).Unix(), 10),
		ValidBefore: strconv.FormatInt(now.Add(s.validity).Unix(), 10),
		Nonce:       hexutil.Encode(nonce),
	}

	digest, err := Digest(auth, s.chainID, req.Token)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("signing failed: %w", err)
	}
	sig[64] += 27

	payload := Payload{
		Scheme:        req.Scheme,
		Network:       req.Network.String(),
		Authorization: auth,
		Signature:     hexutil.Encode(sig),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePayload parses an X-Payment header value.
func DecodePayload(header string) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("payment header is not valid base64: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("payment header is not valid JSON: %w", err)
	}
	return &p, nil
}

// Digest computes the EIP-712 digest of a TransferWithAuthorization message
// under the USDC domain (name "USD Coin", version "2").
func Digest(auth Authorization, chainID uint64, token string) ([]byte, error) {
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid authorization value %q", auth.Value)
	}
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validAfter %q", auth.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validBefore %q", auth.ValidBefore)
	}
	nonce, err := hex.DecodeString(strings.TrimPrefix(auth.Nonce, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid nonce hex: %w", err)
	}
	if len(nonce) != 32 {
		return nil, fmt.Errorf("nonce must be 32 bytes, got %d", len(nonce))
	}

	domainSeparator := crypto.Keccak256(
		crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")),
		crypto.Keccak256([]byte("USD Coin")),
		crypto.Keccak256([]byte("2")),
		common.LeftPadBytes(new(big.Int).SetUint64(chainID).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(token).Bytes(), 32),
	)

	typeHash := crypto.Keccak256([]byte(
		"TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)",
	))

	structHash := crypto.Keccak256(
		typeHash,
		common.LeftPadBytes(common.HexToAddress(auth.From).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(auth.To).Bytes(), 32),
		common.LeftPadBytes(value.Bytes(), 32),
		common.LeftPadBytes(validAfter.Bytes(), 32),
		common.LeftPadBytes(validBefore.Bytes(), 32),
		nonce,
	)

	return crypto.Keccak256(
		[]byte("\x19\x01"),
		domainSeparator,
		structHash,
	), nil
}

// RecoverSigner recovers the address that signed a transfer authorization.
// Both 0/1 and 27/28 recovery id conventions are accepted.
func RecoverSigner(auth Authorization, signature string, chainID uint64, token string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	digest, err := Digest(auth, chainID, token)
	if err != nil {
		return "", err
	}

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return "", fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
