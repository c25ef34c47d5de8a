package confirm

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthReader adapts an RPC-backed ethclient to the ChainReader interface.
type EthReader struct {
	client *ethclient.Client
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*EthReader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &EthReader{client: client}, nil
}

// NewEthReader wraps an already-connected client.
func NewEthReader(client *ethclient.Client) *EthReader {
	return &EthReader{client: client}
}

func (r *EthReader) BlockNumber(ctx context.Context) (uint64, error) {
	return r.client.BlockNumber(ctx)
}

// TransactionReceipt looks up a mined transaction. A transaction the node
// has not seen yet is reported as nil, not as an error.
func (r *EthReader) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := r.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Receipt{
		BlockNumber: receipt.BlockNumber.Uint64(),
		Failed:      receipt.Status == ethtypes.ReceiptStatusFailed,
	}, nil
}

func (r *EthReader) Close() {
	r.client.Close()
}
