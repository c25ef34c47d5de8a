package utils

import (
	"regexp"

	"github.com/tradewise/payflow/types"
)

// FormatTxHash collapses a long transaction hash to "first6...last4" for
// display. Identifiers shorter than ten characters pass through unchanged.
func FormatTxHash(hash string) string {
	if len(hash) < 10 {
		return hash
	}
	return hash[:6] + "..." + hash[len(hash)-4:]
}

var explorerBases = map[uint64]string{
	types.ChainIDBase:        "https://basescan.org",
	types.ChainIDBaseSepolia: "https://sepolia.basescan.org",
}

// ExplorerURL returns the block-explorer link for a transaction.
// Unrecognized chain ids fall back to etherscan.
func ExplorerURL(chainID uint64, txHash string) string {
	base, ok := explorerBases[chainID]
	if !ok {
		return "https://etherscan.io/tx/" + txHash
	}
	return base + "/tx/" + txHash
}

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex transaction hash.
func IsTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}
