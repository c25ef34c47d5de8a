package types

// Network identifies a supported settlement chain.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
)

// Chain ids of the supported networks.
const (
	ChainIDBase        uint64 = 8453
	ChainIDBaseSepolia uint64 = 84532
)

// USDC contract addresses per network.
const (
	USDCAddressBase        = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	USDCAddressBaseSepolia = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

// ChainID returns the numeric chain id, or 0 for an unknown network.
func (n Network) ChainID() uint64 {
	switch n {
	case NetworkBase:
		return ChainIDBase
	case NetworkBaseSepolia:
		return ChainIDBaseSepolia
	default:
		return 0
	}
}

// NetworkFromChainID maps a chain id back to its network name.
func NetworkFromChainID(id uint64) (Network, bool) {
	switch id {
	case ChainIDBase:
		return NetworkBase, true
	case ChainIDBaseSepolia:
		return NetworkBaseSepolia, true
	default:
		return "", false
	}
}

// USDCAddress returns the USDC contract address on this network.
func (n Network) USDCAddress() string {
	switch n {
	case NetworkBase:
		return USDCAddressBase
	case NetworkBaseSepolia:
		return USDCAddressBaseSepolia
	default:
		return ""
	}
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia
}

func (n Network) Valid() bool {
	return n == NetworkBase || n == NetworkBaseSepolia
}

func (n Network) String() string {
	return string(n)
}
