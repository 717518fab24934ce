package chain

import (
	"fmt"
	"strings"
)

// ID is the stable slug naming a supported network.
type ID string

const (
	Ethereum  ID = "ethereum"
	Base      ID = "base"
	Arbitrum  ID = "arbitrum"
	Optimism  ID = "optimism"
	Polygon   ID = "polygon"
	BscChain  ID = "bsc"
	Avalanche ID = "avalanche"
)

func (id ID) String() string {
	return string(id)
}

// Currency describes a network's native asset.
type Currency struct {
	Name     string
	Symbol   string
	Decimals int
}

// Target is the static definition of one supported network: everything the
// wallet needs to add the chain, plus the RPC endpoints this service uses to
// read from it. RpcURLs is an ordered fallback list.
type Target struct {
	ID          ID
	NumericID   uint64
	HexID       string
	Name        string
	Native      Currency
	RpcURLs     []string
	ExplorerURL string
}

var targets = map[ID]Target{
	Ethereum: {
		ID:        Ethereum,
		NumericID: 1,
		HexID:     "0x1",
		Name:      "Ethereum Mainnet",
		Native:    Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RpcURLs: []string{
			"https://eth.llamarpc.com",
			"https://rpc.ankr.com/eth",
		},
		ExplorerURL: "https://etherscan.io",
	},
	Base: {
		ID:        Base,
		NumericID: 8453,
		HexID:     "0x2105",
		Name:      "Base",
		Native:    Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RpcURLs: []string{
			"https://mainnet.base.org",
			"https://base.llamarpc.com",
		},
		ExplorerURL: "https://basescan.org",
	},
	Arbitrum: {
		ID:        Arbitrum,
		NumericID: 42161,
		HexID:     "0xa4b1",
		Name:      "Arbitrum One",
		Native:    Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RpcURLs: []string{
			"https://arb1.arbitrum.io/rpc",
			"https://rpc.ankr.com/arbitrum",
		},
		ExplorerURL: "https://arbiscan.io",
	},
	Optimism: {
		ID:        Optimism,
		NumericID: 10,
		HexID:     "0xa",
		Name:      "OP Mainnet",
		Native:    Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RpcURLs: []string{
			"https://mainnet.optimism.io",
			"https://rpc.ankr.com/optimism",
		},
		ExplorerURL: "https://optimistic.etherscan.io",
	},
	Polygon: {
		ID:        Polygon,
		NumericID: 137,
		HexID:     "0x89",
		Name:      "Polygon Mainnet",
		Native:    Currency{Name: "POL", Symbol: "POL", Decimals: 18},
		RpcURLs: []string{
			"https://polygon-rpc.com",
			"https://rpc.ankr.com/polygon",
		},
		ExplorerURL: "https://polygonscan.com",
	},
	BscChain: {
		ID:        BscChain,
		NumericID: 56,
		HexID:     "0x38",
		Name:      "BNB Smart Chain",
		Native:    Currency{Name: "BNB", Symbol: "BNB", Decimals: 18},
		RpcURLs: []string{
			"https://bsc-dataseed.bnbchain.org",
			"https://rpc.ankr.com/bsc",
		},
		ExplorerURL: "https://bscscan.com",
	},
	Avalanche: {
		ID:        Avalanche,
		NumericID: 43114,
		HexID:     "0xa86a",
		Name:      "Avalanche C-Chain",
		Native:    Currency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
		RpcURLs: []string{
			"https://api.avax.network/ext/bc/C/rpc",
			"https://rpc.ankr.com/avalanche",
		},
		ExplorerURL: "https://snowtrace.io",
	},
}

// Supported returns all networks this service can execute against.
func Supported() []ID {
	return []ID{Ethereum, Base, Arbitrum, Optimism, Polygon, BscChain, Avalanche}
}

// Get returns the target definition for id.
func Get(id ID) (Target, error) {
	t, ok := targets[id]
	if !ok {
		return Target{}, fmt.Errorf("unsupported chain: %s", id)
	}
	return t, nil
}

// ByHexID resolves a wallet-reported hex chain id to a target.
func ByHexID(hexID string) (Target, error) {
	for _, t := range targets {
		if strings.EqualFold(t.HexID, hexID) {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unsupported chain id: %s", hexID)
}

// ByNumericID resolves a numeric chain id to a target.
func ByNumericID(numeric uint64) (Target, error) {
	for _, t := range targets {
		if t.NumericID == numeric {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unsupported chain id: %d", numeric)
}
