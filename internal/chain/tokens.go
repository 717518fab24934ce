package chain

import "strings"

// knownTokens maps a lowercase token contract address to the network it
// lives on. This is the single source of truth for inferring a target chain
// from a transaction's destination; the per-chain address lists it replaces
// drifted apart and guessed silently.
var knownTokens = map[string]ID{
	// Ethereum mainnet
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": Ethereum, // USDC
	"0xdac17f958d2ee523a2206206994597c13d831ec7": Ethereum, // USDT
	"0x6b175474e89094c44da98b954eedeac495271d0f": Ethereum, // DAI
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": Ethereum, // WETH

	// Base
	"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": Base, // USDC
	"0x4200000000000000000000000000000000000006": Base, // WETH
	"0x50c5725949a6f0c72e6c4a641f24049a917db0cb": Base, // DAI

	// Arbitrum One
	"0xaf88d065e77c8cc2239327c5edb3a432268e5831": Arbitrum, // USDC
	"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9": Arbitrum, // USDT
	"0x82af49447d8a07e3bd95bd0d56f35241523fbab1": Arbitrum, // WETH

	// OP Mainnet
	"0x0b2c639c533813f4aa9d7837caf62653d097ff85": Optimism, // USDC
	"0x94b008aa00579c1307b0ef2c499ad98a8ce58e58": Optimism, // USDT

	// Polygon
	"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359": Polygon, // USDC
	"0xc2132d05d31c914a87c6611c10748aeb04b58e8f": Polygon, // USDT

	// BNB Smart Chain
	"0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d": BscChain, // USDC
	"0x55d398326f99059ff775485246999027b3197955": BscChain, // USDT

	// Avalanche C-Chain
	"0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e": Avalanche, // USDC
	"0x9702230a8ea53601f5cd2dc00fdbc13d4df4a8c7": Avalanche, // USDT
}

// DefaultChain is used when a destination address resolves to no known
// token; callers fall back here instead of guessing per-chain.
const DefaultChain = Ethereum

// ResolveForTransaction picks the network a transaction targets. The
// explicit chain slug on the record wins; otherwise the destination address
// is looked up in the token map; an unresolved address falls back to
// DefaultChain. The same inputs always resolve to the same target.
func ResolveForTransaction(explicit string, destination string) (Target, error) {
	if explicit != "" {
		return Get(ID(strings.ToLower(explicit)))
	}
	if id, ok := knownTokens[strings.ToLower(destination)]; ok {
		return Get(id)
	}
	return Get(DefaultChain)
}
