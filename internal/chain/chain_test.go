package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	for _, id := range Supported() {
		t.Run(id.String(), func(t *testing.T) {
			target, err := Get(id)
			require.NoError(t, err)
			require.Equal(t, id, target.ID)
			require.NotZero(t, target.NumericID)
			require.NotEmpty(t, target.HexID)
			require.NotEmpty(t, target.Name)
			require.NotEmpty(t, target.Native.Symbol)
			require.NotEmpty(t, target.RpcURLs, "every chain needs a fallback RPC list")
			require.NotEmpty(t, target.ExplorerURL)
		})
	}

	_, err := Get("dogecoin")
	require.Error(t, err)
}

func TestByHexID(t *testing.T) {
	tests := []struct {
		hexID    string
		expected ID
	}{
		{"0x1", Ethereum},
		{"0x2105", Base},
		{"0xA4B1", Arbitrum}, // case-insensitive
		{"0x89", Polygon},
	}

	for _, tt := range tests {
		t.Run(tt.hexID, func(t *testing.T) {
			target, err := ByHexID(tt.hexID)
			require.NoError(t, err)
			require.Equal(t, tt.expected, target.ID)
		})
	}

	_, err := ByHexID("0xdead")
	require.Error(t, err)
}

func TestByNumericID(t *testing.T) {
	target, err := ByNumericID(8453)
	require.NoError(t, err)
	require.Equal(t, Base, target.ID)

	_, err = ByNumericID(999999)
	require.Error(t, err)
}

func TestResolveForTransaction(t *testing.T) {
	tests := []struct {
		name        string
		explicit    string
		destination string
		expected    ID
	}{
		{
			name:     "explicit chain wins",
			explicit: "base",
			// Destination is an Ethereum token; the explicit slug must win.
			destination: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			expected:    Base,
		},
		{
			name:        "explicit chain is case-insensitive",
			explicit:    "Arbitrum",
			destination: "",
			expected:    Arbitrum,
		},
		{
			name:        "known token resolves its chain",
			destination: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			expected:    Base,
		},
		{
			name:        "unknown destination falls back to default",
			destination: "0x1111111111111111111111111111111111111111",
			expected:    DefaultChain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := ResolveForTransaction(tt.explicit, tt.destination)
			require.NoError(t, err)
			require.Equal(t, tt.expected, target.ID)
		})
	}
}

func TestResolveForTransactionIsDeterministic(t *testing.T) {
	first, err := ResolveForTransaction("", "0xdAC17F958D2ee523a2206206994597C13D831ec7")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, er := ResolveForTransaction("", "0xdAC17F958D2ee523a2206206994597C13D831ec7")
		require.NoError(t, er)
		require.Equal(t, first, again)
	}
}

func TestResolveForTransactionRejectsUnsupportedExplicitChain(t *testing.T) {
	_, err := ResolveForTransaction("solana", "")
	require.Error(t, err)
}
