package chainrpc

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/omnisig/relay/internal/chain"
)

type stubEndpoint struct {
	balance *big.Int
	receipt *etypes.Receipt
	gas     uint64
	err     error

	calls int
}

func (s *stubEndpoint) BalanceAt(context.Context, ecommon.Address, *big.Int) (*big.Int, error) {
	s.calls++
	return s.balance, s.err
}

func (s *stubEndpoint) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	s.calls++
	return nil, s.err
}

func (s *stubEndpoint) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	s.calls++
	return s.gas, s.err
}

func (s *stubEndpoint) TransactionByHash(context.Context, ecommon.Hash) (*etypes.Transaction, bool, error) {
	s.calls++
	return nil, false, s.err
}

func (s *stubEndpoint) TransactionReceipt(context.Context, ecommon.Hash) (*etypes.Receipt, error) {
	s.calls++
	return s.receipt, s.err
}

func TestFailoverFirstSuccessWins(t *testing.T) {
	healthy := &stubEndpoint{balance: big.NewInt(42)}
	spare := &stubEndpoint{balance: big.NewInt(99)}
	client := NewWithEndpoints(chain.Ethereum, healthy, spare)

	balance, err := client.BalanceAt(context.Background(), ecommon.Address{})
	require.NoError(t, err)
	require.Equal(t, int64(42), balance.Int64())
	require.Equal(t, 1, healthy.calls)
	require.Zero(t, spare.calls, "fallback endpoint must stay untouched")
}

func TestFailoverSkipsFailingEndpoint(t *testing.T) {
	broken := &stubEndpoint{err: errors.New("503 service unavailable")}
	spare := &stubEndpoint{gas: 21000}
	client := NewWithEndpoints(chain.Base, broken, spare)

	gas, err := client.EstimateGas(context.Background(), ethereum.CallMsg{})
	require.NoError(t, err)
	require.Equal(t, uint64(21000), gas)
	require.Equal(t, 1, broken.calls)
	require.Equal(t, 1, spare.calls)
}

func TestFailoverReturnsLastError(t *testing.T) {
	first := &stubEndpoint{err: errors.New("timeout")}
	second := &stubEndpoint{err: errors.New("rate limited")}
	client := NewWithEndpoints(chain.Base, first, second)

	_, err := client.EstimateGas(context.Background(), ethereum.CallMsg{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestNoEndpointsIsAnError(t *testing.T) {
	client := NewWithEndpoints(chain.Polygon)

	_, err := client.BalanceAt(context.Background(), ecommon.Address{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no endpoints")
}

func TestUnminedReceiptIsNil(t *testing.T) {
	endpoint := &stubEndpoint{err: ethereum.NotFound}
	client := NewWithEndpoints(chain.Ethereum, endpoint)

	receipt, err := client.TransactionReceipt(context.Background(), ecommon.Hash{})
	require.NoError(t, err)
	require.Nil(t, receipt)
}

func TestReceiptFailoverStopsAtNotFound(t *testing.T) {
	// NotFound is an answer, not a failure: the next endpoint is not asked.
	unmined := &stubEndpoint{err: ethereum.NotFound}
	spare := &stubEndpoint{receipt: &etypes.Receipt{Status: etypes.ReceiptStatusSuccessful}}
	client := NewWithEndpoints(chain.Ethereum, unmined, spare)

	receipt, err := client.TransactionReceipt(context.Background(), ecommon.Hash{})
	require.NoError(t, err)
	require.Nil(t, receipt)
	require.Zero(t, spare.calls)
}
