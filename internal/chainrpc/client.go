// Package chainrpc provides read-only access to each supported network over
// its ordered fallback list of RPC endpoints.
package chainrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/omnisig/relay/internal/chain"
)

// Endpoint is the per-URL call surface; *ethclient.Client satisfies it.
type Endpoint interface {
	BalanceAt(ctx context.Context, account ecommon.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	TransactionByHash(ctx context.Context, hash ecommon.Hash) (*etypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash ecommon.Hash) (*etypes.Receipt, error)
}

// Client fans a call out over a chain's endpoints in order, returning the
// first success. All endpoints failing returns the last error.
type Client struct {
	chain     chain.ID
	endpoints []Endpoint
}

// Dial connects to every RPC URL of the target. Endpoints that fail to dial
// are skipped; at least one must connect.
func Dial(ctx context.Context, target chain.Target) (*Client, error) {
	var endpoints []Endpoint
	var lastErr error
	for _, url := range target.RpcURLs {
		ec, err := ethclient.DialContext(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		endpoints = append(endpoints, ec)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("failed to connect to any %s endpoint: %w", target.ID, lastErr)
	}
	return &Client{chain: target.ID, endpoints: endpoints}, nil
}

// NewWithEndpoints builds a client over pre-connected endpoints.
func NewWithEndpoints(id chain.ID, endpoints ...Endpoint) *Client {
	return &Client{chain: id, endpoints: endpoints}
}

func (c *Client) Chain() chain.ID {
	return c.chain
}

func (c *Client) BalanceAt(ctx context.Context, account ecommon.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.each(func(e Endpoint) error {
		var er error
		balance, er = e.BalanceAt(ctx, account, nil)
		return er
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance on %s: %w", c.chain, err)
	}
	return balance, nil
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := c.each(func(e Endpoint) error {
		var er error
		out, er = e.CallContract(ctx, msg, nil)
		return er
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call contract on %s: %w", c.chain, err)
	}
	return out, nil
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.each(func(e Endpoint) error {
		var er error
		gas, er = e.EstimateGas(ctx, msg)
		return er
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas on %s: %w", c.chain, err)
	}
	return gas, nil
}

func (c *Client) TransactionByHash(ctx context.Context, hash ecommon.Hash) (*etypes.Transaction, bool, error) {
	var transaction *etypes.Transaction
	var pending bool
	err := c.each(func(e Endpoint) error {
		var er error
		transaction, pending, er = e.TransactionByHash(ctx, hash)
		return er
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get tx on %s: %w", c.chain, err)
	}
	return transaction, pending, nil
}

// TransactionReceipt returns (nil, nil) while the transaction is still
// unmined; ethereum.NotFound is not an error at this layer.
func (c *Client) TransactionReceipt(ctx context.Context, hash ecommon.Hash) (*etypes.Receipt, error) {
	var receipt *etypes.Receipt
	err := c.each(func(e Endpoint) error {
		var er error
		receipt, er = e.TransactionReceipt(ctx, hash)
		if errors.Is(er, ethereum.NotFound) {
			receipt = nil
			return nil
		}
		return er
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt on %s: %w", c.chain, err)
	}
	return receipt, nil
}

func (c *Client) each(call func(Endpoint) error) error {
	if len(c.endpoints) == 0 {
		return fmt.Errorf("no endpoints configured for %s", c.chain)
	}
	var lastErr error
	for _, e := range c.endpoints {
		lastErr = call(e)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
