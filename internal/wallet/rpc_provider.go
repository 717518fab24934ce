package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/omnisig/relay/internal/chain"
)

// EIP-1193 / JSON-RPC error codes surfaced by wallet bridges.
const (
	codeUserRejected   = 4001
	codeUnknownChain   = 4902
	codeMethodNotFound = -32601
)

// RpcProvider talks to a wallet bridge over JSON-RPC: eth_chainId,
// wallet_switchEthereumChain, wallet_addEthereumChain, eth_accounts and
// eth_sendTransaction. The bridge forwards signature requests to the user's
// wallet, so every call here may block on user interaction.
type RpcProvider struct {
	client *rpc.Client
}

func NewRpcProvider(ctx context.Context, url string) (*RpcProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet bridge: %w", err)
	}
	return &RpcProvider{client: client}, nil
}

func (p *RpcProvider) ChainID(ctx context.Context) (uint64, error) {
	var raw hexutil.Uint64
	err := p.client.CallContext(ctx, &raw, "eth_chainId")
	if err != nil {
		return 0, classify(err, "eth_chainId")
	}
	return uint64(raw), nil
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

func (p *RpcProvider) SwitchChain(ctx context.Context, hexID string) error {
	err := p.client.CallContext(ctx, nil, "wallet_switchEthereumChain", switchChainParams{ChainID: hexID})
	if err != nil {
		return classify(err, "wallet_switchEthereumChain")
	}
	return nil
}

type addChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    nativeCurrency `json:"nativeCurrency"`
	RpcURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

func (p *RpcProvider) AddChain(ctx context.Context, target chain.Target) error {
	params := addChainParams{
		ChainID:   target.HexID,
		ChainName: target.Name,
		NativeCurrency: nativeCurrency{
			Name:     target.Native.Name,
			Symbol:   target.Native.Symbol,
			Decimals: target.Native.Decimals,
		},
		RpcURLs: target.RpcURLs,
	}
	if target.ExplorerURL != "" {
		params.BlockExplorerURLs = []string{target.ExplorerURL}
	}

	err := p.client.CallContext(ctx, nil, "wallet_addEthereumChain", params)
	if err != nil {
		return classify(err, "wallet_addEthereumChain")
	}
	return nil
}

func (p *RpcProvider) Accounts(ctx context.Context) ([]ecommon.Address, error) {
	var accounts []ecommon.Address
	err := p.client.CallContext(ctx, &accounts, "eth_accounts")
	if err != nil {
		return nil, classify(err, "eth_accounts")
	}
	return accounts, nil
}

type sendTxParams struct {
	From  ecommon.Address  `json:"from"`
	To    *ecommon.Address `json:"to"`
	Value *hexutil.Big     `json:"value,omitempty"`
	Data  hexutil.Bytes    `json:"data,omitempty"`
	Gas   *hexutil.Uint64  `json:"gas,omitempty"`
}

func (p *RpcProvider) SendTransaction(ctx context.Context, params SendParams) (string, error) {
	req := sendTxParams{
		From: params.From,
		To:   &params.To,
	}
	if params.Value != nil && params.Value.Sign() > 0 {
		req.Value = (*hexutil.Big)(params.Value)
	}
	if len(params.Data) > 0 {
		req.Data = hexutil.Bytes(params.Data)
	}
	if params.Gas > 0 {
		gas := hexutil.Uint64(params.Gas)
		req.Gas = &gas
	}

	var hash ecommon.Hash
	err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", req)
	if err != nil {
		return "", classify(err, "eth_sendTransaction")
	}
	return hash.Hex(), nil
}

func (p *RpcProvider) Close() {
	p.client.Close()
}

// classify wraps a bridge error with the typed class callers branch on.
// Rejection is also matched on message because some wallets report it
// without the 4001 code.
func classify(err error, method string) error {
	if code, ok := errorCode(err); ok {
		switch code {
		case codeUserRejected:
			return fmt.Errorf("%s: %w: %s", method, ErrUserRejected, err.Error())
		case codeUnknownChain:
			return fmt.Errorf("%s: %w: %s", method, ErrUnknownChain, err.Error())
		case codeMethodNotFound:
			return fmt.Errorf("%s: %w: %s", method, ErrMethodNotFound, err.Error())
		}
	}
	if isRejectionMessage(err.Error()) {
		return fmt.Errorf("%s: %w: %s", method, ErrUserRejected, err.Error())
	}
	return fmt.Errorf("%s: %w", method, err)
}

func errorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

func isRejectionMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "rejected by user")
}
