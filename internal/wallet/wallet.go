package wallet

import (
	"context"
	"errors"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"

	"github.com/omnisig/relay/internal/chain"
)

// Provider error classes. SendTransaction and the chain-management calls
// return these wrapped around the transport error so callers can branch with
// errors.Is.
var (
	// ErrUserRejected means the user declined the request in the wallet.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrUnknownChain means the wallet has no definition for the requested
	// chain and needs AddChain first.
	ErrUnknownChain = errors.New("chain not known to wallet")
	// ErrNoAccounts means the wallet exposes no signing account.
	ErrNoAccounts = errors.New("wallet has no accounts")
	// ErrMethodNotFound means the wallet bridge lacks a required method.
	ErrMethodNotFound = errors.New("wallet method not available")
)

// SendParams describes one signed+broadcast transfer request. Value is in
// the chain's smallest unit. Gas is an optional estimation hint; zero means
// let the wallet decide.
type SendParams struct {
	From  ecommon.Address
	To    ecommon.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
}

// Provider is the wallet capability surface this pipeline needs: chain
// management, account discovery, and a single sign-and-broadcast call. The
// signing side is an exclusively-owned resource; callers serialize access.
type Provider interface {
	// ChainID returns the wallet's active numeric chain id.
	ChainID(ctx context.Context) (uint64, error)
	// SwitchChain asks the wallet to activate the chain with the given hex
	// id. Returns ErrUnknownChain if the wallet has no such definition.
	SwitchChain(ctx context.Context, hexID string) error
	// AddChain registers a full network definition with the wallet.
	AddChain(ctx context.Context, target chain.Target) error
	// Accounts returns the wallet's exposed addresses; the first is the
	// signing account.
	Accounts(ctx context.Context) ([]ecommon.Address, error)
	// SendTransaction requests a signed, broadcast transfer and returns the
	// transaction hash. Returns ErrUserRejected when declined.
	SendTransaction(ctx context.Context, params SendParams) (string, error)
}
