// Package adapter aligns the wallet's active network with a transaction's
// target network before anything is submitted on it.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/omnisig/relay/internal/chain"
	"github.com/omnisig/relay/internal/wallet"
)

// Typed failures the caller surfaces with a retry action; each requires the
// user to act inside the wallet.
var (
	ErrConnectionFailed  = errors.New("failed to read wallet chain id")
	ErrChainSwitchFailed = errors.New("failed to switch wallet network")
	ErrChainAddFailed    = errors.New("failed to add network to wallet")
)

type Adapter struct {
	logger *logrus.Entry
}

func New(logger *logrus.Logger) *Adapter {
	return &Adapter{
		logger: logger.WithField("pkg", "adapter"),
	}
}

// EnsureChain makes the wallet's active network equal target. Already on the
// target chain is a no-op with zero wallet-facing calls beyond the id read.
// An unknown chain is added with the full descriptor, then the switch is
// retried once. No partial state is kept; the call is safe to repeat after
// any failure.
func (a *Adapter) EnsureChain(ctx context.Context, provider wallet.Provider, target chain.Target) error {
	current, err := provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if current == target.NumericID {
		return nil
	}

	a.logger.WithFields(logrus.Fields{
		"current": current,
		"target":  target.ID.String(),
	}).Info("switching wallet network")

	err = provider.SwitchChain(ctx, target.HexID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, wallet.ErrUnknownChain) {
		return fmt.Errorf("%w: %w", ErrChainSwitchFailed, err)
	}

	// The wallet has no definition for this chain yet.
	if er := provider.AddChain(ctx, target); er != nil {
		return fmt.Errorf("%w: %w", ErrChainAddFailed, er)
	}
	if er := provider.SwitchChain(ctx, target.HexID); er != nil {
		return fmt.Errorf("%w: %w", ErrChainSwitchFailed, er)
	}
	return nil
}
