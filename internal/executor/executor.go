// Package executor submits pending transactions for signature, one at a
// time. The signing capability is an exclusively-owned resource: a weighted
// semaphore is acquired before anything wallet-facing happens and released
// on every exit path.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/omnisig/relay/internal/adapter"
	"github.com/omnisig/relay/internal/chain"
	"github.com/omnisig/relay/internal/chainrpc"
	"github.com/omnisig/relay/internal/metrics"
	"github.com/omnisig/relay/internal/store"
	"github.com/omnisig/relay/internal/tx"
	"github.com/omnisig/relay/internal/wallet"
)

// ErrSigningBusy means another transaction currently owns the signing slot;
// the caller retries the pickup later with the record left PENDING.
var ErrSigningBusy = errors.New("signature request already in flight")

// ErrSubmissionUnrecorded means the transaction was broadcast but every
// attempt to persist SUBMITTED failed. The task must not be re-run: the
// transfer is already on chain and re-signing would broadcast it twice.
var ErrSubmissionUnrecorded = errors.New("transaction broadcast but submission not recorded")

const submitRecordAttempts = 5

// submitRecordBackoff scales with the attempt number between retries of the
// submission write.
var submitRecordBackoff = 200 * time.Millisecond

// gasEstimator is the read-only chain access the executor needs.
type gasEstimator interface {
	Get(id chain.ID) (*chainrpc.Client, error)
}

type recordStore interface {
	store.Reader
	store.Writer
}

type Executor struct {
	logger      *logrus.Entry
	provider    wallet.Provider
	adapter     *adapter.Adapter
	rpcs        gasEstimator
	store       recordStore
	signing     *semaphore.Weighted
	settleDelay time.Duration
	metrics     *metrics.WorkerMetrics
}

func New(
	logger *logrus.Logger,
	provider wallet.Provider,
	chainAdapter *adapter.Adapter,
	rpcs gasEstimator,
	recordStore recordStore,
	settleDelay time.Duration,
	workerMetrics *metrics.WorkerMetrics,
) *Executor {
	return &Executor{
		logger:      logger.WithField("pkg", "executor"),
		provider:    provider,
		adapter:     chainAdapter,
		rpcs:        rpcs,
		store:       recordStore,
		signing:     semaphore.NewWeighted(1),
		settleDelay: settleDelay,
		metrics:     workerMetrics,
	}
}

// ExecuteByID loads the record and runs Execute. A record that is no longer
// PENDING (picked up twice, or already terminal) is skipped silently.
func (e *Executor) ExecuteByID(ctx context.Context, id uuid.UUID) error {
	record, err := e.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	if record.Status != tx.StatusPending {
		e.logger.WithFields(logrus.Fields{
			"id":     id.String(),
			"status": record.Status,
		}).Debug("skipping non-pending transaction")
		return nil
	}
	return e.Execute(ctx, record)
}

// Execute drives one PENDING transaction to exactly one of SUBMITTED,
// REJECTED or FAILED, or leaves it PENDING when the attempt could not run at
// all (signing slot busy, chain adaptation failed, no signing capability).
func (e *Executor) Execute(ctx context.Context, record tx.Transaction) error {
	if !e.signing.TryAcquire(1) {
		return ErrSigningBusy
	}
	defer e.signing.Release(1)

	started := time.Now()
	l := e.logger.WithFields(logrus.Fields{
		"id":    record.ID.String(),
		"to":    record.To,
		"value": record.Value,
	})

	target, err := chain.ResolveForTransaction(record.Chain, record.To)
	if err != nil {
		// No network to execute against; terminal.
		e.fail(ctx, l, record, started, fmt.Errorf("failed to resolve target chain: %w", err))
		return nil
	}
	l = l.WithField("chain", target.ID.String())

	if err = e.adapter.EnsureChain(ctx, e.provider, target); err != nil {
		// Needs user action inside the wallet; leave PENDING and surface
		// with a retry.
		e.metrics.RecordError(metrics.ErrorTypeNetwork)
		return fmt.Errorf("failed to adapt chain for %s: %w", record.ID, err)
	}

	accounts, err := e.provider.Accounts(ctx)
	if err != nil {
		e.metrics.RecordError(metrics.ErrorTypeWallet)
		return fmt.Errorf("failed to get wallet accounts: %w", err)
	}
	if len(accounts) == 0 {
		// No signing capability right now; retried next cycle.
		e.metrics.RecordError(metrics.ErrorTypeWallet)
		return fmt.Errorf("%w: no capability for %s", wallet.ErrNoAccounts, record.ID)
	}
	from := accounts[0]

	params, err := buildSendParams(from, record)
	if err != nil {
		e.fail(ctx, l, record, started, err)
		return nil
	}
	params.Gas = e.estimateGas(ctx, l, target.ID, params)

	// Give the wallet a moment to finish the network switch before the
	// signature prompt appears.
	if err = e.settle(ctx); err != nil {
		return err
	}

	hash, err := e.provider.SendTransaction(ctx, params)
	switch {
	case err == nil:
		if er := e.recordSubmission(ctx, record.ID, hash); er != nil {
			l.WithError(er).WithField("hash", hash).
				Error("submitted transaction left unrecorded, needs manual reconciliation")
			return er
		}
		e.metrics.RecordExecution(target.ID.String(), string(tx.StatusSubmitted), time.Since(started))
		l.WithField("hash", hash).Info("transaction submitted")
		return nil

	case errors.Is(err, wallet.ErrUserRejected):
		if _, er := e.store.UpdateStatus(ctx, record.ID, tx.StatusRejected, ""); er != nil {
			e.metrics.RecordError(metrics.ErrorTypeStore)
			return fmt.Errorf("failed to record rejection of %s: %w", record.ID, er)
		}
		e.metrics.RecordExecution(target.ID.String(), string(tx.StatusRejected), time.Since(started))
		l.Info("transaction rejected by user")
		return nil

	case errors.Is(err, wallet.ErrMethodNotFound), errors.Is(err, wallet.ErrNoAccounts):
		// The signing step could not run at all; leave PENDING.
		e.metrics.RecordError(metrics.ErrorTypeWallet)
		return fmt.Errorf("signing unavailable for %s: %w", record.ID, err)

	default:
		e.fail(ctx, l, record, started, err)
		return nil
	}
}

// recordSubmission persists the SUBMITTED transition. The transfer is
// already broadcast at this point, so the write is retried in place while
// the signing slot is still held; handing the error back for redelivery
// would re-run the signing flow against a record that still reads PENDING.
func (e *Executor) recordSubmission(ctx context.Context, id uuid.UUID, hash string) error {
	var lastErr error
	for attempt := 0; attempt < submitRecordAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %w", ErrSubmissionUnrecorded, hash, ctx.Err())
			case <-time.After(time.Duration(attempt) * submitRecordBackoff):
			}
		}
		if _, lastErr = e.store.UpdateStatus(ctx, id, tx.StatusSubmitted, hash); lastErr == nil {
			return nil
		}
		e.metrics.RecordError(metrics.ErrorTypeStore)
	}
	return fmt.Errorf("%w: %s: %w", ErrSubmissionUnrecorded, hash, lastErr)
}

func (e *Executor) fail(ctx context.Context, l *logrus.Entry, record tx.Transaction, started time.Time, cause error) {
	if _, err := e.store.UpdateStatus(ctx, record.ID, tx.StatusFailed, ""); err != nil {
		e.metrics.RecordError(metrics.ErrorTypeStore)
		l.WithError(err).Error("failed to record failure")
		return
	}
	e.metrics.RecordExecution(record.Chain, string(tx.StatusFailed), time.Since(started))
	e.metrics.RecordError(metrics.ErrorTypeExecution)
	l.WithError(cause).Error("transaction failed")
}

// estimateGas is a hint only; estimation failure never blocks submission.
func (e *Executor) estimateGas(ctx context.Context, l *logrus.Entry, id chain.ID, params wallet.SendParams) uint64 {
	client, err := e.rpcs.Get(id)
	if err != nil {
		l.WithError(err).Debug("no rpc client for gas estimation")
		return 0
	}
	msg := ethereum.CallMsg{
		From:  params.From,
		To:    &params.To,
		Value: params.Value,
		Data:  params.Data,
	}
	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		l.WithError(err).Warn("gas estimation failed, proceeding without hint")
		return 0
	}
	return gas
}

func (e *Executor) settle(ctx context.Context) error {
	if e.settleDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.settleDelay):
		return nil
	}
}

func buildSendParams(from ecommon.Address, record tx.Transaction) (wallet.SendParams, error) {
	if !ecommon.IsHexAddress(record.To) {
		return wallet.SendParams{}, fmt.Errorf("invalid destination address: %s", record.To)
	}
	value := new(big.Int)
	if record.Value != "" {
		parsed, ok := new(big.Int).SetString(record.Value, 10)
		if !ok || parsed.Sign() < 0 {
			return wallet.SendParams{}, fmt.Errorf("invalid value: %s", record.Value)
		}
		value = parsed
	}
	return wallet.SendParams{
		From:  from,
		To:    ecommon.HexToAddress(record.To),
		Value: value,
		Data:  record.Data,
	}, nil
}
