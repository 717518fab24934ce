// Package reconciler polls chain RPC for receipts of submitted transactions
// and writes the terminal outcome back to the store.
package reconciler

import (
	"context"
	"math/rand"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/omnisig/relay/internal/chain"
	"github.com/omnisig/relay/internal/chainrpc"
	"github.com/omnisig/relay/internal/metrics"
	"github.com/omnisig/relay/internal/store"
	"github.com/omnisig/relay/internal/tx"
)

// receiptSource is the read-only chain access the reconciler needs.
type receiptSource interface {
	Get(id chain.ID) (*chainrpc.Client, error)
}

type recordStore interface {
	store.Reader
	store.Writer
}

type Reconciler struct {
	logger  *logrus.Entry
	rpcs    receiptSource
	store   recordStore
	metrics *metrics.ReconcilerMetrics

	interval time.Duration
	jitter   time.Duration
	// markLostAfter bounds how long a submitted transaction may sit with no
	// receipt before it is marked FAILED and surfaced for manual follow-up.
	markLostAfter time.Duration
}

func New(
	logger *logrus.Logger,
	rpcs receiptSource,
	recordStore recordStore,
	reconcilerMetrics *metrics.ReconcilerMetrics,
	interval, jitter, markLostAfter time.Duration,
) *Reconciler {
	return &Reconciler{
		logger:        logger.WithField("pkg", "reconciler"),
		rpcs:          rpcs,
		store:         recordStore,
		metrics:       reconcilerMetrics,
		interval:      interval,
		jitter:        jitter,
		markLostAfter: markLostAfter,
	}
}

// Run polls until the context is cancelled, with jittered periods so the
// reconciler and queue client never hammer the store in lockstep.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.nextPeriod()):
			if err := r.Tick(ctx); err != nil {
				r.logger.WithError(err).Error("reconciliation failed, will retry")
			}
		}
	}
}

func (r *Reconciler) nextPeriod() time.Duration {
	if r.jitter <= 0 {
		return r.interval
	}
	return r.interval + time.Duration(rand.Int63n(int64(r.jitter)))
}

// Tick runs one reconciliation pass over every SUBMITTED transaction.
func (r *Reconciler) Tick(ctx context.Context) error {
	started := time.Now()

	snapshot, err := r.store.FetchPending(ctx)
	if err != nil {
		return err
	}

	statusCounts := make(map[chain.ID]map[tx.Status]int)
	checked := 0
	for _, record := range snapshot {
		if record.Chain != "" {
			id := chain.ID(record.Chain)
			if statusCounts[id] == nil {
				statusCounts[id] = make(map[tx.Status]int)
			}
			statusCounts[id][record.Status]++
		}
		if record.Status != tx.StatusSubmitted {
			continue
		}
		checked++
		r.reconcile(ctx, record)
	}

	for id, counts := range statusCounts {
		for status, count := range counts {
			r.metrics.UpdateOnchainStatus(id.String(), string(status), count)
		}
	}
	r.metrics.RecordProcessingIteration(time.Since(started), checked)
	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, record tx.Transaction) {
	l := r.logger.WithFields(logrus.Fields{
		"id":   record.ID.String(),
		"hash": record.Hash,
	})

	if !record.Submitted() {
		// SUBMITTED without a usable hash can never produce a receipt.
		l.Warn("submitted transaction has malformed hash, marking failed")
		r.update(ctx, l, record, tx.StatusFailed)
		return
	}

	target, err := chain.ResolveForTransaction(record.Chain, record.To)
	if err != nil {
		l.WithError(err).Error("failed to resolve chain for submitted transaction")
		return
	}
	client, err := r.rpcs.Get(target.ID)
	if err != nil {
		l.WithError(err).Error("no rpc client for chain")
		return
	}

	receipt, err := client.TransactionReceipt(ctx, ecommon.HexToHash(record.Hash))
	if err != nil {
		l.WithError(err).Warn("receipt lookup failed, will retry")
		return
	}

	switch {
	case receipt == nil:
		if r.markLostAfter > 0 && time.Since(record.UpdatedAt) > r.markLostAfter {
			l.WithField("age", time.Since(record.UpdatedAt).String()).
				Warn("no receipt within lost window, marking failed")
			r.metrics.RecordLostTransaction(target.ID.String())
			r.update(ctx, l, record, tx.StatusFailed)
		}
		// Otherwise still unmined; retry next cycle.

	case receipt.Status == etypes.ReceiptStatusSuccessful:
		l.Info("transaction confirmed")
		r.update(ctx, l, record, tx.StatusConfirmed)

	default:
		l.Warn("transaction reverted on chain")
		r.update(ctx, l, record, tx.StatusFailed)
	}
}

func (r *Reconciler) update(ctx context.Context, l *logrus.Entry, record tx.Transaction, status tx.Status) {
	if _, err := r.store.UpdateStatus(ctx, record.ID, status, ""); err != nil {
		l.WithError(err).Error("failed to record reconciled status")
	}
}
