// Package resolver releases transactions blocked on a prior token approval
// once that approval confirms on chain.
package resolver

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/omnisig/relay/internal/metrics"
	"github.com/omnisig/relay/internal/store"
	"github.com/omnisig/relay/internal/tx"
)

// ERC-20 approve selector; a confirmed transaction carrying it is treated
// as an approval even without explicit metadata.
var approveSelector = []byte{0x09, 0x5e, 0xa7, 0xb3}

type Resolver struct {
	logger  *logrus.Entry
	writer  store.Writer
	metrics *metrics.WorkerMetrics
}

func New(logger *logrus.Logger, writer store.Writer, workerMetrics *metrics.WorkerMetrics) *Resolver {
	return &Resolver{
		logger:  logger.WithField("pkg", "resolver"),
		writer:  writer,
		metrics: workerMetrics,
	}
}

// ReleaseOne scans the current snapshot for a confirmed approval with a
// blocked dependent and releases that dependent to PENDING. At most one
// transaction is released per call so a burst of confirmations cannot flood
// the wallet with signature prompts. Returns the released record, or ok
// false when nothing was releasable.
func (r *Resolver) ReleaseOne(ctx context.Context, snapshot []tx.Transaction) (tx.Transaction, bool, error) {
	var approvals []tx.Transaction
	var blocked []tx.Transaction
	for _, record := range snapshot {
		switch {
		case record.Status == tx.StatusConfirmed && isApproval(record):
			approvals = append(approvals, record)
		case record.Status == tx.StatusApprovalPending:
			blocked = append(blocked, record)
		}
	}
	if len(approvals) == 0 || len(blocked) == 0 {
		return tx.Transaction{}, false, nil
	}

	for _, approval := range approvals {
		for _, dependent := range blocked {
			if !matches(approval, dependent) {
				continue
			}

			released, err := r.writer.UpdateStatus(ctx, dependent.ID, tx.StatusPending, "")
			if err != nil {
				return tx.Transaction{}, false, fmt.Errorf(
					"failed to release %s after approval %s: %w",
					dependent.ID, approval.ID, err,
				)
			}

			r.metrics.RecordRelease()
			r.logger.WithFields(logrus.Fields{
				"id":       dependent.ID.String(),
				"approval": approval.ID.String(),
			}).Info("released approval-blocked transaction")
			return released, true, nil
		}
	}
	return tx.Transaction{}, false, nil
}

func isApproval(record tx.Transaction) bool {
	if len(record.Data) >= 4 && bytes.Equal(record.Data[:4], approveSelector) {
		return true
	}
	return strings.Contains(strings.ToLower(record.Metadata.Description), "approv")
}

// matches links a blocked dependent to its approval. The explicit id
// reference attached at creation time wins; destination-contract and
// calldata matching remain only for records queued without linkage.
func matches(approval, dependent tx.Transaction) bool {
	if dependent.Metadata.ApprovalID != nil {
		return *dependent.Metadata.ApprovalID == approval.ID
	}
	if strings.EqualFold(approval.To, dependent.To) {
		return true
	}
	return calldataReferencesToken(dependent.Data, approval.To)
}

// calldataReferencesToken reports whether the approval's token contract
// appears as an ABI word in the dependent's calldata.
func calldataReferencesToken(data []byte, token string) bool {
	if len(data) < 4+32 || !ecommon.IsHexAddress(token) {
		return false
	}
	addr := ecommon.HexToAddress(token)
	for offset := 4; offset+32 <= len(data); offset += 32 {
		word := data[offset : offset+32]
		if !bytes.Equal(word[:12], make([]byte, 12)) {
			continue
		}
		if bytes.Equal(word[12:], addr.Bytes()) {
			return true
		}
	}
	return false
}
