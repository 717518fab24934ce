package reconciler

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omnisig/relay/internal/chain"
	"github.com/omnisig/relay/internal/chainrpc"
	"github.com/omnisig/relay/internal/metrics"
	"github.com/omnisig/relay/internal/tx"
)

const testHash = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"

type stubEndpoint struct {
	receipt *etypes.Receipt
	err     error
}

func (s *stubEndpoint) BalanceAt(context.Context, ecommon.Address, *big.Int) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEndpoint) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *stubEndpoint) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (s *stubEndpoint) TransactionByHash(context.Context, ecommon.Hash) (*etypes.Transaction, bool, error) {
	return nil, false, errors.New("not implemented")
}

func (s *stubEndpoint) TransactionReceipt(context.Context, ecommon.Hash) (*etypes.Receipt, error) {
	return s.receipt, s.err
}

type stubSource struct {
	endpoint chainrpc.Endpoint
}

func (s *stubSource) Get(id chain.ID) (*chainrpc.Client, error) {
	return chainrpc.NewWithEndpoints(id, s.endpoint), nil
}

type fakeStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]tx.Transaction
}

func newFakeStore(records ...tx.Transaction) *fakeStore {
	s := &fakeStore{records: make(map[uuid.UUID]tx.Transaction)}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id uuid.UUID) (tx.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return tx.Transaction{}, tx.ErrNotFound
	}
	return record, nil
}

func (s *fakeStore) FetchPending(_ context.Context) ([]tx.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tx.Transaction, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status tx.Status, hash string) (tx.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return tx.Transaction{}, tx.ErrNotFound
	}
	if record.Status.IsTerminal() {
		return tx.Transaction{}, tx.ErrTerminalStatus
	}
	record.Status = status
	if hash != "" {
		record.Hash = hash
	}
	s.records[id] = record
	return record, nil
}

func newReconciler(source receiptSource, recordStore recordStore, markLostAfter time.Duration) *Reconciler {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(logger, source, recordStore, metrics.NewReconcilerMetrics(), time.Second, 0, markLostAfter)
}

func submittedTransfer() tx.Transaction {
	return tx.Transaction{
		ID:        uuid.New(),
		To:        "0x1111111111111111111111111111111111111111",
		Value:     "1",
		Status:    tx.StatusSubmitted,
		Chain:     "base",
		Hash:      testHash,
		UpdatedAt: time.Now(),
	}
}

func TestTickConfirmsSuccessfulReceipt(t *testing.T) {
	record := submittedTransfer()
	recordStore := newFakeStore(record)
	source := &stubSource{endpoint: &stubEndpoint{
		receipt: &etypes.Receipt{Status: etypes.ReceiptStatusSuccessful},
	}}

	require.NoError(t, newReconciler(source, recordStore, 30*time.Minute).Tick(context.Background()))

	updated, err := recordStore.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, tx.StatusConfirmed, updated.Status)
	require.Equal(t, testHash, updated.Hash)
}

func TestTickFailsRevertedReceipt(t *testing.T) {
	record := submittedTransfer()
	recordStore := newFakeStore(record)
	source := &stubSource{endpoint: &stubEndpoint{
		receipt: &etypes.Receipt{Status: etypes.ReceiptStatusFailed},
	}}

	require.NoError(t, newReconciler(source, recordStore, 30*time.Minute).Tick(context.Background()))

	updated, err := recordStore.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, tx.StatusFailed, updated.Status)
}

func TestTickLeavesUnminedSubmitted(t *testing.T) {
	record := submittedTransfer()
	recordStore := newFakeStore(record)
	source := &stubSource{endpoint: &stubEndpoint{err: ethereum.NotFound}}

	require.NoError(t, newReconciler(source, recordStore, 30*time.Minute).Tick(context.Background()))

	updated, err := recordStore.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, tx.StatusSubmitted, updated.Status)
}

func TestTickMarksLostAfterWindow(t *testing.T) {
	record := submittedTransfer()
	record.UpdatedAt = time.Now().Add(-time.Hour)
	recordStore := newFakeStore(record)
	source := &stubSource{endpoint: &stubEndpoint{err: ethereum.NotFound}}

	require.NoError(t, newReconciler(source, recordStore, 30*time.Minute).Tick(context.Background()))

	updated, err := recordStore.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, tx.StatusFailed, updated.Status)
}

func TestTickFailsMalformedHash(t *testing.T) {
	record := submittedTransfer()
	record.Hash = "0xdeadbeef"
	recordStore := newFakeStore(record)
	source := &stubSource{endpoint: &stubEndpoint{}}

	require.NoError(t, newReconciler(source, recordStore, 30*time.Minute).Tick(context.Background()))

	updated, err := recordStore.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, tx.StatusFailed, updated.Status)
}

func TestTickIgnoresNonSubmitted(t *testing.T) {
	pending := submittedTransfer()
	pending.Status = tx.StatusPending
	approval := submittedTransfer()
	approval.Status = tx.StatusApprovalPending
	recordStore := newFakeStore(pending, approval)
	source := &stubSource{endpoint: &stubEndpoint{
		receipt: &etypes.Receipt{Status: etypes.ReceiptStatusSuccessful},
	}}

	require.NoError(t, newReconciler(source, recordStore, 30*time.Minute).Tick(context.Background()))

	for _, id := range []uuid.UUID{pending.ID, approval.ID} {
		updated, err := recordStore.Get(context.Background(), id)
		require.NoError(t, err)
		require.NotEqual(t, tx.StatusConfirmed, updated.Status)
	}
}

func TestTickToleratesReceiptLookupErrors(t *testing.T) {
	record := submittedTransfer()
	recordStore := newFakeStore(record)
	source := &stubSource{endpoint: &stubEndpoint{err: errors.New("rpc unavailable")}}

	require.NoError(t, newReconciler(source, recordStore, 30*time.Minute).Tick(context.Background()))

	updated, err := recordStore.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, tx.StatusSubmitted, updated.Status)
}
