package resolver

import (
	"context"
	"testing"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/omnisig/relay/internal/metrics"
	"github.com/omnisig/relay/internal/tx"
)

type fakeWriter struct {
	updates []update
}

type update struct {
	id     uuid.UUID
	status tx.Status
}

func (f *fakeWriter) UpdateStatus(_ context.Context, id uuid.UUID, status tx.Status, _ string) (tx.Transaction, error) {
	f.updates = append(f.updates, update{id: id, status: status})
	return tx.Transaction{ID: id, Status: status}, nil
}

func newResolver(writer *fakeWriter) *Resolver {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(logger, writer, metrics.NewWorkerMetrics())
}

// approveCalldata builds ERC-20 approve(spender, amount) calldata.
func approveCalldata(spender ecommon.Address) []byte {
	data := make([]byte, 4+32+32)
	copy(data, approveSelector)
	copy(data[4+12:4+32], spender.Bytes())
	return data
}

func TestReleaseByApprovalID(t *testing.T) {
	approvalID := uuid.New()
	token := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	dependent := tx.Transaction{
		ID:     uuid.New(),
		To:     token,
		Status: tx.StatusApprovalPending,
		Metadata: tx.Metadata{
			ApprovalID: &approvalID,
		},
	}
	snapshot := []tx.Transaction{
		{
			ID:     approvalID,
			To:     token,
			Status: tx.StatusConfirmed,
			Data:   approveCalldata(ecommon.HexToAddress("0x2222222222222222222222222222222222222222")),
		},
		dependent,
	}

	writer := &fakeWriter{}
	released, ok, err := newResolver(writer).ReleaseOne(context.Background(), snapshot)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, dependent.ID, released.ID)
	require.Equal(t, tx.StatusPending, released.Status)
	require.Len(t, writer.updates, 1)
	require.Equal(t, update{id: dependent.ID, status: tx.StatusPending}, writer.updates[0])
}

func TestNoReleaseBeforeApprovalConfirms(t *testing.T) {
	approvalID := uuid.New()
	token := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	snapshot := []tx.Transaction{
		{
			ID:     approvalID,
			To:     token,
			Status: tx.StatusSubmitted, // not yet mined
			Data:   approveCalldata(ecommon.HexToAddress("0x2222222222222222222222222222222222222222")),
		},
		{
			ID:     uuid.New(),
			To:     token,
			Status: tx.StatusApprovalPending,
			Metadata: tx.Metadata{
				ApprovalID: &approvalID,
			},
		},
	}

	writer := &fakeWriter{}
	_, ok, err := newResolver(writer).ReleaseOne(context.Background(), snapshot)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, writer.updates)
}

func TestReleaseOnePerCycle(t *testing.T) {
	token := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	approvalA := uuid.New()
	approvalB := uuid.New()
	snapshot := []tx.Transaction{
		{
			ID:     approvalA,
			To:     token,
			Status: tx.StatusConfirmed,
			Data:   approveCalldata(ecommon.HexToAddress("0x2222222222222222222222222222222222222222")),
		},
		{
			ID:     approvalB,
			To:     token,
			Status: tx.StatusConfirmed,
			Data:   approveCalldata(ecommon.HexToAddress("0x3333333333333333333333333333333333333333")),
		},
		{
			ID:       uuid.New(),
			To:       token,
			Status:   tx.StatusApprovalPending,
			Metadata: tx.Metadata{ApprovalID: &approvalA},
		},
		{
			ID:       uuid.New(),
			To:       token,
			Status:   tx.StatusApprovalPending,
			Metadata: tx.Metadata{ApprovalID: &approvalB},
		},
	}

	writer := &fakeWriter{}
	resolver := newResolver(writer)

	// One release per pass, never a flood of signature prompts.
	released, ok, err := resolver.ReleaseOne(context.Background(), snapshot)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, writer.updates, 1)

	// Next cycle sees the first release reflected in the store.
	for i := range snapshot {
		if snapshot[i].ID == released.ID {
			snapshot[i].Status = tx.StatusPending
		}
	}

	_, ok, err = resolver.ReleaseOne(context.Background(), snapshot)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, writer.updates, 2)
	require.NotEqual(t, writer.updates[0].id, writer.updates[1].id)
}

func TestReleaseByDestinationFallback(t *testing.T) {
	token := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	snapshot := []tx.Transaction{
		{
			ID:     uuid.New(),
			To:     token,
			Status: tx.StatusConfirmed,
			Data:   approveCalldata(ecommon.HexToAddress("0x2222222222222222222222222222222222222222")),
		},
		{
			ID:     uuid.New(),
			To:     token, // same token contract, no explicit linkage
			Status: tx.StatusApprovalPending,
		},
	}

	writer := &fakeWriter{}
	_, ok, err := newResolver(writer).ReleaseOne(context.Background(), snapshot)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReleaseByCalldataTokenReference(t *testing.T) {
	token := ecommon.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	router := "0x9999999999999999999999999999999999999999"

	// Dependent call goes to a router, but embeds the approved token as an
	// ABI word in its calldata.
	swapData := make([]byte, 4+32+32)
	copy(swapData, []byte{0x12, 0x34, 0x56, 0x78})
	copy(swapData[4+32+12:], token.Bytes())

	snapshot := []tx.Transaction{
		{
			ID:     uuid.New(),
			To:     token.Hex(),
			Status: tx.StatusConfirmed,
			Data:   approveCalldata(ecommon.HexToAddress(router)),
		},
		{
			ID:     uuid.New(),
			To:     router,
			Status: tx.StatusApprovalPending,
			Data:   swapData,
		},
	}

	writer := &fakeWriter{}
	_, ok, err := newResolver(writer).ReleaseOne(context.Background(), snapshot)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUnmatchedDependentStaysBlocked(t *testing.T) {
	otherApproval := uuid.New()
	snapshot := []tx.Transaction{
		{
			ID:     uuid.New(),
			To:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Status: tx.StatusConfirmed,
			Data:   approveCalldata(ecommon.HexToAddress("0x2222222222222222222222222222222222222222")),
		},
		{
			ID:       uuid.New(),
			To:       "0x4444444444444444444444444444444444444444",
			Status:   tx.StatusApprovalPending,
			Metadata: tx.Metadata{ApprovalID: &otherApproval},
		},
	}

	writer := &fakeWriter{}
	_, ok, err := newResolver(writer).ReleaseOne(context.Background(), snapshot)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, writer.updates)
}
