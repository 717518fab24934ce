// Package tasks defines the asynq task types exchanged between the queue
// client and the execution consumer.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueName is the single execution queue; signing is serialized, so
	// the queue runs with concurrency 1.
	QueueName = "relay"

	// TypeExecuteTx requests execution of one pending transaction.
	TypeExecuteTx = "tx:execute"
)

// ExecutePayload identifies the transaction to execute.
type ExecutePayload struct {
	TxID uuid.UUID `json:"tx_id"`
}

// NewExecuteTask builds the dispatch task. TaskID is the transaction id, so
// re-enqueueing the same transaction while one dispatch is in flight is a
// no-op rather than a duplicate signature prompt.
func NewExecuteTask(txID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ExecutePayload{TxID: txID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execute payload: %w", err)
	}
	return asynq.NewTask(
		TypeExecuteTx,
		payload,
		asynq.Queue(QueueName),
		asynq.TaskID(txID.String()),
	), nil
}
