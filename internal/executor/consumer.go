package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/omnisig/relay/internal/tasks"
)

// Consumer adapts the executor to asynq dispatch.
type Consumer struct {
	logger   *logrus.Entry
	executor *Executor
}

func NewConsumer(logger *logrus.Logger, executor *Executor) *Consumer {
	return &Consumer{
		logger:   logger.WithField("pkg", "executor.Consumer"),
		executor: executor,
	}
}

// Handle processes one tx:execute task. A busy signing slot or a chain
// adaptation failure returns a retryable error so asynq re-delivers later;
// terminal outcomes (SUBMITTED/REJECTED/FAILED) are recorded by the executor
// and complete the task.
func (c *Consumer) Handle(ctx context.Context, t *asynq.Task) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var payload tasks.ExecutePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		c.logger.WithError(err).Error("failed to unmarshal execute payload")
		return fmt.Errorf("failed to unmarshal execute payload: %w", asynq.SkipRetry)
	}

	err := c.executor.ExecuteByID(ctx, payload.TxID)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrSigningBusy) {
		c.logger.WithField("id", payload.TxID.String()).Debug("signing slot busy, will retry")
		return err
	}

	if errors.Is(err, ErrSubmissionUnrecorded) {
		// The transfer is on chain; re-delivering would sign it again.
		c.logger.WithError(err).WithField("id", payload.TxID.String()).
			Error("dropping task after unrecorded submission")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	c.logger.WithError(err).WithField("id", payload.TxID.String()).
		Warn("execution attempt could not run, will retry")
	return err
}
