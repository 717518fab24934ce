// Package queue polls the shared transaction store, computes deltas between
// polls, and dispatches releasable transactions for execution.
package queue

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/omnisig/relay/internal/chain"
	"github.com/omnisig/relay/internal/metrics"
	"github.com/omnisig/relay/internal/resolver"
	"github.com/omnisig/relay/internal/store"
	"github.com/omnisig/relay/internal/tasks"
	"github.com/omnisig/relay/internal/tx"
)

// Dispatcher enqueues execution tasks; *asynq.Client satisfies it.
type Dispatcher interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Delta is what changed between two polls.
type Delta struct {
	Arrivals []tx.Transaction
	Terminal []tx.Transaction
}

type Client struct {
	logger     *logrus.Entry
	reader     store.Reader
	dispatcher Dispatcher
	resolver   *resolver.Resolver
	metrics    *metrics.WorkerMetrics
	statsd     statsd.ClientInterface

	interval     time.Duration
	jitter       time.Duration
	historyLimit int

	prev    map[uuid.UUID]tx.Status
	history []tx.Transaction
}

func New(
	logger *logrus.Logger,
	reader store.Reader,
	dispatcher Dispatcher,
	releaser *resolver.Resolver,
	workerMetrics *metrics.WorkerMetrics,
	statsdClient statsd.ClientInterface,
	interval, jitter time.Duration,
	historyLimit int,
) *Client {
	return &Client{
		logger:       logger.WithField("pkg", "queue"),
		reader:       reader,
		dispatcher:   dispatcher,
		resolver:     releaser,
		metrics:      workerMetrics,
		statsd:       statsdClient,
		interval:     interval,
		jitter:       jitter,
		historyLimit: historyLimit,
		prev:         make(map[uuid.UUID]tx.Status),
	}
}

// Run polls until the context is cancelled. Each period is stretched by a
// random jitter so multiple instances never synchronize their load spikes
// against the store.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.nextPeriod()):
			if err := c.Tick(ctx); err != nil {
				// Transient store issues never interrupt the loop.
				c.metrics.RecordError(metrics.ErrorTypeStore)
				c.logger.WithError(err).Error("queue poll failed, will retry")
			}
		}
	}
}

func (c *Client) nextPeriod() time.Duration {
	if c.jitter <= 0 {
		return c.interval
	}
	return c.interval + time.Duration(rand.Int63n(int64(c.jitter)))
}

// Tick runs one poll cycle: fetch, delta, one dependency release, dispatch.
func (c *Client) Tick(ctx context.Context) error {
	snapshot, err := c.reader.FetchPending(ctx)
	if err != nil {
		return err
	}

	delta := c.computeDelta(snapshot)
	c.noteArrivals(delta.Arrivals)
	c.archive(delta.Terminal)

	released, ok, err := c.resolver.ReleaseOne(ctx, snapshot)
	if err != nil {
		c.logger.WithError(err).Error("dependency release failed")
	} else if ok {
		// Reflect the release in this cycle's dispatch set.
		for i := range snapshot {
			if snapshot[i].ID == released.ID {
				snapshot[i].Status = released.Status
			}
		}
	}

	c.dispatch(ctx, snapshot)
	c.remember(snapshot)
	return nil
}

func (c *Client) computeDelta(snapshot []tx.Transaction) Delta {
	var delta Delta
	for _, record := range snapshot {
		prevStatus, seen := c.prev[record.ID]
		if !seen {
			delta.Arrivals = append(delta.Arrivals, record)
			continue
		}
		if !prevStatus.IsTerminal() && record.Status.IsTerminal() {
			delta.Terminal = append(delta.Terminal, record)
		}
	}
	return delta
}

func (c *Client) noteArrivals(arrivals []tx.Transaction) {
	if len(arrivals) == 0 {
		return
	}
	c.metrics.RecordArrivals(len(arrivals))
	if c.statsd != nil {
		_ = c.statsd.Count("relay.queue.arrivals", int64(len(arrivals)), nil, 1)
	}
	for _, record := range arrivals {
		// Pre-check the chain so a bad target surfaces before execution.
		target, err := chain.ResolveForTransaction(record.Chain, record.To)
		l := c.logger.WithFields(logrus.Fields{
			"id":     record.ID.String(),
			"status": record.Status,
		})
		if err != nil {
			l.WithError(err).Warn("new transaction targets unsupported chain")
			continue
		}
		l.WithField("chain", target.ID.String()).Info("new transaction queued")
	}
}

// archive moves freshly-terminal records into the bounded history ring.
func (c *Client) archive(terminal []tx.Transaction) {
	if len(terminal) == 0 {
		return
	}
	c.history = append(c.history, terminal...)
	if c.historyLimit > 0 && len(c.history) > c.historyLimit {
		c.history = c.history[len(c.history)-c.historyLimit:]
	}
	for _, record := range terminal {
		c.logger.WithFields(logrus.Fields{
			"id":     record.ID.String(),
			"status": record.Status,
		}).Info("transaction reached terminal status")
	}
}

// History returns the retained terminal records, newest last.
func (c *Client) History() []tx.Transaction {
	out := make([]tx.Transaction, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Client) dispatch(ctx context.Context, snapshot []tx.Transaction) {
	for _, record := range snapshot {
		if record.Status != tx.StatusPending {
			continue
		}
		task, err := tasks.NewExecuteTask(record.ID)
		if err != nil {
			c.logger.WithError(err).Error("failed to build execute task")
			continue
		}
		_, err = c.dispatcher.EnqueueContext(ctx, task)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				// Already dispatched and not yet finished.
				continue
			}
			c.logger.WithError(err).WithField("id", record.ID.String()).
				Error("failed to dispatch transaction")
		}
	}
}

func (c *Client) remember(snapshot []tx.Transaction) {
	next := make(map[uuid.UUID]tx.Status, len(snapshot))
	for _, record := range snapshot {
		next[record.ID] = record.Status
	}
	c.prev = next
}
