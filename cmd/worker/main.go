package main

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/omnisig/relay/internal/adapter"
	"github.com/omnisig/relay/internal/chain"
	"github.com/omnisig/relay/internal/chainrpc"
	"github.com/omnisig/relay/internal/executor"
	"github.com/omnisig/relay/internal/graceful"
	"github.com/omnisig/relay/internal/health"
	"github.com/omnisig/relay/internal/metrics"
	"github.com/omnisig/relay/internal/queue"
	"github.com/omnisig/relay/internal/resolver"
	"github.com/omnisig/relay/internal/store"
	"github.com/omnisig/relay/internal/tasks"
	"github.com/omnisig/relay/internal/wallet"
)

func main() {
	ctx, cancel := graceful.NotifyContext(context.Background())
	defer cancel()

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := newConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	sdClient, err := statsd.New(cfg.DataDog.Host + ":" + cfg.DataDog.Port)
	if err != nil {
		logger.Fatalf("failed to initialize StatsD client: %v", err)
	}

	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceWorker, metrics.ServiceHTTP}, logger)
	defer func() {
		if metricsServer != nil {
			if er := metricsServer.Stop(ctx); er != nil {
				logger.Errorf("failed to stop metrics server: %v", er)
			}
		}
	}()

	pgPool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to initialize Postgres pool: %v", err)
	}

	txStore, err := store.NewRepo(ctx, logger, pgPool)
	if err != nil {
		logger.Fatalf("failed to initialize transaction store: %v", err)
	}

	provider, err := wallet.NewRpcProvider(ctx, cfg.WalletBridge.URL)
	if err != nil {
		logger.Fatalf("failed to connect to wallet bridge: %v", err)
	}
	defer provider.Close()

	chains := make([]chain.ID, 0, len(cfg.Chains))
	for _, slug := range cfg.Chains {
		chains = append(chains, chain.ID(slug))
	}
	rpcs, err := chainrpc.NewPool(ctx, chains)
	if err != nil {
		logger.Fatalf("failed to initialize chain RPC pool: %v", err)
	}

	redisOptions := asynq.RedisClientOpt{
		Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := asynq.NewClient(redisOptions)
	defer client.Close()

	// Signing is single-flight system-wide; the queue runs one task at a
	// time and the executor holds its own lock besides.
	consumerServer := asynq.NewServer(
		redisOptions,
		asynq.Config{
			Logger:      logger,
			Concurrency: 1,
			Queues: map[string]int{
				tasks.QueueName: 1,
			},
		},
	)

	workerMetrics := metrics.NewWorkerMetrics()
	exec := executor.New(
		logger,
		provider,
		adapter.New(logger),
		rpcs,
		txStore,
		cfg.SettleDelay,
		workerMetrics,
	)
	execConsumer := executor.NewConsumer(logger, exec)

	queueClient := queue.New(
		logger,
		txStore,
		client,
		resolver.New(logger, txStore, workerMetrics),
		workerMetrics,
		sdClient,
		cfg.QueueInterval,
		cfg.QueueJitter,
		cfg.HistoryLimit,
	)
	go func() {
		if er := queueClient.Run(ctx); er != nil && ctx.Err() == nil {
			logger.Errorf("queue client stopped: %v", er)
		}
	}()

	go pruneLoop(ctx, logger, txStore, cfg.Retention)

	healthServer := health.New(cfg.HealthPort)
	go func() {
		if er := healthServer.Start(ctx, logger); er != nil {
			logger.Errorf("health server failed: %v", er)
		}
	}()

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeExecuteTx, execConsumer.Handle)
	if err = consumerServer.Run(mux); err != nil {
		logger.Fatalf("failed to run consumer: %v", err)
	}
}

// pruneLoop clears terminal records past the retention window.
func pruneLoop(ctx context.Context, logger *logrus.Logger, txStore *store.Repo, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := txStore.Prune(ctx, retention)
			if err != nil {
				logger.Errorf("failed to prune transactions: %v", err)
				continue
			}
			if removed > 0 {
				logger.Infof("pruned %d terminal transactions", removed)
			}
		}
	}
}
