package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/omnisig/relay/internal/chain"
	"github.com/omnisig/relay/internal/chainrpc"
	"github.com/omnisig/relay/internal/graceful"
	"github.com/omnisig/relay/internal/health"
	"github.com/omnisig/relay/internal/metrics"
	"github.com/omnisig/relay/internal/reconciler"
	"github.com/omnisig/relay/internal/store"
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

	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceReconciler, metrics.ServiceHTTP}, logger)
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

	chains := make([]chain.ID, 0, len(cfg.Chains))
	for _, slug := range cfg.Chains {
		chains = append(chains, chain.ID(slug))
	}
	rpcs, err := chainrpc.NewPool(ctx, chains)
	if err != nil {
		logger.Fatalf("failed to initialize chain RPC pool: %v", err)
	}

	healthServer := health.New(cfg.HealthPort)
	go func() {
		if er := healthServer.Start(ctx, logger); er != nil {
			logger.Errorf("health server failed: %v", er)
		}
	}()

	worker := reconciler.New(
		logger,
		rpcs,
		txStore,
		metrics.NewReconcilerMetrics(),
		cfg.Interval,
		cfg.Jitter,
		cfg.MarkLostAfter,
	)
	if err = worker.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalf("failed to run reconciler: %v", err)
	}
}
