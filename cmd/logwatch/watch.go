package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"logwatch/internal/chain"
	"logwatch/internal/config"
	"logwatch/internal/decode"
	"logwatch/internal/indexer"
	"logwatch/internal/model"
	"logwatch/internal/storage"
	"logwatch/internal/storage/postgres"
	"logwatch/internal/watch"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	shape, err := loadShape(cfg.ABI, cfg.Event)
	if err != nil {
		return err
	}
	args, err := decode.CoerceArgs(shape, cfg.Args)
	if err != nil {
		return err
	}
	criteria := watch.Criteria{Addresses: addresses, Event: shape, Args: args}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	var store *postgres.Store
	if cfg.PostgresDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return fmt.Errorf("either out or pg-dsn is required")
	}

	m := newMetrics(ctx, cfg.MetricsAddr, logger)

	watcher := watch.New(chainClient, watch.WithLogger(logger), watch.WithMetrics(m))
	defer watcher.Close()

	var runner *indexer.Runner
	if cfg.FromBlock > 0 {
		runner = indexer.NewRunner(indexer.RunConfig{
			Criteria:          criteria,
			Strict:            cfg.Strict,
			FromBlock:         cfg.FromBlock,
			BatchSize:         cfg.BatchSize,
			MaxRetries:        cfg.MaxRetries,
			RetryBackoff:      cfg.RetryBackoff,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, watcher, sinks, newCheckpointer(cfg, store), logger, indexer.WithMetrics(m))

		last, err := runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		logger.Info("backfill complete", zap.Uint64("last_block", last))
	}

	opts := []watch.WatchOption{
		watch.WithStrict(cfg.Strict),
		watch.WithBatch(cfg.Batch),
		watch.WithPollingInterval(cfg.PollInterval),
		watch.WithOnError(func(err error) {
			logger.Warn("watch error", zap.Error(err))
		}),
	}
	if cfg.Poll {
		opts = append(opts, watch.WithPoll(true))
	}

	unwatch, err := watcher.WatchContractEvent(criteria, func(logs []model.Log) {
		if err := sinks.PutLogBatch(ctx, logs); err != nil {
			logger.Error("store logs failed", zap.Error(err), zap.Int("logs", len(logs)))
			return
		}
		logger.Debug("logs stored", zap.Int("logs", len(logs)))
	}, opts...)
	if err != nil {
		return err
	}
	defer unwatch()

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.Stringer("transport", chainClient.Kind()),
		chainIDField(ctx, chainClient, logger),
		zap.Int("addresses", len(addresses)),
		zap.String("event", cfg.Event),
		zap.Bool("strict", cfg.Strict),
		zap.Bool("batch", cfg.Batch),
		zap.String("out", cfg.Out),
	)

	// Blocks mined between the end of the backfill and the first live poll.
	if runner != nil {
		if _, err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("catch-up backfill failed", zap.Error(err))
		}
	}

	<-ctx.Done()
	logger.Info("watch stop")
	return nil
}

func newCheckpointer(cfg config.Config, store *postgres.Store) indexer.Checkpointer {
	if !cfg.CheckpointEnabled {
		return nil
	}
	if store != nil {
		return store.Checkpoint("backfill")
	}
	return indexer.NewCheckpointStore(cfg.Checkpoint, true)
}

// chainIDField reports the chain id for start-up logs. A failed lookup is
// logged and does not stop the command.
func chainIDField(ctx context.Context, client *chain.Client, logger *zap.Logger) zap.Field {
	id, err := client.ChainID(ctx)
	if err != nil {
		logger.Warn("get chain id failed", zap.Error(err))
		return zap.Skip()
	}
	return zap.String("chain_id", id.String())
}
