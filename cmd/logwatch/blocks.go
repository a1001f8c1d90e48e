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
	"logwatch/internal/watch"
)

func runBlocks(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	watcher := watch.New(chainClient, watch.WithLogger(logger), watch.WithMetrics(newMetrics(ctx, cfg.MetricsAddr, logger)))
	defer watcher.Close()

	opts := []watch.WatchOption{
		watch.WithEmitOnBegin(cfg.EmitOnBegin),
		watch.WithPollingInterval(cfg.PollInterval),
		watch.WithOnError(func(err error) {
			logger.Warn("watch error", zap.Error(err))
		}),
	}
	if cfg.Poll {
		opts = append(opts, watch.WithPoll(true))
	}

	var unwatch func()
	if cfg.Headers {
		unwatch = watcher.WatchBlocks(func(block watch.Block) {
			logger.Info("block",
				zap.String("number", block.Header.Number.String()),
				zap.String("hash", block.Header.Hash().Hex()),
				zap.String("parent", block.Header.ParentHash.Hex()),
				zap.Uint64("time", block.Header.Time),
				zap.Uint64("gas_used", block.Header.GasUsed),
			)
		}, opts...)
	} else {
		unwatch = watcher.WatchBlockNumber(func(block watch.BlockNumber) {
			fields := []zap.Field{zap.String("number", block.Number.String())}
			if block.Previous != nil {
				fields = append(fields, zap.String("previous", block.Previous.String()))
			}
			logger.Info("block", fields...)
		}, opts...)
	}
	defer unwatch()

	logger.Info("blocks start",
		zap.String("rpc", cfg.RPCURL),
		zap.Stringer("transport", chainClient.Kind()),
		chainIDField(ctx, chainClient, logger),
		zap.Bool("headers", cfg.Headers),
	)

	<-ctx.Done()
	return nil
}
