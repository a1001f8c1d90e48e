package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"logwatch/internal/metrics"
)

func main() {
	root := &cobra.Command{
		Use:          "logwatch",
		Short:        "Watch and decode EVM event logs",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch contract events, optionally backfilling history first",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "RPC URL (http(s) polls, ws(s) or IPC subscribes)")
	watchCmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated), empty means any")
	watchCmd.Flags().String("abi", "", "JSON ABI file, defaults to the ERC-20 events")
	watchCmd.Flags().String("event", "", "event name to decode, empty for generic logs")
	watchCmd.Flags().String("args", "", "indexed argument filter (comma-separated name=value, | separates alternatives)")
	watchCmd.Flags().Bool("strict", false, "drop logs that do not fit the event")
	watchCmd.Flags().Bool("batch", true, "deliver one batch per poll instead of one log at a time")
	watchCmd.Flags().Bool("poll", false, "poll even when the RPC supports subscriptions")
	watchCmd.Flags().Duration("poll-interval", 4*time.Second, "polling interval")
	watchCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path, empty to disable")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN, empty to disable")
	watchCmd.Flags().Uint64("from", 0, "backfill from this block (inclusive) before watching, 0 disables")
	watchCmd.Flags().Uint64("batch-size", 2000, "blocks per backfill request")
	watchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "backfill checkpoint file path")
	watchCmd.Flags().Bool("checkpoint-enabled", true, "enable backfill checkpointing")
	watchCmd.Flags().Int("max-retries", 5, "maximum backfill retry attempts")
	watchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial backfill retry backoff")
	watchCmd.Flags().Float64("requests-per-second", 0, "backfill request rate limit, 0 means unlimited")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, empty to disable")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	blocksCmd := &cobra.Command{
		Use:   "blocks",
		Short: "Watch the head block number or header",
		RunE:  runBlocks,
	}

	blocksCmd.Flags().String("rpc", "", "RPC URL")
	blocksCmd.Flags().Bool("poll", false, "poll even when the RPC supports subscriptions")
	blocksCmd.Flags().Duration("poll-interval", 4*time.Second, "polling interval")
	blocksCmd.Flags().Bool("emit-on-begin", false, "report the head seen at start")
	blocksCmd.Flags().Bool("headers", false, "report full block headers instead of numbers")
	blocksCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, empty to disable")
	blocksCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(blocksCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a JSONL file of raw RPC logs",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/decoded_logs.jsonl", "output decoded logs JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("abi", "", "JSON ABI file, defaults to the ERC-20 events")
	decodeCmd.Flags().String("event", "", "event name to decode, empty for generic logs")
	decodeCmd.Flags().Bool("strict", false, "drop logs that do not fit the event")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// newMetrics starts the metrics endpoint when addr is set. A nil result
// disables recording.
func newMetrics(ctx context.Context, addr string, logger *zap.Logger) *metrics.Metrics {
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "logwatch")
	go metrics.Serve(ctx, addr, reg, logger)
	return m
}
