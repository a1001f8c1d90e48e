package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"logwatch/internal/metrics"
	"logwatch/internal/model"
	"logwatch/internal/storage"
	"logwatch/internal/watch"
)

// LogSource fetches decoded logs for a closed block range.
type LogSource interface {
	Logs(ctx context.Context, criteria watch.Criteria, from, to *big.Int, strict bool) ([]model.Log, []error, error)
	BlockNumber(ctx context.Context) (*big.Int, error)
}

// RunConfig holds runtime settings for a backfill.
type RunConfig struct {
	Criteria     watch.Criteria
	Strict       bool
	FromBlock    uint64
	ToBlock      uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	// RequestsPerSecond caps eth_getLogs calls; zero means unlimited.
	RequestsPerSecond float64
}

// Runner backfills historical logs into storage in fixed-size block ranges.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	storage    storage.Storage
	logger     *zap.Logger
	retry      retryPolicy
	checkpoint Checkpointer
	limiter    *rate.Limiter
	metrics    *metrics.Metrics

	// seen maps a log identity to its block. Entries below the range just
	// completed are pruned, so it holds at most two ranges of logs.
	seen map[string]uint64
	// next is the first block not yet processed by an earlier Run.
	next uint64
}

// RunnerOption configures optional Runner collaborators.
type RunnerOption func(*Runner)

// WithMetrics reports backfill progress in m.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner builds a Runner with its dependencies. checkpoint may be nil.
func NewRunner(cfg RunConfig, source LogSource, storageSink storage.Storage, checkpoint Checkpointer, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:        cfg,
		source:     source,
		storage:    storageSink,
		logger:     logger,
		retry:      newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		seen:       make(map[string]uint64),
		checkpoint: checkpoint,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run backfills up to ToBlock, or the current head when ToBlock is zero,
// and returns the last block it processed. A second Run continues where the
// first one stopped.
func (r *Runner) Run(ctx context.Context) (uint64, error) {
	if r.source == nil {
		return 0, fmt.Errorf("log source is nil")
	}
	if r.storage == nil {
		return 0, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return 0, fmt.Errorf("batch size must be greater than zero")
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		head, err := r.headWithRetry(ctx)
		if err != nil {
			return 0, fmt.Errorf("get latest block: %w", err)
		}
		if !head.IsUint64() {
			return 0, fmt.Errorf("head does not fit in uint64: %s", head)
		}
		to = head.Uint64()
	}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return 0, err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if r.next > from {
		from = r.next
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return lastBefore(from), nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	last := lastBefore(from)
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.logsWithRetry(ctx, blockRange)
		if err != nil {
			return last, fmt.Errorf("fetch logs: %w", err)
		}

		records := make([]model.Log, 0, len(logs))
		for _, log := range logs {
			if r.isDuplicate(log) {
				continue
			}
			records = append(records, log)
		}

		if len(records) > 0 {
			if err := r.storage.PutLogBatch(ctx, records); err != nil {
				return last, fmt.Errorf("store logs: %w", err)
			}
		}

		r.forgetBefore(blockRange.From)

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return last, err
			}
		}
		last = blockRange.To
		r.next = last + 1
		r.metrics.SetBackfillBlock(last)

		r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return last, nil
}

func lastBefore(block uint64) uint64 {
	if block == 0 {
		return 0
	}
	return block - 1
}

func (r *Runner) logsWithRetry(ctx context.Context, blockRange BlockRange) ([]model.Log, error) {
	from, to := blockRange.Bounds()
	rangeFields := []zap.Field{zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To)}

	var logs []model.Log
	err := r.retry.do(ctx, "get logs", func(ctx context.Context) error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var (
			errs []error
			err  error
		)
		logs, errs, err = r.source.Logs(ctx, r.cfg.Criteria, from, to, r.cfg.Strict)
		if err != nil {
			return err
		}
		r.metrics.RecordDecodeErrors(len(errs))
		for _, decodeErr := range errs {
			r.logger.Warn("decode log failed", append(rangeFields, zap.Error(decodeErr))...)
		}
		return nil
	}, rangeFields...)
	return logs, err
}

func (r *Runner) headWithRetry(ctx context.Context) (*big.Int, error) {
	var head *big.Int
	err := r.retry.do(ctx, "get block number", func(ctx context.Context) error {
		var err error
		head, err = r.source.BlockNumber(ctx)
		return err
	})
	return head, err
}

func (r *Runner) isDuplicate(log model.Log) bool {
	if log.BlockHash == nil || log.LogIndex == nil || log.BlockNumber == nil {
		return false
	}
	id := fmt.Sprintf("%s:%d", log.BlockHash.Hex(), *log.LogIndex)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = log.BlockNumber.Uint64()
	return false
}

// forgetBefore drops identities of logs in blocks below block. Later ranges
// never cover them again.
func (r *Runner) forgetBefore(block uint64) {
	for id, number := range r.seen {
		if number < block {
			delete(r.seen, id)
		}
	}
}
