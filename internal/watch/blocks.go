package watch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"logwatch/internal/observe"
)

// Block is a new chain head header.
type Block struct {
	Header *types.Header
	// Previous is nil for the first header a watch delivers.
	Previous *types.Header
}

// WatchBlocks calls onBlock with the header of every new head. Heads are
// polled with eth_getBlockByNumber("latest") or pushed by a newHeads
// subscription. A header at a lower height than the last one delivered, or
// with the same hash, is skipped.
func (w *Watcher) WatchBlocks(onBlock func(Block), opts ...WatchOption) func() {
	cfg := newWatchConfig(opts)

	strategy := StrategyPush
	if w.usePolling(cfg) {
		strategy = StrategyPoll
	}
	src := keySource{
		Kind:     "blocks",
		Watcher:  w.uid,
		Strategy: strategy.String(),
		OnBegin:  cfg.emitOnBegin,
	}
	if strategy == StrategyPoll {
		src.Interval = intervalMillis(w.pollingInterval(cfg))
	}

	listener := observe.Listener[Block]{OnData: onBlock, OnError: cfg.onError}
	key := src.fingerprint()

	return w.headers.Observe(key, listener, func(emit observe.Emitter[Block]) func() {
		t := &headerTracker{emit: emit, emitOnBegin: cfg.emitOnBegin}
		logger := w.logger.With(zap.String("watch", key[:10]), zap.String("strategy", strategy.String()))
		if strategy == StrategyPush {
			return w.track(src.Kind, strategy, w.subscribeHeads(emit.Error, logger, func(msg json.RawMessage) error {
				header := new(types.Header)
				if err := json.Unmarshal(msg, header); err != nil {
					return fmt.Errorf("decode pushed header: %w", err)
				}
				t.observe(header)
				return nil
			}))
		}
		interval := w.pollingInterval(cfg)
		return w.track(src.Kind, strategy, w.spawn(func(stop <-chan struct{}) {
			poll(w.ctx, stop, interval, true, func(ctx context.Context) {
				header, err := w.latestHeader(ctx)
				if err != nil {
					logger.Warn("poll latest block failed", zap.Error(err))
					w.reportError(emit.Error, err)
					return
				}
				t.observe(header)
			})
		}))
	})
}

type headerTracker struct {
	emit        observe.Emitter[Block]
	emitOnBegin bool
	previous    *types.Header
}

func (t *headerTracker) observe(header *types.Header) {
	previous := t.previous
	if previous != nil {
		if header.Hash() == previous.Hash() || header.Number.Cmp(previous.Number) < 0 {
			return
		}
	}
	t.previous = header
	if previous == nil && !t.emitOnBegin {
		return
	}
	t.emit.Data(Block{Header: header, Previous: previous})
}
