package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"logwatch/internal/observe"
	"logwatch/internal/wire"
)

// BlockNumber is a change of the chain head.
type BlockNumber struct {
	Number *big.Int
	// Previous is nil for the first head a watch delivers.
	Previous *big.Int
}

// WatchBlockNumber calls onBlock whenever the head block number changes.
// The head seen at start is delivered only with WithEmitOnBegin.
func (w *Watcher) WatchBlockNumber(onBlock func(BlockNumber), opts ...WatchOption) func() {
	cfg := newWatchConfig(opts)

	strategy := StrategyPush
	if w.usePolling(cfg) {
		strategy = StrategyPoll
	}
	src := keySource{
		Kind:     "blockNumber",
		Watcher:  w.uid,
		Strategy: strategy.String(),
		OnBegin:  cfg.emitOnBegin,
	}
	if strategy == StrategyPoll {
		src.Interval = intervalMillis(w.pollingInterval(cfg))
	}

	listener := observe.Listener[BlockNumber]{OnData: onBlock, OnError: cfg.onError}
	key := src.fingerprint()

	return w.blocks.Observe(key, listener, func(emit observe.Emitter[BlockNumber]) func() {
		t := &headTracker{emit: emit, emitOnBegin: cfg.emitOnBegin}
		logger := w.logger.With(zap.String("watch", key[:10]), zap.String("strategy", strategy.String()))
		if strategy == StrategyPush {
			return w.track(src.Kind, strategy, w.subscribeHeads(emit.Error, logger, func(msg json.RawMessage) error {
				var header headJSON
				if err := json.Unmarshal(msg, &header); err != nil {
					return fmt.Errorf("decode pushed header: %w", err)
				}
				head, err := wire.ToInteger(header.Number)
				if err != nil {
					return err
				}
				t.observe(head)
				return nil
			}))
		}
		interval := w.pollingInterval(cfg)
		return w.track(src.Kind, strategy, w.spawn(func(stop <-chan struct{}) {
			poll(w.ctx, stop, interval, true, func(ctx context.Context) {
				head, err := w.blockNumber(ctx)
				if err != nil {
					logger.Warn("poll block number failed", zap.Error(err))
					w.reportError(emit.Error, err)
					return
				}
				t.observe(head)
			})
		}))
	})
}

type headTracker struct {
	emit        observe.Emitter[BlockNumber]
	emitOnBegin bool
	previous    *big.Int
}

func (t *headTracker) observe(head *big.Int) {
	previous := t.previous
	if previous != nil && head.Cmp(previous) == 0 {
		return
	}
	t.previous = head
	if previous == nil && !t.emitOnBegin {
		return
	}
	t.emit.Data(BlockNumber{Number: head, Previous: previous})
}

type headJSON struct {
	Number string `json:"number"`
}

// subscribeHeads opens a newHeads subscription and hands every payload to
// handle. Payloads handle rejects are reported and skipped.
func (w *Watcher) subscribeHeads(emitErr func(error), logger *zap.Logger, handle func(json.RawMessage) error) func() {
	return w.spawn(func(stop <-chan struct{}) {
		ch := make(chan json.RawMessage)
		sub, err := w.transport.Subscribe(w.ctx, ch, "newHeads")
		if err != nil {
			w.reportError(emitErr, requestError("eth_subscribe", err))
			return
		}
		defer sub.Unsubscribe()

		for {
			select {
			case <-stop:
				return
			case <-w.ctx.Done():
				return
			case err, ok := <-sub.Err():
				if !ok {
					return
				}
				logger.Warn("heads subscription failed", zap.Error(err))
				w.reportError(emitErr, &TransportError{Method: "eth_subscribe", Err: err})
				return
			case msg := <-ch:
				if err := handle(msg); err != nil {
					emitErr(err)
				}
			}
		}
	})
}

// BlockNumber returns the current head block number.
func (w *Watcher) BlockNumber(ctx context.Context) (*big.Int, error) {
	return w.blockNumber(ctx)
}
