package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"logwatch/internal/decode"
	"logwatch/internal/model"
	"logwatch/internal/observe"
)

// Criteria selects the logs a watch delivers. Empty Addresses matches every
// contract; a nil Event delivers generic, undecoded logs.
type Criteria struct {
	Addresses []common.Address
	Event     *decode.EventShape
	Args      map[string]interface{}
}

func (c Criteria) query() (filterQuery, error) {
	topics, err := decode.EncodeTopics(c.Event, c.Args)
	if err != nil {
		return filterQuery{}, err
	}
	return filterQuery{Addresses: c.Addresses, Topics: topics}, nil
}

// Strategy is how a watch obtains new logs.
type Strategy int

const (
	// StrategyPoll installs a server side filter and falls back to
	// re-scanning block ranges when the node has no filter support.
	StrategyPoll Strategy = iota
	// StrategyPush uses an eth_subscribe logs subscription.
	StrategyPush
)

func (s Strategy) String() string {
	if s == StrategyPush {
		return "push"
	}
	return "poll"
}

// WatchContractEvent delivers matching logs to onLogs until the returned
// function is called. Identical watches on the same Watcher share one
// underlying filter or subscription.
func (w *Watcher) WatchContractEvent(criteria Criteria, onLogs func([]model.Log), opts ...WatchOption) (func(), error) {
	cfg := newWatchConfig(opts)
	q, err := criteria.query()
	if err != nil {
		return nil, err
	}

	strategy := StrategyPush
	if w.usePolling(cfg) {
		strategy = StrategyPoll
	}

	src := keySource{
		Kind:      "contractEvent",
		Watcher:   w.uid,
		Addresses: normalizeAddresses(criteria.Addresses),
		Topics:    normalizeTopics(q.Topics),
		Strategy:  strategy.String(),
		Strict:    cfg.strict,
	}
	if criteria.Event != nil {
		src.Event = criteria.Event.Descriptor()
	}
	if strategy == StrategyPoll {
		src.Batch = cfg.batch
		src.Interval = intervalMillis(w.pollingInterval(cfg))
	}

	listener := observe.Listener[[]model.Log]{OnData: onLogs, OnError: cfg.onError}
	key := src.fingerprint()

	return w.logs.Observe(key, listener, func(emit observe.Emitter[[]model.Log]) func() {
		logger := w.logger.With(zap.String("watch", key[:10]), zap.String("strategy", strategy.String()))
		switch strategy {
		case StrategyPush:
			return w.track(src.Kind, strategy, w.subscribeEvents(q, criteria.Event, cfg.strict, emit, logger))
		default:
			p := &eventPoller{
				w:        w,
				query:    q,
				shape:    criteria.Event,
				strict:   cfg.strict,
				batch:    cfg.batch,
				emit:     emit,
				logger:   logger,
				interval: w.pollingInterval(cfg),
			}
			return w.track(src.Kind, strategy, w.spawn(p.run))
		}
	}), nil
}

// Logs fetches and decodes logs in the inclusive range [from, to].
// Records that fail to decode are returned in errs.
func (w *Watcher) Logs(ctx context.Context, criteria Criteria, from, to *big.Int, strict bool) (logs []model.Log, errs []error, err error) {
	q, err := criteria.query()
	if err != nil {
		return nil, nil, err
	}
	raws, err := w.getLogs(ctx, q, from, to)
	if err != nil {
		return nil, nil, err
	}
	logs, errs = decode.DecodeBatch(raws, criteria.Event, strict)
	return logs, errs, nil
}

const releaseTimeout = 5 * time.Second

type pollMode int

const (
	modeUninitialized pollMode = iota
	modeFilter
	modeFallback
)

func (m pollMode) String() string {
	switch m {
	case modeFilter:
		return "filter"
	case modeFallback:
		return "fallback"
	default:
		return "uninitialized"
	}
}

// pollState belongs to a single poll loop.
type pollState struct {
	initialized   bool
	filterID      *string
	lastSeenBlock *big.Int
}

func (s pollState) mode() pollMode {
	switch {
	case !s.initialized:
		return modeUninitialized
	case s.filterID != nil:
		return modeFilter
	default:
		return modeFallback
	}
}

type eventPoller struct {
	w        *Watcher
	query    filterQuery
	shape    *decode.EventShape
	strict   bool
	batch    bool
	interval time.Duration
	emit     observe.Emitter[[]model.Log]
	logger   *zap.Logger

	state pollState
}

func (p *eventPoller) run(stop <-chan struct{}) {
	poll(p.w.ctx, stop, p.interval, true, p.tick)

	if p.state.filterID != nil {
		// Runs after Close cancelled the watcher context too.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(p.w.ctx), releaseTimeout)
		defer cancel()
		// Best effort: the node drops idle filters on its own.
		if err := p.w.uninstallFilter(ctx, *p.state.filterID); err != nil {
			p.logger.Debug("uninstall filter failed", zap.String("filter", *p.state.filterID), zap.Error(err))
		}
	}
}

func (p *eventPoller) tick(ctx context.Context) {
	if p.state.mode() == modeUninitialized {
		p.initialize(ctx)
		return
	}

	p.w.metrics.RecordTick(p.state.mode().String())
	raws, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("poll logs failed", zap.Stringer("mode", p.state.mode()), zap.Error(err))
		p.w.reportError(p.emit.Error, err)
		return
	}
	p.deliver(raws)
}

func (p *eventPoller) initialize(ctx context.Context) {
	id, err := p.w.newFilter(ctx, p.query)
	if err != nil {
		p.logger.Debug("filter unavailable, scanning block ranges", zap.Error(err))
	} else {
		p.state.filterID = &id
	}
	p.state.initialized = true
	p.logger.Debug("watch initialized", zap.Stringer("mode", p.state.mode()))
}

func (p *eventPoller) fetch(ctx context.Context) ([]model.RawLog, error) {
	if p.state.mode() == modeFilter {
		return p.w.getFilterChanges(ctx, *p.state.filterID)
	}

	head, err := p.w.blockNumber(ctx)
	if err != nil {
		return nil, err
	}
	previous := p.state.lastSeenBlock
	if previous == nil {
		p.state.lastSeenBlock = head
		return nil, nil
	}
	if head.Cmp(previous) <= 0 {
		return nil, nil
	}

	from := new(big.Int).Add(previous, big.NewInt(1))
	raws, err := p.w.getLogs(ctx, p.query, from, head)
	if err != nil {
		return nil, err
	}
	p.state.lastSeenBlock = head
	return raws, nil
}

func (p *eventPoller) deliver(raws []model.RawLog) {
	logs, errs := decode.DecodeBatch(raws, p.shape, p.strict)
	p.w.metrics.RecordDecodeErrors(len(errs))
	for _, err := range errs {
		p.emit.Error(fmt.Errorf("decode log: %w", err))
	}
	if len(logs) == 0 {
		return
	}
	p.w.metrics.RecordDelivered(StrategyPoll.String(), len(logs))
	if p.batch {
		p.emit.Data(logs)
		return
	}
	for _, log := range logs {
		p.emit.Data([]model.Log{log})
	}
}

func (w *Watcher) subscribeEvents(q filterQuery, shape *decode.EventShape, strict bool, emit observe.Emitter[[]model.Log], logger *zap.Logger) func() {
	return w.spawn(func(stop <-chan struct{}) {
		ch := make(chan json.RawMessage)
		sub, err := w.transport.Subscribe(w.ctx, ch, "logs", q.arg(nil, nil))
		if err != nil {
			w.reportError(emit.Error, requestError("eth_subscribe", err))
			return
		}
		defer sub.Unsubscribe()

		for {
			select {
			case <-stop:
				return
			default:
			}

			select {
			case <-stop:
				return
			case <-w.ctx.Done():
				return
			case err, ok := <-sub.Err():
				if !ok {
					return
				}
				logger.Warn("logs subscription failed", zap.Error(err))
				w.reportError(emit.Error, &TransportError{Method: "eth_subscribe", Err: err})
				return
			case msg := <-ch:
				var raw model.RawLog
				if err := json.Unmarshal(msg, &raw); err != nil {
					emit.Error(fmt.Errorf("decode pushed log: %w", err))
					continue
				}
				log, err := decode.Decode(raw, shape, strict)
				if err != nil {
					w.metrics.RecordDecodeErrors(1)
					emit.Error(fmt.Errorf("decode log: %w", err))
					continue
				}
				if log == nil {
					continue
				}
				w.metrics.RecordDelivered(StrategyPush.String(), 1)
				emit.Data([]model.Log{*log})
			}
		}
	})
}
