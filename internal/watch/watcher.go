// Package watch keeps live watches over event logs and block numbers on a
// JSON-RPC node, sharing one underlying poller or subscription between all
// callers that watch the same thing.
package watch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"logwatch/internal/metrics"
	"logwatch/internal/model"
	"logwatch/internal/observe"
)

const defaultPollingInterval = 4 * time.Second

var watcherSeq atomic.Uint64

// Watcher owns the watches opened over one transport.
type Watcher struct {
	transport Transport
	logger    *zap.Logger
	metrics   *metrics.Metrics
	uid       string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logs    *observe.Registry[[]model.Log]
	blocks  *observe.Registry[BlockNumber]
	headers *observe.Registry[Block]
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger used for background diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics records watch activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

// New builds a Watcher over transport.
func New(transport Transport, opts ...Option) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		transport: transport,
		logger:    zap.NewNop(),
		uid:       fmt.Sprintf("watcher-%d", watcherSeq.Add(1)),
		ctx:       ctx,
		cancel:    cancel,
		logs:      observe.NewRegistry[[]model.Log](),
		blocks:    observe.NewRegistry[BlockNumber](),
		headers:   observe.NewRegistry[Block](),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Close aborts in-flight requests and waits for every background loop to
// exit. Listeners still registered receive nothing further.
func (w *Watcher) Close() {
	w.cancel()
	w.wg.Wait()
}

// ActiveWatches returns the number of distinct live executions.
func (w *Watcher) ActiveWatches() int {
	return w.logs.Groups() + w.blocks.Groups() + w.headers.Groups()
}

func (w *Watcher) pollingInterval(cfg watchConfig) time.Duration {
	if cfg.pollingInterval > 0 {
		return cfg.pollingInterval
	}
	if interval := w.transport.PollingInterval(); interval > 0 {
		return interval
	}
	return defaultPollingInterval
}

func (w *Watcher) usePolling(cfg watchConfig) bool {
	if cfg.poll != nil {
		return *cfg.poll
	}
	return w.transport.Kind() != KindPush
}

// track wraps a group's stop function so the active gauge follows its life.
func (w *Watcher) track(kind string, strategy Strategy, stop func()) func() {
	w.metrics.WatchStarted(kind, strategy.String())
	return func() {
		stop()
		w.metrics.WatchStopped(kind, strategy.String())
	}
}

func (w *Watcher) reportError(emit func(error), err error) {
	if method, ok := requestMethod(err); ok {
		w.metrics.RecordRequestError(method)
	}
	emit(err)
}

// spawn runs fn on a tracked goroutine and returns a stop function that
// closes the stop channel once.
func (w *Watcher) spawn(fn func(stop <-chan struct{})) func() {
	stop := make(chan struct{})
	var once sync.Once

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn(stop)
	}()

	return func() {
		once.Do(func() { close(stop) })
	}
}

type watchConfig struct {
	onError         func(error)
	strict          bool
	batch           bool
	pollingInterval time.Duration
	poll            *bool
	emitOnBegin     bool
}

// WatchOption tunes a single watch.
type WatchOption func(*watchConfig)

// WithOnError sets the callback for request and decode failures.
func WithOnError(fn func(error)) WatchOption {
	return func(c *watchConfig) { c.onError = fn }
}

// WithStrict drops logs whose topics or data do not fit the event instead
// of delivering them with empty args.
func WithStrict(strict bool) WatchOption {
	return func(c *watchConfig) { c.strict = strict }
}

// WithBatch chooses between one callback per tick (the default) and one
// callback per log.
func WithBatch(batch bool) WatchOption {
	return func(c *watchConfig) { c.batch = batch }
}

// WithPollingInterval overrides the transport's polling interval.
func WithPollingInterval(d time.Duration) WatchOption {
	return func(c *watchConfig) { c.pollingInterval = d }
}

// WithPoll forces polling (true) or a push subscription (false). By default
// push is used only on push-capable transports.
func WithPoll(enabled bool) WatchOption {
	return func(c *watchConfig) { c.poll = &enabled }
}

// WithEmitOnBegin makes WatchBlockNumber and WatchBlocks deliver the first
// head they see.
func WithEmitOnBegin(enabled bool) WatchOption {
	return func(c *watchConfig) { c.emitOnBegin = enabled }
}

func newWatchConfig(opts []WatchOption) watchConfig {
	cfg := watchConfig{batch: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
