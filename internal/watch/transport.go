package watch

import (
	"context"
	"encoding/json"
	"time"
)

// TransportKind tells whether a transport can push subscription data.
type TransportKind int

const (
	KindPolling TransportKind = iota
	KindPush
)

func (k TransportKind) String() string {
	if k == KindPush {
		return "push"
	}
	return "polling"
}

// Subscription is a live server push stream.
type Subscription interface {
	Err() <-chan error
	Unsubscribe()
}

// Transport issues JSON-RPC requests and, for push-capable transports,
// eth_subscribe subscriptions.
type Transport interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Subscribe(ctx context.Context, ch chan<- json.RawMessage, args ...interface{}) (Subscription, error)
	Kind() TransportKind
	PollingInterval() time.Duration
}
