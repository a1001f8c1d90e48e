package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"logwatch/internal/watch"
)

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	p := newRetryPolicy(3, time.Millisecond, zap.NewNop())

	calls := 0
	err := p.do(context.Background(), "get logs", func(context.Context) error {
		calls++
		if calls < 3 {
			return &watch.RPCError{Method: "eth_getLogs", Code: -32000, Message: "header not found"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryStopsOnInvalidParams(t *testing.T) {
	p := newRetryPolicy(5, time.Millisecond, zap.NewNop())

	calls := 0
	err := p.do(context.Background(), "get logs", func(context.Context) error {
		calls++
		return &watch.RPCError{Method: "eth_getLogs", Code: -32602, Message: "invalid argument 0"}
	})
	var rpcErr *watch.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32602 {
		t.Fatalf("expected invalid params error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("invalid params should not be retried, got %d attempts", calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	p := newRetryPolicy(2, time.Millisecond, nil)

	calls := 0
	err := p.do(context.Background(), "get block number", func(context.Context) error {
		calls++
		return &watch.TransportError{Method: "eth_blockNumber", Err: errors.New("connection refused")}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryStopsWhenCancelled(t *testing.T) {
	p := newRetryPolicy(5, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.do(ctx, "get logs", func(context.Context) error {
		calls++
		cancel()
		return errors.New("temporary")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
