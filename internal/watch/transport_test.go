package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"logwatch/internal/decode"
	"logwatch/internal/model"
)

type rpcFailure struct {
	code int
	msg  string
}

func (e *rpcFailure) Error() string  { return e.msg }
func (e *rpcFailure) ErrorCode() int { return e.code }

type call struct {
	method string
	args   []interface{}
}

type handler func(args []interface{}) (interface{}, error)

// fakeTransport answers JSON-RPC calls from per-method handlers and
// reports every call on events.
type fakeTransport struct {
	mu       sync.Mutex
	kind     TransportKind
	handlers map[string]handler
	calls    []call
	events   chan string

	subCh  chan<- json.RawMessage
	subErr chan error
}

func newFakeTransport(kind TransportKind) *fakeTransport {
	return &fakeTransport{
		kind:     kind,
		handlers: make(map[string]handler),
		events:   make(chan string, 1024),
	}
}

func (f *fakeTransport) handle(method string, h handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeTransport) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: method, args: args})
	h := f.handlers[method]
	f.mu.Unlock()
	defer notify(f.events, method)

	if err := ctx.Err(); err != nil {
		return err
	}
	if h == nil {
		return &rpcFailure{code: -32601, msg: "the method " + method + " does not exist"}
	}
	value, err := h(args)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func (f *fakeTransport) Subscribe(ctx context.Context, ch chan<- json.RawMessage, args ...interface{}) (Subscription, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: "eth_subscribe", args: args})
	f.subCh = ch
	f.subErr = make(chan error, 1)
	sub := &fakeSubscription{err: f.subErr, events: f.events}
	f.mu.Unlock()

	notify(f.events, "eth_subscribe")
	return sub, nil
}

func (f *fakeTransport) Kind() TransportKind { return f.kind }

func (f *fakeTransport) PollingInterval() time.Duration { return 10 * time.Millisecond }

func (f *fakeTransport) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func (f *fakeTransport) callsTo(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTransport) push(t *testing.T, value interface{}) {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal push: %v", err)
	}
	f.mu.Lock()
	ch := f.subCh
	f.mu.Unlock()
	select {
	case ch <- data:
	case <-time.After(time.Second):
		t.Fatalf("push not consumed")
	}
}

type fakeSubscription struct {
	once   sync.Once
	err    chan error
	events chan string
}

func (s *fakeSubscription) Err() <-chan error { return s.err }

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.err)
		notify(s.events, "eth_unsubscribe")
	})
}

func notify(events chan<- string, method string) {
	select {
	case events <- method:
	default:
	}
}

func waitFor(t *testing.T, events <-chan string, method string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-events:
			if got == method {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", method)
		}
	}
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatalf("timed out waiting for delivery")
		return zero
	}
}

// offer delivers v unless ch is full, so a repeating poller never blocks.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func quantity(n int64) string {
	return hexutil.EncodeBig(big.NewInt(n))
}

func mustTransfer(t *testing.T) *decode.EventShape {
	t.Helper()
	shape, err := decode.ERC20Shape("Transfer")
	if err != nil {
		t.Fatalf("transfer shape: %v", err)
	}
	return shape
}

// transferRaw builds a Transfer log. A negative block marks it pending.
func transferRaw(t *testing.T, shape *decode.EventShape, block int64, logIndex int64, value int64) model.RawLog {
	t.Helper()
	data, err := shape.Event.Inputs.NonIndexed().Pack(big.NewInt(value))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	raw := model.RawLog{
		Address: "0x1111111111111111111111111111111111111111",
		Topics: []string{
			shape.ID().Hex(),
			common.BytesToHash(from.Bytes()).Hex(),
			common.BytesToHash(to.Bytes()).Hex(),
		},
		Data: hexutil.Encode(data),
	}
	if block >= 0 {
		blockNumber := quantity(block)
		blockHash := common.BigToHash(big.NewInt(block)).Hex()
		txHash := common.HexToHash(fmt.Sprintf("0x%x", block*1000+logIndex)).Hex()
		txIndex := quantity(0)
		index := quantity(logIndex)
		raw.BlockNumber = &blockNumber
		raw.BlockHash = &blockHash
		raw.TransactionHash = &txHash
		raw.TransactionIndex = &txIndex
		raw.LogIndex = &index
	}
	return raw
}
