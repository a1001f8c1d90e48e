package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"logwatch/internal/watch"
)

// Client wraps a go-ethereum RPC client as a watch transport.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	kind            watch.TransportKind
	pollingInterval time.Duration
}

// NewClient dials rpcURL. WebSocket and IPC endpoints are push-capable.
func NewClient(ctx context.Context, rpcURL string, pollingInterval time.Duration) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return newClient(rpcClient, KindOf(rpcURL), pollingInterval), nil
}

func newClient(rpcClient *rpc.Client, kind watch.TransportKind, pollingInterval time.Duration) *Client {
	return &Client{
		rpcClient:       rpcClient,
		ethClient:       ethclient.NewClient(rpcClient),
		kind:            kind,
		pollingInterval: pollingInterval,
	}
}

// KindOf infers the transport kind from an endpoint.
func KindOf(rpcURL string) watch.TransportKind {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Scheme == "" {
		// A bare path is an IPC socket.
		return watch.KindPush
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss", "stdio":
		return watch.KindPush
	default:
		return watch.KindPolling
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) Kind() watch.TransportKind {
	return c.kind
}

func (c *Client) PollingInterval() time.Duration {
	return c.pollingInterval
}

// CallContext performs a JSON-RPC call.
func (c *Client) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return c.rpcClient.CallContext(ctx, result, method, args...)
}

// Subscribe opens an eth_subscribe subscription delivering raw payloads to ch.
func (c *Client) Subscribe(ctx context.Context, ch chan<- json.RawMessage, args ...interface{}) (watch.Subscription, error) {
	if c.kind != watch.KindPush {
		return nil, fmt.Errorf("transport does not support subscriptions")
	}
	sub, err := c.rpcClient.EthSubscribe(ctx, ch, args...)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ChainID returns the chain id reported by eth_chainId.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}
