package watch

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"logwatch/internal/model"
	"logwatch/internal/wire"
)

// filterQuery is the log criteria sent to the node.
type filterQuery struct {
	Addresses []common.Address
	Topics    [][]common.Hash
}

func (q filterQuery) arg(from, to *big.Int) map[string]interface{} {
	arg := map[string]interface{}{}
	if len(q.Addresses) > 0 {
		arg["address"] = q.Addresses
	}
	if len(q.Topics) > 0 {
		arg["topics"] = q.Topics
	}
	if from != nil {
		arg["fromBlock"] = wire.FromInteger(from)
	}
	if to != nil {
		arg["toBlock"] = wire.FromInteger(to)
	}
	return arg
}

func (w *Watcher) newFilter(ctx context.Context, q filterQuery) (string, error) {
	var id string
	if err := w.transport.CallContext(ctx, &id, "eth_newFilter", q.arg(nil, nil)); err != nil {
		return "", requestError("eth_newFilter", err)
	}
	return id, nil
}

func (w *Watcher) getFilterChanges(ctx context.Context, id string) ([]model.RawLog, error) {
	var logs []model.RawLog
	if err := w.transport.CallContext(ctx, &logs, "eth_getFilterChanges", id); err != nil {
		return nil, requestError("eth_getFilterChanges", err)
	}
	return logs, nil
}

func (w *Watcher) uninstallFilter(ctx context.Context, id string) error {
	var ok bool
	if err := w.transport.CallContext(ctx, &ok, "eth_uninstallFilter", id); err != nil {
		return requestError("eth_uninstallFilter", err)
	}
	return nil
}

func (w *Watcher) blockNumber(ctx context.Context) (*big.Int, error) {
	var head string
	if err := w.transport.CallContext(ctx, &head, "eth_blockNumber"); err != nil {
		return nil, requestError("eth_blockNumber", err)
	}
	return wire.ToInteger(head)
}

func (w *Watcher) getLogs(ctx context.Context, q filterQuery, from, to *big.Int) ([]model.RawLog, error) {
	var logs []model.RawLog
	if err := w.transport.CallContext(ctx, &logs, "eth_getLogs", q.arg(from, to)); err != nil {
		return nil, requestError("eth_getLogs", err)
	}
	return logs, nil
}

var errNoLatestBlock = errors.New("latest block not found")

func (w *Watcher) latestHeader(ctx context.Context) (*types.Header, error) {
	var header *types.Header
	if err := w.transport.CallContext(ctx, &header, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, requestError("eth_getBlockByNumber", err)
	}
	if header == nil {
		return nil, errNoLatestBlock
	}
	return header, nil
}
