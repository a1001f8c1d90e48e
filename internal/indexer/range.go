package indexer

import (
	"fmt"
	"math/big"
)

// BlockRange is an inclusive span of blocks fetched with one eth_getLogs call.
type BlockRange struct {
	From uint64
	To   uint64
}

// Bounds returns the range as the block arguments of a log query.
func (r BlockRange) Bounds() (from, to *big.Int) {
	return new(big.Int).SetUint64(r.From), new(big.Int).SetUint64(r.To)
}

// Blocks is the number of blocks the range covers.
func (r BlockRange) Blocks() uint64 {
	return r.To - r.From + 1
}

// SplitRange cuts [from, to] into consecutive ranges of at most batchSize
// blocks. The last range may be shorter.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is before from block %d", to, from)
	}

	var ranges []BlockRange
	for start := from; ; {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
		start = end + 1
	}
}
