package model

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"logwatch/internal/wire"
)

// Log is a formatted log, optionally bound to an event.
type Log struct {
	Address          common.Address
	Topics           []common.Hash
	Data             []byte
	BlockHash        *common.Hash
	BlockNumber      *big.Int
	TransactionHash  *common.Hash
	TransactionIndex *uint64
	LogIndex         *uint64
	Removed          bool

	// EventName and Args are set only when the log was decoded against an
	// event. Args is a map for named parameters and a slice otherwise.
	EventName string
	Args      interface{}
}

// Pending reports whether the log has not been mined yet.
func (l Log) Pending() bool {
	return l.BlockNumber == nil
}

type logJSON struct {
	Address          string      `json:"address"`
	Topics           []string    `json:"topics"`
	Data             string      `json:"data"`
	BlockHash        *string     `json:"block_hash"`
	BlockNumber      *string     `json:"block_number"`
	TransactionHash  *string     `json:"tx_hash"`
	TransactionIndex *uint64     `json:"tx_index"`
	LogIndex         *uint64     `json:"log_index"`
	Removed          bool        `json:"removed"`
	EventName        string      `json:"event_name,omitempty"`
	Args             interface{} `json:"args,omitempty"`
}

// MarshalJSON encodes numbers as decimal strings and bytes as hex.
func (l Log) MarshalJSON() ([]byte, error) {
	topics := make([]string, 0, len(l.Topics))
	for _, topic := range l.Topics {
		topics = append(topics, topic.Hex())
	}

	out := logJSON{
		Address:          wire.FromAddress(l.Address),
		Topics:           topics,
		Data:             hexString(l.Data),
		TransactionIndex: l.TransactionIndex,
		LogIndex:         l.LogIndex,
		Removed:          l.Removed,
		EventName:        l.EventName,
		Args:             JSONValue(l.Args),
	}
	if l.BlockHash != nil {
		s := l.BlockHash.Hex()
		out.BlockHash = &s
	}
	if l.BlockNumber != nil {
		s := l.BlockNumber.String()
		out.BlockNumber = &s
	}
	if l.TransactionHash != nil {
		s := l.TransactionHash.Hex()
		out.TransactionHash = &s
	}
	return json.Marshal(out)
}
