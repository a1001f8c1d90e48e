package decode

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"logwatch/internal/model"
	"logwatch/internal/wire"
)

// FormatLog converts the wire fields of a raw log into typed values.
// Null block and transaction fields stay nil.
func FormatLog(raw model.RawLog) (*model.Log, error) {
	address, err := wire.ToAddress(raw.Address)
	if err != nil {
		return nil, field("address", err)
	}

	topics := make([]common.Hash, 0, len(raw.Topics))
	for _, topic := range raw.Topics {
		h, err := wire.ToHash(topic)
		if err != nil {
			return nil, field("topics", err)
		}
		topics = append(topics, h)
	}

	data, err := wire.ToBytes(orEmpty(raw.Data))
	if err != nil {
		return nil, field("data", err)
	}

	log := &model.Log{
		Address: address,
		Topics:  topics,
		Data:    data,
		Removed: raw.Removed,
	}
	if log.BlockHash, err = wire.ToOptionalHash(raw.BlockHash); err != nil {
		return nil, field("blockHash", err)
	}
	if log.BlockNumber, err = wire.ToOptionalInteger(raw.BlockNumber); err != nil {
		return nil, field("blockNumber", err)
	}
	if log.TransactionHash, err = wire.ToOptionalHash(raw.TransactionHash); err != nil {
		return nil, field("transactionHash", err)
	}
	if log.TransactionIndex, err = wire.ToOptionalUint(raw.TransactionIndex); err != nil {
		return nil, field("transactionIndex", err)
	}
	if log.LogIndex, err = wire.ToOptionalUint(raw.LogIndex); err != nil {
		return nil, field("logIndex", err)
	}
	return log, nil
}

func field(name string, err error) error {
	var parseErr *wire.ParseError
	if errors.As(err, &parseErr) {
		parseErr.Field = name
		return parseErr
	}
	return err
}

func orEmpty(data string) string {
	if data == "" {
		return "0x"
	}
	return data
}
