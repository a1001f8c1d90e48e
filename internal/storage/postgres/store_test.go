package postgres

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"logwatch/internal/model"
)

func TestNewLogRow(t *testing.T) {
	blockHash := common.HexToHash("0xbb")
	txHash := common.HexToHash("0xcc")
	txIndex := uint64(2)
	logIndex := uint64(5)

	row, err := newLogRow(model.Log{
		Address:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics:           []common.Hash{common.HexToHash("0x01")},
		BlockHash:        &blockHash,
		BlockNumber:      big.NewInt(100),
		TransactionHash:  &txHash,
		TransactionIndex: &txIndex,
		LogIndex:         &logIndex,
		EventName:        "Transfer",
		Args:             map[string]interface{}{"value": big.NewInt(9)},
	})
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if row.blockNumber.Int.Int64() != 100 || row.logIndex != 5 || *row.txIndex != 2 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if *row.txHash != txHash.Hex() || *row.eventName != "Transfer" {
		t.Fatalf("unexpected identity: %+v", row)
	}
	if !reflect.DeepEqual(row.topics, []string{common.HexToHash("0x01").Hex()}) {
		t.Fatalf("topics mismatch: %v", row.topics)
	}
	if row.args == nil || *row.args != `{"value":"9"}` {
		t.Fatalf("args mismatch: %v", row.args)
	}
}

func TestNewLogRowGeneric(t *testing.T) {
	blockHash := common.HexToHash("0xbb")
	logIndex := uint64(0)

	row, err := newLogRow(model.Log{
		BlockHash:   &blockHash,
		BlockNumber: big.NewInt(1),
		LogIndex:    &logIndex,
	})
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if row.eventName != nil || row.args != nil || row.txHash != nil {
		t.Fatalf("generic log should leave event columns null: %+v", row)
	}
}
