package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"logwatch/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "logs.jsonl")
	sink := NewJsonlStorage(path)

	index := uint64(3)
	log := model.Log{
		Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Data:        []byte{0x01},
		BlockNumber: big.NewInt(42),
		LogIndex:    &index,
		EventName:   "Transfer",
		Args:        map[string]interface{}{"value": big.NewInt(7)},
	}

	ctx := context.Background()
	if err := sink.PutLogBatch(ctx, []model.Log{log}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := sink.PutLogBatch(ctx, []model.Log{log, log}); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := sink.PutLogBatch(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
		var row map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if row["block_number"] != "42" {
			t.Fatalf("block number mismatch: %v", row["block_number"])
		}
		args, _ := row["args"].(map[string]interface{})
		if args["value"] != "7" {
			t.Fatalf("args mismatch: %v", row["args"])
		}
	}
	if lines != 3 {
		t.Fatalf("expected 3 lines, got %d", lines)
	}
}

type recordingSink struct {
	batches int
	err     error
}

func (r *recordingSink) PutLogBatch(ctx context.Context, logs []model.Log) error {
	r.batches++
	return r.err
}

func TestMultiStopsAtFirstError(t *testing.T) {
	first := &recordingSink{err: os.ErrPermission}
	second := &recordingSink{}

	err := Multi{first, second}.PutLogBatch(context.Background(), []model.Log{{}})
	if err != os.ErrPermission {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.batches != 1 || second.batches != 0 {
		t.Fatalf("unexpected fan-out: %d %d", first.batches, second.batches)
	}
}
