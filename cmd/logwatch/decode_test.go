package main

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"logwatch/internal/decode"
	"logwatch/internal/model"
)

type memoryWriter struct {
	values []interface{}
}

func (m *memoryWriter) Write(value interface{}) error {
	m.values = append(m.values, value)
	return nil
}

func transferLine(t *testing.T, shape *decode.EventShape, topics int) string {
	t.Helper()
	data, err := shape.Event.Inputs.NonIndexed().Pack(big.NewInt(5))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	block := "0x10"
	index := "0x0"
	raw := model.RawLog{
		Address: "0x1111111111111111111111111111111111111111",
		Topics: []string{
			shape.ID().Hex(),
			common.HexToHash("0x22").Hex(),
			common.HexToHash("0x33").Hex(),
		}[:topics],
		Data:        hexutil.Encode(data),
		BlockNumber: &block,
		LogIndex:    &index,
	}
	line, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(line)
}

func TestDecodeStream(t *testing.T) {
	shape, err := decode.ERC20Shape("Transfer")
	if err != nil {
		t.Fatalf("shape: %v", err)
	}

	input := strings.Join([]string{
		transferLine(t, shape, 3),
		"",
		"not json",
		transferLine(t, shape, 2),
		`{"address":"0x12","topics":[],"data":"0x"}`,
	}, "\n")

	out := &memoryWriter{}
	errs := &memoryWriter{}
	stats, err := decodeStream(strings.NewReader(input), shape, true, out, errs)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}

	if stats.total != 4 || stats.decoded != 1 || stats.dropped != 1 || stats.failed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(out.values) != 1 {
		t.Fatalf("expected one decoded log, got %d", len(out.values))
	}
	log := out.values[0].(*model.Log)
	if log.EventName != "Transfer" {
		t.Fatalf("event name mismatch: %s", log.EventName)
	}

	if len(errs.values) != 3 {
		t.Fatalf("expected 3 error records, got %d", len(errs.values))
	}
	kinds := make([]string, 0, len(errs.values))
	for _, value := range errs.values {
		kinds = append(kinds, value.(model.DecodeError).Kind)
	}
	if strings.Join(kinds, ",") != "json,topics mismatch,format" {
		t.Fatalf("unexpected error kinds: %v", kinds)
	}
	if errs.values[0].(model.DecodeError).Line != 3 {
		t.Fatalf("line numbers should count blank lines")
	}
}
