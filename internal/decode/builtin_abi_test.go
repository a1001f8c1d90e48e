package decode

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"logwatch/internal/model"
)

func TestBuiltinShapeMintSignedTicks(t *testing.T) {
	shape, err := BuiltinShape("uniswap-v3-pool", "Mint")
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if shape.Signature() != "Mint(address,address,int24,int24,uint128,uint256,uint256)" {
		t.Fatalf("signature mismatch: %s", shape.Signature())
	}

	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	data, err := shape.Event.Inputs.NonIndexed().Pack(sender, big.NewInt(5000), big.NewInt(100), big.NewInt(200))
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}

	raw := model.RawLog{
		Address: "0x9999999999999999999999999999999999999999",
		Topics: []string{
			shape.ID().Hex(),
			common.BytesToHash(owner.Bytes()).Hex(),
			topicFromInt24(-120).Hex(),
			topicFromInt24(120).Hex(),
		},
		Data: hexutil.Encode(data),
	}

	log, err := Decode(raw, shape, true)
	if err != nil || log == nil {
		t.Fatalf("decode mint: %+v %v", log, err)
	}
	args := log.Args.(map[string]interface{})
	if lower, ok := args["tickLower"].(*big.Int); !ok || lower.Int64() != -120 {
		t.Fatalf("tickLower mismatch: %v", args["tickLower"])
	}
	if upper, ok := args["tickUpper"].(*big.Int); !ok || upper.Int64() != 120 {
		t.Fatalf("tickUpper mismatch: %v", args["tickUpper"])
	}
	if args["sender"] != sender || args["owner"] != owner {
		t.Fatalf("address args mismatch: %+v", args)
	}
}

func TestBuiltinShapeTopicFilter(t *testing.T) {
	shape, err := BuiltinShape("uniswap-v3-pool", "Burn")
	if err != nil {
		t.Fatalf("shape: %v", err)
	}

	args, err := CoerceArgs(shape, map[string]string{"tickUpper": "60"})
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	topics, err := EncodeTopics(shape, args)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := [][]common.Hash{{shape.ID()}, nil, nil, {topicFromInt24(60)}}
	if !reflect.DeepEqual(topics, want) {
		t.Fatalf("topics mismatch: %v", topics)
	}
}

func TestBuiltinShapeUnknown(t *testing.T) {
	if _, err := BuiltinShape("erc721", "Transfer"); err == nil {
		t.Fatalf("expected unknown catalog error")
	}
	if got := BuiltinABIs(); !reflect.DeepEqual(got, []string{"erc20", "uniswap-v3-pool"}) {
		t.Fatalf("unexpected catalog: %v", got)
	}
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}
