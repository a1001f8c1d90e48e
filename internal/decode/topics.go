package decode

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EncodeTopics builds a topic filter for the shape. args maps indexed
// parameter names to a value or to a []interface{} of alternatives.
// Parameters missing from args match anything.
func EncodeTopics(shape *EventShape, args map[string]interface{}) ([][]common.Hash, error) {
	if shape == nil {
		if len(args) > 0 {
			return nil, fmt.Errorf("args require an event")
		}
		return nil, nil
	}

	indexed := indexedArguments(shape.Event.Inputs)
	known := make(map[string]struct{}, len(indexed))
	for _, arg := range indexed {
		if arg.Name != "" {
			known[arg.Name] = struct{}{}
		}
	}
	for name := range args {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("%s is not an indexed parameter of %s", name, shape.Name())
		}
	}

	query := make([][]interface{}, len(indexed))
	for i, arg := range indexed {
		value, ok := args[arg.Name]
		if !ok || value == nil || arg.Name == "" {
			continue
		}
		if alternatives, ok := value.([]interface{}); ok {
			query[i] = alternatives
		} else {
			query[i] = []interface{}{value}
		}
	}

	rules, err := abi.MakeTopics(query...)
	if err != nil {
		return nil, fmt.Errorf("encode topics for %s: %w", shape.Name(), err)
	}

	topics := make([][]common.Hash, 0, len(rules)+1)
	if !shape.Event.Anonymous {
		topics = append(topics, []common.Hash{shape.ID()})
	}
	topics = append(topics, rules...)

	end := len(topics)
	for end > 0 && len(topics[end-1]) == 0 {
		end--
	}
	return topics[:end], nil
}

// CoerceArgs converts string argument values, as given on the command line
// or in config, into the Go types topic encoding expects. A value containing
// "|" is split into alternatives.
func CoerceArgs(shape *EventShape, raw map[string]string) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if shape == nil {
		return nil, fmt.Errorf("args require an event")
	}

	types := make(map[string]abi.Type)
	for _, input := range shape.Event.Inputs {
		if input.Indexed && input.Name != "" {
			types[input.Name] = input.Type
		}
	}

	out := make(map[string]interface{}, len(raw))
	for name, value := range raw {
		typ, ok := types[name]
		if !ok {
			return nil, fmt.Errorf("%s is not an indexed parameter of %s", name, shape.Name())
		}
		parts := strings.Split(value, "|")
		values := make([]interface{}, 0, len(parts))
		for _, part := range parts {
			v, err := coerce(typ, strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("arg %s: %w", name, err)
			}
			values = append(values, v)
		}
		if len(values) == 1 {
			out[name] = values[0]
		} else {
			out[name] = values
		}
	}
	return out, nil
}

func coerce(typ abi.Type, value string) (interface{}, error) {
	switch typ.T {
	case abi.AddressTy:
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid address: %s", value)
		}
		return common.HexToAddress(value), nil
	case abi.IntTy, abi.UintTy:
		n, ok := new(big.Int).SetString(value, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer: %s", value)
		}
		return n, nil
	case abi.BoolTy:
		return strconv.ParseBool(value)
	case abi.StringTy:
		return value, nil
	case abi.BytesTy:
		return hexutil.Decode(value)
	case abi.FixedBytesTy:
		data, err := hexutil.Decode(value)
		if err != nil {
			return nil, err
		}
		if len(data) > common.HashLength {
			return nil, fmt.Errorf("bytes%d value too long", typ.Size)
		}
		return common.BytesToHash(common.RightPadBytes(data, common.HashLength)), nil
	default:
		return nil, fmt.Errorf("unsupported indexed type %s", typ.String())
	}
}
