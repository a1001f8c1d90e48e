package wire

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseError reports a wire field that is not valid hex for its type.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ToInteger converts a JSON-RPC quantity into an integer.
func ToInteger(value string) (*big.Int, error) {
	n, err := hexutil.DecodeBig(value)
	if err != nil {
		return nil, &ParseError{Value: value, Err: err}
	}
	return n, nil
}

// ToOptionalInteger treats a nil or empty quantity as absent rather than zero.
func ToOptionalInteger(value *string) (*big.Int, error) {
	if isAbsent(value) {
		return nil, nil
	}
	return ToInteger(*value)
}

// ToOptionalUint is ToOptionalInteger for fields that fit in 64 bits,
// such as log and transaction indices.
func ToOptionalUint(value *string) (*uint64, error) {
	if isAbsent(value) {
		return nil, nil
	}
	n, err := hexutil.DecodeUint64(*value)
	if err != nil {
		return nil, &ParseError{Value: *value, Err: err}
	}
	return &n, nil
}

// FromInteger encodes an integer as a JSON-RPC quantity.
func FromInteger(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return hexutil.EncodeBig(n)
}

// ToBytes decodes an unformatted data field.
func ToBytes(value string) ([]byte, error) {
	data, err := hexutil.Decode(value)
	if err != nil {
		return nil, &ParseError{Value: value, Err: err}
	}
	return data, nil
}

// ToHash decodes a 32 byte hash.
func ToHash(value string) (common.Hash, error) {
	data, err := hexutil.Decode(value)
	if err != nil {
		return common.Hash{}, &ParseError{Value: value, Err: err}
	}
	if len(data) != common.HashLength {
		return common.Hash{}, &ParseError{Value: value, Err: fmt.Errorf("hash length %d", len(data))}
	}
	return common.BytesToHash(data), nil
}

// ToOptionalHash decodes a hash that is null for pending logs.
func ToOptionalHash(value *string) (*common.Hash, error) {
	if isAbsent(value) {
		return nil, nil
	}
	h, err := ToHash(*value)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// FromHash returns the lowercase hex form of a hash.
func FromHash(h common.Hash) string {
	return h.Hex()
}

// ToAddress decodes a 20 byte address.
func ToAddress(value string) (common.Address, error) {
	data, err := hexutil.Decode(value)
	if err != nil {
		return common.Address{}, &ParseError{Value: value, Err: err}
	}
	if len(data) != common.AddressLength {
		return common.Address{}, &ParseError{Value: value, Err: fmt.Errorf("address length %d", len(data))}
	}
	return common.BytesToAddress(data), nil
}

// FromAddress returns the lowercase hex form of an address.
func FromAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func isAbsent(value *string) bool {
	return value == nil || *value == "" || *value == "0x"
}
