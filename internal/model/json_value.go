package model

import (
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"logwatch/internal/wire"
)

// JSONValue converts decoded ABI values into JSON friendly forms: integers
// become decimal strings and byte arrays become hex.
func JSONValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case nil:
		return nil
	case *big.Int:
		if typed == nil {
			return nil
		}
		return typed.String()
	case common.Address:
		return wire.FromAddress(typed)
	case common.Hash:
		return typed.Hex()
	case []byte:
		return hexString(typed)
	case string, bool:
		return typed
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, item := range typed {
			out[k] = JSONValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			out = append(out, JSONValue(item))
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()).String()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()).String()
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(buf), rv)
			return hexString(buf)
		}
		fallthrough
	case reflect.Slice:
		out := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, JSONValue(rv.Index(i).Interface()))
		}
		return out
	}
	return v
}

func hexString(data []byte) string {
	return hexutil.Encode(data)
}
