package watch

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCError is a failure reported by the node.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Err     error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// TransportError is a connection level failure.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func requestError(method string, err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &RPCError{
			Method:  method,
			Code:    rpcErr.ErrorCode(),
			Message: rpcErr.Error(),
			Err:     err,
		}
	}
	return &TransportError{Method: method, Err: err}
}

// requestMethod names the JSON-RPC method behind a request failure.
func requestMethod(err error) (string, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Method, true
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Method, true
	}
	return "", false
}
