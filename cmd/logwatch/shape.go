package main

import (
	"fmt"
	"os"
	"strings"

	"logwatch/internal/decode"
)

const builtinPrefix = "builtin:"

// loadShape resolves the event to decode against. abiRef is a JSON ABI file
// or builtin:<name>; without one the ERC-20 events are used. Without an
// event name logs stay generic.
func loadShape(abiRef, event string) (*decode.EventShape, error) {
	if abiRef == "" {
		if event == "" {
			return nil, nil
		}
		return decode.ERC20Shape(event)
	}

	if catalog, ok := strings.CutPrefix(abiRef, builtinPrefix); ok {
		return decode.BuiltinShape(catalog, event)
	}

	data, err := os.ReadFile(abiRef)
	if err != nil {
		return nil, fmt.Errorf("read abi: %w", err)
	}
	return decode.ParseEventShape(string(data), event)
}
