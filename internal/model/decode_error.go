package model

// DecodeError records a decode failure for a log line.
type DecodeError struct {
	Line        int     `json:"line"`
	BlockNumber *string `json:"block_number,omitempty"`
	TxHash      *string `json:"tx_hash,omitempty"`
	LogIndex    *string `json:"log_index,omitempty"`
	Address     string  `json:"address,omitempty"`
	Topic0      string  `json:"topic0,omitempty"`
	Kind        string  `json:"kind"`
	Error       string  `json:"error"`
}

// NewDecodeError describes a failure for a raw log read from line.
func NewDecodeError(line int, raw RawLog, kind string, err error) DecodeError {
	out := DecodeError{
		Line:        line,
		BlockNumber: raw.BlockNumber,
		TxHash:      raw.TransactionHash,
		LogIndex:    raw.LogIndex,
		Address:     raw.Address,
		Kind:        kind,
		Error:       err.Error(),
	}
	if len(raw.Topics) > 0 {
		out.Topic0 = raw.Topics[0]
	}
	return out
}
