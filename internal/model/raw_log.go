package model

// RawLog is a log as returned by eth_getLogs, eth_getFilterChanges or a
// logs subscription. Block and transaction fields are null for pending logs.
type RawLog struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockHash        *string  `json:"blockHash"`
	BlockNumber      *string  `json:"blockNumber"`
	TransactionHash  *string  `json:"transactionHash"`
	TransactionIndex *string  `json:"transactionIndex"`
	LogIndex         *string  `json:"logIndex"`
	Removed          bool     `json:"removed"`
}
