package watch

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"logwatch/internal/wire"
)

type keySource struct {
	Kind      string     `json:"kind"`
	Watcher   string     `json:"watcher"`
	Addresses []string   `json:"addresses,omitempty"`
	Event     string     `json:"event,omitempty"`
	Topics    [][]string `json:"topics,omitempty"`
	Strategy  string     `json:"strategy"`
	Batch     bool       `json:"batch"`
	Strict    bool       `json:"strict"`
	Interval  int64      `json:"interval_ms"`
	OnBegin   bool       `json:"emit_on_begin,omitempty"`
}

// fingerprint hashes the canonical JSON of a normalized key source.
func (k keySource) fingerprint() string {
	data, _ := json.Marshal(k)
	return crypto.Keccak256Hash(data).Hex()
}

func normalizeAddresses(addresses []common.Address) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		s := wire.FromAddress(addr)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// normalizeTopics sorts and de-duplicates alternatives within each position.
func normalizeTopics(topics [][]common.Hash) [][]string {
	out := make([][]string, 0, len(topics))
	for _, position := range topics {
		seen := make(map[string]struct{}, len(position))
		alternatives := make([]string, 0, len(position))
		for _, topic := range position {
			s := topic.Hex()
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			alternatives = append(alternatives, s)
		}
		sort.Strings(alternatives)
		out = append(out, alternatives)
	}
	return out
}

func intervalMillis(d time.Duration) int64 {
	return d.Milliseconds()
}
