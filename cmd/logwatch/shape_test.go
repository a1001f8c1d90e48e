package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadShape(t *testing.T) {
	shape, err := loadShape("", "")
	if err != nil || shape != nil {
		t.Fatalf("no event should mean generic logs: %v %v", shape, err)
	}

	shape, err = loadShape("", "Approval")
	if err != nil || shape.Name() != "Approval" {
		t.Fatalf("erc20 default: %v %v", shape, err)
	}

	shape, err = loadShape("builtin:uniswap-v3-pool", "Swap")
	if err != nil || shape.Name() != "Swap" {
		t.Fatalf("builtin: %v %v", shape, err)
	}

	path := filepath.Join(t.TempDir(), "ping.json")
	abiJSON := `[{"anonymous":false,"inputs":[{"indexed":true,"name":"who","type":"address"}],"name":"Ping","type":"event"}]`
	if err := os.WriteFile(path, []byte(abiJSON), 0o644); err != nil {
		t.Fatalf("write abi: %v", err)
	}
	shape, err = loadShape(path, "")
	if err != nil || shape.Signature() != "Ping(address)" {
		t.Fatalf("file abi: %v %v", shape, err)
	}

	if _, err := loadShape(path, "Pong"); err == nil {
		t.Fatalf("expected missing event error")
	}
}
