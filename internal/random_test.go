package internal

import (
	"encoding/base64"
	"testing"
)

func TestNewRefreshValueEntropyAndEncoding(t *testing.T) {
	v, err := NewRefreshValue(64)
	if err != nil {
		t.Fatalf("new refresh value: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		t.Fatalf("value is not base64url: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("expected 64 random bytes, got %d", len(raw))
	}
}

func TestNewRefreshValueRejectsShortSize(t *testing.T) {
	if _, err := NewRefreshValue(MinRefreshValueSize - 1); err == nil {
		t.Fatal("expected error for size below 256 bits")
	}
}

func TestNewRefreshValueUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		v, err := NewRefreshValue(MinRefreshValueSize)
		if err != nil {
			t.Fatalf("new refresh value: %v", err)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("duplicate value after %d draws", i)
		}
		seen[v] = struct{}{}
	}
}

func TestHashRefreshValueDeterministic(t *testing.T) {
	if HashRefreshValue("a") != HashRefreshValue("a") {
		t.Fatal("hash is not deterministic")
	}
	if HashRefreshValue("a") == HashRefreshValue("b") {
		t.Fatal("distinct values hashed equal")
	}
}
