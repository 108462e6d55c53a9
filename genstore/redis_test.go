package genstore

import "testing"

func TestRedisGenStoreRequiresClient(t *testing.T) {
	if _, err := NewRedisGenStore(RedisConfig{}); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
