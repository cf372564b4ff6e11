package invoice

import (
	"testing"
	"time"
)

func TestExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	if (Invoice{}).Expired(now) {
		t.Fatalf("zero expiry must never expire")
	}
	if (Invoice{Expiry: now.Unix() + 60}).Expired(now) {
		t.Fatalf("future expiry must not be expired")
	}
	if !(Invoice{Expiry: now.Unix() - 60}).Expired(now) {
		t.Fatalf("past expiry must be expired")
	}
}

func TestIsFungible(t *testing.T) {
	if !(Owned{Amount: 10}).IsFungible() {
		t.Fatalf("amount request must be fungible")
	}
	if (Owned{Allocation: []byte{1}}).IsFungible() {
		t.Fatalf("allocation request must not be fungible")
	}
}
