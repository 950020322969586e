package redis

import (
	"context"
	"testing"
)

func TestKeyPrefix(t *testing.T) {
	c := &Client{prefix: "lo1:sess:"}
	if got := c.Key("abc"); got != "lo1:sess:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != errNotInitialized {
		t.Fatalf("Set: expected errNotInitialized, got %v", err)
	}
	if _, err := c.Get(ctx, "k"); err != errNotInitialized {
		t.Fatalf("Get: expected errNotInitialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}
