package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key builds a stable cache key from a namespace and request parts.
func Key(ns string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return ns + ":" + hex.EncodeToString(h[:12])
}
