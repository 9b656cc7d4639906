// Package cache holds short-lived context between a feed response and a
// follow-up deepen call. Entries are opaque payloads under a single TTL;
// expiry is checked lazily on access, with an explicit Sweep for purging.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cache: entry not found")
	ErrExpired  = errors.New("cache: entry expired")
)

type Entry struct {
	Key      string    `json:"key"`
	Payload  []byte    `json:"payload"`
	StoredAt time.Time `json:"storedAt"`
}

// Store is the TTL cache contract. Implementations are safe for concurrent
// use.
type Store interface {
	// Put stores the entry, stamping StoredAt.
	Put(ctx context.Context, entry Entry) error
	// Get returns the entry for key, ErrNotFound when absent and ErrExpired
	// when present but past its TTL.
	Get(ctx context.Context, key string) (Entry, error)
	// Sweep removes expired entries and reports how many were purged.
	Sweep(ctx context.Context) int
}
