package redis

import (
	"time"

	"github.com/redis/rueidis"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, commandTimeout time.Duration) *Store {
	return &Store{client: c, timeout: commandTimeout}
}
