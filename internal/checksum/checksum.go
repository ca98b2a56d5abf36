// Package checksum hashes file contents and remembers the hashes of our own writes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// File returns the digest of the file at path.
func File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Sum(data), nil
}

// Tracker remembers the last digest written to each path.
// Safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	sums map[string]string
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{sums: make(map[string]string)}
}

// Record stores the digest of data as the last write to path.
func (t *Tracker) Record(path string, data []byte) {
	sum := Sum(data)
	t.mu.Lock()
	t.sums[path] = sum
	t.mu.Unlock()
}

// Matches reports whether sum is the digest of the last write to path.
func (t *Tracker) Matches(path, sum string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.sums[path]
	return ok && last == sum
}

// Set stores sum as the last known digest of path.
func (t *Tracker) Set(path, sum string) {
	t.mu.Lock()
	t.sums[path] = sum
	t.mu.Unlock()
}
