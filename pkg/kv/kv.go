// Package kv provides a key-value store with hierarchical path-based keys.
// Keys are string slices (e.g., ["session", "kitchen-7", "timers"]) encoded
// with a separator byte for storage. A BadgerDB-backed implementation serves
// production use; an in-memory implementation serves tests.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical path represented as a slice of string segments.
// Segments must not contain the separator character.
type Key []string

// String returns the key joined with ':' for display and debugging.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair returned by List and accepted by Batch.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List iterates over entries under the given prefix in lexicographic
	// order of the encoded key. The prefix matches whole segments only.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Batch atomically applies a group of sets and deletes.
	Batch(ctx context.Context, set []Entry, del []Key) error

	// Close releases resources held by the store.
	Close() error
}

// Separator joins key segments in the encoded representation.
const Separator byte = ':'

func encodeKey(k Key) []byte {
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++
		}
		n += len(seg)
	}
	buf := make([]byte, 0, n)
	for i, seg := range k {
		if i > 0 {
			buf = append(buf, Separator)
		}
		buf = append(buf, seg...)
	}
	return buf
}

func decodeKey(b []byte) Key {
	var k Key
	start := 0
	for i, c := range b {
		if c == Separator {
			k = append(k, string(b[start:i]))
			start = i + 1
		}
	}
	return append(k, string(b[start:]))
}

// prefixBytes returns the encoded prefix terminated with the separator so
// that prefix ["a","b"] matches "a:b:c" but not "a:bc". An empty prefix
// matches everything.
func prefixBytes(prefix Key) []byte {
	if len(prefix) == 0 {
		return nil
	}
	return append(encodeKey(prefix), Separator)
}
