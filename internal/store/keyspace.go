// Package store holds the shared keyspace: a thread-safe map from key to a
// tagged value (string or stream) with an optional absolute expiry.
package store

import (
	"sync"
	"time"

	"github.com/flonle/goredis/internal/streams"
)

// Kind tags which variant a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindStream
)

// Value is the tagged variant every keyspace entry stores. Exactly one of
// Str / Stream is meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Str    string
	Stream *streams.Stream
}

// Entry pairs a Value with its optional absolute expiry (epoch
// milliseconds). ExpiresAt == 0 means "no expiry".
type Entry struct {
	Value     Value
	ExpiresAt int64
}

func (e *Entry) expired(nowMs int64) bool {
	return e.ExpiresAt != 0 && nowMs >= e.ExpiresAt
}

// Keyspace is a single-database, mutex-guarded key/value store. Per §5, a
// multi-goroutine scheduler needs its own lock around the keyspace,
// separate from the replica registry's lock.
type Keyspace struct {
	mu   sync.RWMutex
	data map[string]*Entry
}

// NewKeyspace returns an empty keyspace.
func NewKeyspace() *Keyspace {
	return &Keyspace{data: make(map[string]*Entry)}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// SetString stores a string value for key, with an optional absolute expiry
// in epoch milliseconds (0 means no expiry). Overwrites any prior kind.
func (k *Keyspace) SetString(key, value string, expiresAt int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = &Entry{Value: Value{Kind: KindString, Str: value}, ExpiresAt: expiresAt}
}

// SetEntry installs a fully-formed entry (used by the RDB loader, which
// already knows the value's kind and absolute expiry).
func (k *Keyspace) SetEntry(key string, e *Entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = e
}

// GetString returns the string stored at key. ok is false if the key is
// absent, expired (in which case it is deleted lazily), or holds a
// non-string value — callers distinguish the last case via GetEntry when they
// need a WRONGTYPE error instead of a plain miss.
func (k *Keyspace) GetString(key string) (value string, ok bool) {
	e, ok := k.getLive(key)
	if !ok || e.Value.Kind != KindString {
		return "", false
	}
	return e.Value.Str, true
}

// GetEntry returns the live (non-expired) entry at key, or ok=false.
func (k *Keyspace) GetEntry(key string) (e Entry, ok bool) {
	ent, ok := k.getLive(key)
	if !ok {
		return Entry{}, false
	}
	return *ent, true
}

// getLive returns the entry for key if present and not expired, deleting it
// lazily on the read path when it has expired.
func (k *Keyspace) getLive(key string) (*Entry, bool) {
	k.mu.RLock()
	e, found := k.data[key]
	k.mu.RUnlock()
	if !found {
		return nil, false
	}
	if e.expired(nowMs()) {
		k.mu.Lock()
		if cur, still := k.data[key]; still && cur == e {
			delete(k.data, key)
		}
		k.mu.Unlock()
		return nil, false
	}
	return e, true
}

// GetOrCreateStream returns the stream stored at key, creating an empty one
// if absent. wrongType is true if key holds a string instead.
func (k *Keyspace) GetOrCreateStream(key string) (s *streams.Stream, wrongType bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if e, ok := k.data[key]; ok && !e.expired(nowMs()) {
		if e.Value.Kind != KindStream {
			return nil, true
		}
		return e.Value.Stream, false
	}

	s = streams.New()
	k.data[key] = &Entry{Value: Value{Kind: KindStream, Stream: s}}
	return s, false
}

// Keys returns all live (non-expired) keys. Order is unspecified.
func (k *Keyspace) Keys() []string {
	now := nowMs()
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]string, 0, len(k.data))
	for key, e := range k.data {
		if !e.expired(now) {
			out = append(out, key)
		}
	}
	return out
}

// TypeName returns the Redis TYPE name for key: "none", "string" or
// "stream".
func (k *Keyspace) TypeName(key string) string {
	e, ok := k.getLive(key)
	if !ok {
		return "none"
	}
	switch e.Value.Kind {
	case KindStream:
		return "stream"
	default:
		return "string"
	}
}

// Incr increments the integer stored at key (treating a missing key as 0)
// and stores the result back as a string. It reports an error matching
// real Redis's message when the stored value isn't a base-10 integer.
func (k *Keyspace) Incr(key string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.data[key]
	if ok && e.expired(nowMs()) {
		ok = false
	}

	var cur int64
	var expiresAt int64
	if ok {
		if e.Value.Kind != KindString {
			return 0, errWrongType
		}
		n, err := parseInt64(e.Value.Str)
		if err != nil {
			return 0, errNotAnInteger
		}
		cur = n
		expiresAt = e.ExpiresAt
	}

	next := cur + 1
	k.data[key] = &Entry{Value: Value{Kind: KindString, Str: formatInt64(next)}, ExpiresAt: expiresAt}
	return next, nil
}
