// Package replication implements both sides of master/replica replication:
// the master's replica registry, full-resync snapshot, write propagation and
// WAIT bookkeeping; and the replica's handshake, replay loop and offset
// accounting. Grounded on the original Python implementation's DataStore
// replication fields (app/database.py) and app/commands/replication.py /
// app/replication/replica.py, since the teacher repo has no replication code
// at all.
package replication

import (
	"crypto/rand"
	"net"
	"sync"

	"github.com/google/uuid"
)

const replIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReplID returns a fresh 40-character alphanumeric replication ID, the
// shape real Redis assigns to master_replid at startup.
func NewReplID() string {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failing means the system is unusable anyway
	}
	for i, b := range buf {
		buf[i] = replIDAlphabet[int(b)%len(replIDAlphabet)]
	}
	return string(buf)
}

// EmptyRDB is the constant valid-but-empty RDB snapshot emitted during
// FULLRESYNC. It is a bare header plus the EOF opcode and a zero checksum
// trailer — internal/rdb's reader treats a zero checksum as "not present,
// don't validate", so this loads cleanly as an empty keyspace.
var EmptyRDB = []byte("REDIS0011\xff\x00\x00\x00\x00\x00\x00\x00\x00")

// ReplicaHandle is one connected replica's registration: its stream, a
// stable identity used as the ack-map key (never the connection pointer, per
// the Design Notes on WAIT bookkeeping surviving reshuffling), and the
// offset it last acknowledged.
type ReplicaHandle struct {
	ID   uuid.UUID
	Conn net.Conn

	mu       sync.Mutex
	acked    int64
	hasAcked bool
}

// SetAck records offset as this replica's most recent REPLCONF ACK.
func (h *ReplicaHandle) SetAck(offset int64) {
	h.mu.Lock()
	h.acked, h.hasAcked = offset, true
	h.mu.Unlock()
}

// ClearAck marks this replica as not-yet-acknowledged-since-the-mark, used
// by WAIT at the start of its polling loop.
func (h *ReplicaHandle) ClearAck() {
	h.mu.Lock()
	h.hasAcked = false
	h.mu.Unlock()
}

// Acked reports the last acknowledged offset and whether one has been
// recorded since the last ClearAck.
func (h *ReplicaHandle) Acked() (offset int64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acked, h.hasAcked
}

// Registry is the master's set of connected replicas, guarded by its own
// lock, deliberately separate from the keyspace lock (§5/§9).
type Registry struct {
	mu       sync.Mutex
	replicas map[uuid.UUID]*ReplicaHandle
}

// NewRegistry returns an empty replica registry.
func NewRegistry() *Registry {
	return &Registry{replicas: make(map[uuid.UUID]*ReplicaHandle)}
}

// Register adds conn as a newly-streaming replica and returns its handle.
func (r *Registry) Register(conn net.Conn) *ReplicaHandle {
	h := &ReplicaHandle{ID: uuid.New(), Conn: conn}
	r.mu.Lock()
	r.replicas[h.ID] = h
	r.mu.Unlock()
	return h
}

// Unregister removes a replica's registration, e.g. on disconnect.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	delete(r.replicas, id)
	r.mu.Unlock()
}

// Replicas returns a snapshot slice of currently-registered replicas.
func (r *Registry) Replicas() []*ReplicaHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ReplicaHandle, 0, len(r.replicas))
	for _, h := range r.replicas {
		out = append(out, h)
	}
	return out
}

// Count returns the number of currently-registered replicas.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replicas)
}

// Broadcast writes b to every registered replica, dropping (and
// unregistering) any whose write fails — a dead replica is discovered here
// rather than by a separate health check.
func (r *Registry) Broadcast(b []byte) {
	for _, h := range r.Replicas() {
		if _, err := h.Conn.Write(b); err != nil {
			r.Unregister(h.ID)
		}
	}
}
