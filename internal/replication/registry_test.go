package replication

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUnregisterCount(t *testing.T) {
	r := NewRegistry()
	client, srvConn := net.Pipe()
	defer client.Close()

	h := r.Register(srvConn)
	assert.Equal(t, 1, r.Count())

	r.Unregister(h.ID)
	assert.Equal(t, 0, r.Count())
}

func TestClearAckAndSetAck(t *testing.T) {
	h := &ReplicaHandle{}
	_, ok := h.Acked()
	assert.False(t, ok)

	h.SetAck(42)
	offset, ok := h.Acked()
	require.True(t, ok)
	assert.Equal(t, int64(42), offset)

	h.ClearAck()
	_, ok = h.Acked()
	assert.False(t, ok)
}

func TestBroadcastDropsDeadReplicas(t *testing.T) {
	r := NewRegistry()
	client, srvConn := net.Pipe()
	client.Close() // immediately dead: writes to srvConn will now fail

	r.Register(srvConn)
	assert.Equal(t, 1, r.Count())

	r.Broadcast([]byte("x"))
	assert.Equal(t, 0, r.Count())
}

func TestNewReplIDLength(t *testing.T) {
	id := NewReplID()
	assert.Len(t, id, 40)
}
