package replication

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flonle/goredis/internal/resp"
)

// fakeMaster drives the master side of the handshake and streams over a
// net.Pipe, so Client's handshake and replay logic can be exercised without
// a real TCP listener.
type fakeMaster struct {
	conn net.Conn
	dec  *resp.Decoder
}

func newFakeMaster(conn net.Conn) *fakeMaster {
	return &fakeMaster{conn: conn, dec: resp.NewDecoder(bufio.NewReader(conn))}
}

func (m *fakeMaster) expectAndReplySimple(t *testing.T, reply string) {
	t.Helper()
	_, err := m.dec.ReadCommand()
	require.NoError(t, err)
	_, err = m.conn.Write([]byte(reply))
	require.NoError(t, err)
}

func TestHandshakeSucceeds(t *testing.T) {
	clientConn, masterConn := net.Pipe()
	defer clientConn.Close()
	defer masterConn.Close()

	c := &Client{conn: clientConn, dec: resp.NewDecoder(bufio.NewReader(clientConn))}
	master := newFakeMaster(masterConn)

	done := make(chan error, 1)
	go func() { done <- c.Handshake(6380) }()

	master.expectAndReplySimple(t, "+PONG\r\n")
	master.expectAndReplySimple(t, "+OK\r\n")
	master.expectAndReplySimple(t, "+OK\r\n")

	_, err := master.dec.ReadCommand() // PSYNC ? -1
	require.NoError(t, err)
	_, err = master.conn.Write([]byte("+FULLRESYNC abc123 0\r\n"))
	require.NoError(t, err)
	_, err = master.conn.Write([]byte("$0\r\n"))
	require.NoError(t, err)

	require.NoError(t, <-done)
	assert.Equal(t, "abc123", c.MasterReplID())
	assert.Equal(t, int64(0), c.Offset())
}

func TestReplayAppliesCommandsAndAdvancesOffset(t *testing.T) {
	clientConn, masterConn := net.Pipe()
	defer clientConn.Close()

	c := &Client{conn: clientConn, dec: resp.NewDecoder(bufio.NewReader(clientConn))}

	var applied [][]string
	applyDone := make(chan struct{}, 4)
	go func() {
		_ = c.Replay(func(args []string) error {
			applied = append(applied, args)
			applyDone <- struct{}{}
			return nil
		})
	}()

	setCmd := resp.EncodeCommandArray([]string{"SET", "k", "v"})
	_, err := masterConn.Write(setCmd)
	require.NoError(t, err)

	select {
	case <-applyDone:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replicated command to apply")
	}

	assert.Equal(t, []string{"SET", "k", "v"}, applied[0])
	assert.Equal(t, int64(len(setCmd)), c.Offset())

	masterConn.Close()
}

func TestReplayAnswersGetAck(t *testing.T) {
	clientConn, masterConn := net.Pipe()
	defer clientConn.Close()

	c := &Client{conn: clientConn, dec: resp.NewDecoder(bufio.NewReader(clientConn))}
	c.offset.Store(7)

	go func() {
		_ = c.Replay(func(args []string) error { return nil })
	}()

	getack := resp.EncodeCommandArray([]string{"REPLCONF", "GETACK", "*"})
	_, err := masterConn.Write(getack)
	require.NoError(t, err)

	masterDec := resp.NewDecoder(bufio.NewReader(masterConn))
	reply, err := masterDec.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"REPLCONF", "ACK", "7"}, reply)

	masterConn.Close()
}
