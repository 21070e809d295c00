package resp

import (
	"bufio"
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCommandArrayRoundTrip(t *testing.T) {
	cases := [][]string{
		{"PING"},
		{"SET", "k", "v"},
		{"XADD", "s", "*", "field", "value", "field2", "value2"},
		{""},
	}
	for _, xs := range cases {
		encoded := EncodeCommandArray(xs)
		decoded, err := DecodeCommandArray(encoded)
		require.NoError(t, err)
		assert.Equal(t, xs, decoded)
	}
}

func TestDecoderReadCommandAcrossMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeCommandArray([]string{"SET", "a", "1"}))
	buf.Write(EncodeCommandArray([]string{"GET", "a"}))

	d := NewDecoder(bufio.NewReader(&buf))

	first, err := d.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"SET", "a", "1"}, first)

	second, err := d.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"GET", "a"}, second)
}

// TestDecoderBlocksOnPartialFrameThenCompletes feeds a frame to the decoder
// in two separate writes over a net.Pipe, so a frame is genuinely partial
// when ReadCommand first tries to read it rather than merely split across
// two buffered chunks already sitting in memory.
func TestDecoderBlocksOnPartialFrameThenCompletes(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	d := NewDecoder(bufio.NewReader(serverConn))
	done := make(chan struct{})
	var args []string
	var err error
	go func() {
		args, err = d.ReadCommand()
		close(done)
	}()

	full := EncodeCommandArray([]string{"ECHO", "hello"})
	// Write the frame in two pieces so the decoder has to block for the rest.
	split := len(full) / 2
	_, writeErr := clientConn.Write(full[:split])
	require.NoError(t, writeErr)

	select {
	case <-done:
		t.Fatal("ReadCommand returned before the frame was fully written")
	default:
	}

	_, writeErr = clientConn.Write(full[split:])
	require.NoError(t, writeErr)

	<-done
	require.NoError(t, err)
	assert.Equal(t, []string{"ECHO", "hello"}, args)
}

func TestReadCommandRejectsBadArrayHeader(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("not-an-array\r\n"))))
	_, err := d.ReadCommand()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestReadCommandRejectsMissingCRLF(t *testing.T) {
	d := NewDecoder(bufio.NewReader(bytes.NewReader([]byte("*1\r\n$3\r\nfoo"))))
	_, err := d.ReadCommand()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDecoderReadLineAndReadRDBPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("+FULLRESYNC abc123 0\r\n")
	buf.WriteString("$5\r\nhello")

	d := NewDecoder(bufio.NewReader(&buf))

	line, err := d.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "+FULLRESYNC abc123 0", string(line))

	header, err := d.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "$5", string(header))

	payload, err := d.ReadRDBPayload(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))
}
