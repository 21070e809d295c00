package rdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeLength appends a length-encoded value using the 6-bit short form,
// which covers every length this test needs.
func writeLength(buf []byte, n int) []byte {
	return append(buf, byte(n))
}

func writeString(buf []byte, s string) []byte {
	buf = writeLength(buf, len(s))
	return append(buf, s...)
}

func TestLoadPlainKeyValue(t *testing.T) {
	var buf []byte
	buf = append(buf, "REDIS0011"...)
	buf = append(buf, opSelectDB, 0)
	buf = append(buf, valueTypeString)
	buf = writeString(buf, "foo")
	buf = writeString(buf, "bar")
	buf = append(buf, opEOF)

	path := filepath.Join(t.TempDir(), "dump.rdb")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	entries, err := Load(path, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "foo", entries[0].Key)
	assert.Equal(t, "bar", entries[0].Value)
	assert.Zero(t, entries[0].ExpiresAtMs)
}

func TestLoadDropsExpiredEntry(t *testing.T) {
	var buf []byte
	buf = append(buf, "REDIS0011"...)
	buf = append(buf, opSelectDB, 0)
	buf = append(buf, opExpireTimeMs)
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 0) // expiry 0ms => already past any nowMs > 0
	buf = append(buf, valueTypeString)
	buf = writeString(buf, "expired")
	buf = writeString(buf, "gone")
	buf = append(buf, opEOF)

	path := filepath.Join(t.TempDir(), "dump.rdb")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	entries, err := Load(path, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "nope.rdb"), 0)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
