package store

import (
	"errors"
	"strconv"
)

// ErrNotAnInteger is returned by Incr when the stored value cannot be
// parsed as a base-10 integer, matching real Redis's error text.
var ErrNotAnInteger = errors.New("value is not an integer or out of range")

// ErrWrongType is returned when a string-only operation targets a key
// holding a stream.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

var (
	errNotAnInteger = ErrNotAnInteger
	errWrongType    = ErrWrongType
)

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatInt64(n int64) string {
	return strconv.FormatInt(n, 10)
}
