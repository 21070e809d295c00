package redisd

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/flonle/goredis/internal/resp"
	"github.com/flonle/goredis/internal/store"
	"github.com/flonle/goredis/internal/streams"
)

// cmdXAdd implements XADD key id field value [field value ...].
func cmdXAdd(s *session, args []string) ([]byte, bool) {
	key, idArg := args[1], args[2]
	fieldVals := args[3:]
	if len(fieldVals) == 0 || len(fieldVals)%2 != 0 {
		return errorReply("ERR wrong number of arguments for 'xadd' command"), false
	}

	stream, wrongType := s.srv.Keyspace().GetOrCreateStream(key)
	if wrongType {
		return errorReply("WRONGTYPE Operation against a key holding the wrong kind of value"), false
	}

	id, err := resolveXAddID(idArg, stream.Last())
	if err != nil {
		return errorReply("ERR " + err.Error()), false
	}

	fields := make([]streams.Field, 0, len(fieldVals)/2)
	for i := 0; i < len(fieldVals); i += 2 {
		fields = append(fields, streams.Field{Name: fieldVals[i], Value: fieldVals[i+1]})
	}

	if err := stream.Append(id, fields); err != nil {
		return errorReply("ERR " + err.Error()), false
	}

	var e resp.Encoder
	e.WriteBulkString(id.String())
	return e.Bytes(), true
}

// resolveXAddID handles the three id shapes XADD accepts: fully explicit
// "ms-seq", wildcard-sequence "ms-*", and fully automatic "*".
func resolveXAddID(idArg string, last streams.ID) (streams.ID, error) {
	if idArg == "*" {
		return streams.ParseAuto(last), nil
	}
	return streams.ParseExplicit(idArg, last, 0)
}

// cmdXRange implements XRANGE key start end.
func cmdXRange(s *session, args []string) ([]byte, bool) {
	key := args[1]
	start, err := streams.ParseStartBound(args[2])
	if err != nil {
		return errorReply("ERR Invalid stream ID specified as stream command argument"), false
	}
	end, err := streams.ParseEndBound(args[3])
	if err != nil {
		return errorReply("ERR Invalid stream ID specified as stream command argument"), false
	}

	entry, ok := s.srv.Keyspace().GetEntry(key)
	var result []streams.Entry
	if ok {
		if entry.Value.Kind != store.KindStream {
			return errorReply("WRONGTYPE Operation against a key holding the wrong kind of value"), false
		}
		result = entry.Value.Stream.Range(start, end)
	}

	var e resp.Encoder
	writeStreamEntries(&e, result)
	return e.Bytes(), false
}

// cmdXRead implements XREAD [BLOCK ms] STREAMS key1 ... keyN id1 ... idN.
func cmdXRead(s *session, args []string) ([]byte, bool) {
	rest := args[1:]

	var blockMs int
	blocking := false
	if len(rest) >= 2 && strings.EqualFold(rest[0], "BLOCK") {
		ms, err := strconv.Atoi(rest[1])
		if err != nil || ms < 0 {
			return errorReply("ERR timeout is not an integer or out of range"), false
		}
		blockMs, blocking = ms, true
		rest = rest[2:]
	}

	if len(rest) < 1 || !strings.EqualFold(rest[0], "STREAMS") {
		return errorReply("ERR syntax error"), false
	}
	rest = rest[1:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return errorReply("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified."), false
	}

	n := len(rest) / 2
	keys := rest[:n]
	ids := make([]streams.ID, n)
	for i, raw := range rest[n:] {
		id, err := streams.ParseExplicit(raw, streams.Zero, 0)
		if err != nil {
			return errorReply("ERR Invalid stream ID specified as stream command argument"), false
		}
		ids[i] = id
	}

	results := readStreams(s, keys, ids)
	if anyNonEmpty(results) {
		return encodeXReadResult(keys, results), false
	}
	if !blocking {
		var e resp.Encoder
		e.WriteNullArray()
		return e.Bytes(), false
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if blockMs > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(blockMs)*time.Millisecond)
		defer cancel()
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var e resp.Encoder
			e.WriteNullBulk()
			return e.Bytes(), false
		case <-ticker.C:
			results = readStreams(s, keys, ids)
			if anyNonEmpty(results) {
				return encodeXReadResult(keys, results), false
			}
		}
	}
}

func readStreams(s *session, keys []string, ids []streams.ID) [][]streams.Entry {
	out := make([][]streams.Entry, len(keys))
	for i, key := range keys {
		entry, ok := s.srv.Keyspace().GetEntry(key)
		if !ok || entry.Value.Kind != store.KindStream {
			continue
		}
		out[i] = entry.Value.Stream.After(ids[i])
	}
	return out
}

func anyNonEmpty(results [][]streams.Entry) bool {
	for _, r := range results {
		if len(r) > 0 {
			return true
		}
	}
	return false
}

func encodeXReadResult(keys []string, results [][]streams.Entry) []byte {
	var e resp.Encoder
	nonEmpty := 0
	for _, r := range results {
		if len(r) > 0 {
			nonEmpty++
		}
	}
	e.WriteArrayHeader(nonEmpty)
	for i, r := range results {
		if len(r) == 0 {
			continue
		}
		e.WriteArrayHeader(2)
		e.WriteBulkString(keys[i])
		writeStreamEntries(&e, r)
	}
	return e.Bytes()
}

func writeStreamEntries(e *resp.Encoder, entries []streams.Entry) {
	e.WriteArrayHeader(len(entries))
	for _, entry := range entries {
		e.WriteArrayHeader(2)
		e.WriteBulkString(entry.ID.String())
		e.WriteArrayHeader(len(entry.Fields) * 2)
		for _, f := range entry.Fields {
			e.WriteBulkString(f.Name)
			e.WriteBulkString(f.Value)
		}
	}
}
