package redisd

import (
	"context"
	"strconv"
	"time"

	"github.com/flonle/goredis/internal/replication"
	"github.com/flonle/goredis/internal/resp"
)

// cmdReplconf handles the handshake-time REPLCONF listening-port / REPLCONF
// capa exchanges; REPLCONF ACK from an already-registered replica is
// intercepted earlier, in session.run, and never reaches here.
func cmdReplconf(s *session, args []string) ([]byte, bool) {
	return simpleOK(), false
}

// cmdPsync answers PSYNC ? -1 with a FULLRESYNC line and the empty-RDB
// snapshot, then promotes this connection to a registered replica. It
// writes its own replies directly (the FULLRESYNC line and the RDB blob
// aren't plain RESP frames the generic dispatch path can build uniformly),
// so it returns a nil reply.
func cmdPsync(s *session, args []string) ([]byte, bool) {
	line := "+FULLRESYNC " + s.srv.ReplID() + " " + strconv.FormatInt(s.srv.Offset(), 10) + "\r\n"
	if _, err := s.conn.Write([]byte(line)); err != nil {
		return nil, false
	}

	rdb := replication.EmptyRDB
	header := "$" + strconv.Itoa(len(rdb)) + "\r\n"
	if _, err := s.conn.Write([]byte(header)); err != nil {
		return nil, false
	}
	if _, err := s.conn.Write(rdb); err != nil {
		return nil, false
	}

	s.replica = s.srv.Registry().Register(s.conn)
	return nil, false
}

const waitPollInterval = 100 * time.Millisecond

// cmdWait implements WAIT numreplicas timeout_ms. While no write has been
// propagated yet (offset 0), it answers with the current replica count
// immediately rather than polling.
func cmdWait(s *session, args []string) ([]byte, bool) {
	numReplicas, err := strconv.Atoi(args[1])
	if err != nil || numReplicas < 0 {
		return errorReply("ERR value is not an integer or out of range"), false
	}
	timeoutMs, err := strconv.Atoi(args[2])
	if err != nil || timeoutMs < 0 {
		return errorReply("ERR timeout is not an integer or out of range"), false
	}

	registry := s.srv.Registry()
	target := s.srv.Offset()

	var e resp.Encoder
	if target == 0 {
		e.WriteInteger(int64(registry.Count()))
		return e.Bytes(), false
	}

	for _, h := range registry.Replicas() {
		h.ClearAck()
	}

	ctx := context.Background()
	if timeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
	}

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	getack := resp.EncodeCommandArray([]string{"REPLCONF", "GETACK", "*"})

	for {
		registry.Broadcast(getack)

		if count := countAcked(registry, target); count >= numReplicas {
			e.WriteInteger(int64(count))
			return e.Bytes(), false
		}

		select {
		case <-ctx.Done():
			e.WriteInteger(int64(countAcked(registry, target)))
			return e.Bytes(), false
		case <-ticker.C:
		}
	}
}

func countAcked(registry *replication.Registry, target int64) int {
	count := 0
	for _, h := range registry.Replicas() {
		if offset, ok := h.Acked(); ok && offset >= target {
			count++
		}
	}
	return count
}
