package redisd

import "github.com/flonle/goredis/internal/resp"

func cmdMulti(s *session, args []string) ([]byte, bool) {
	s.queued = true
	s.pending = nil
	return simpleOK(), false
}

func cmdDiscard(s *session, args []string) ([]byte, bool) {
	if !s.queued {
		return errorReply("ERR DISCARD without MULTI"), false
	}
	s.queued = false
	s.pending = nil
	return simpleOK(), false
}

// cmdExec runs every queued command in order, one after another on this
// connection, and collects their replies into a single RESP array. No lock
// is held across the transaction, so commands from other connections may run
// between the queued ones. An empty transaction replies with a nil array.
func cmdExec(s *session, args []string) ([]byte, bool) {
	if !s.queued {
		return errorReply("ERR EXEC without MULTI"), false
	}

	pending := s.pending
	s.queued = false
	s.pending = nil

	var e resp.Encoder
	if len(pending) == 0 {
		e.WriteNullArray()
		return e.Bytes(), false
	}

	e.WriteArrayHeader(len(pending))
	for _, queuedArgs := range pending {
		e.WriteRaw(s.execOne(queuedArgs))
	}
	return e.Bytes(), false
}
