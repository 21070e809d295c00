package redisd

import (
	"fmt"
	"strings"

	"github.com/flonle/goredis/internal/resp"
)

// handlerFunc executes one already-arity-checked command and returns its
// RESP-encoded reply. propagate reports whether the command mutated the
// keyspace and should be forwarded to replicas (only meaningful when this
// server is a master).
type handlerFunc func(s *session, args []string) (reply []byte, propagate bool)

// command describes one dispatch-table entry.
type command struct {
	minArity int // including the command name itself
	write    bool
	fn       handlerFunc
}

var commandTable = map[string]command{
	"PING":     {1, false, cmdPing},
	"ECHO":     {2, false, cmdEcho},
	"GET":      {2, false, cmdGet},
	"SET":      {3, true, cmdSet},
	"INCR":     {2, true, cmdIncr},
	"KEYS":     {2, false, cmdKeys},
	"TYPE":     {2, false, cmdType},
	"CONFIG":   {2, false, cmdConfig},
	"INFO":     {1, false, cmdInfo},
	"XADD":     {5, true, cmdXAdd},
	"XRANGE":   {4, false, cmdXRange},
	"XREAD":    {4, false, cmdXRead},
	"MULTI":    {1, false, cmdMulti},
	"EXEC":     {1, false, cmdExec},
	"DISCARD":  {1, false, cmdDiscard},
	"REPLCONF": {1, false, cmdReplconf},
	"PSYNC":    {1, false, cmdPsync},
	"WAIT":     {3, false, cmdWait},
}

// dispatch routes one decoded command frame to its handler, honoring
// transaction queueing along the way. It always returns a non-nil slice of
// bytes to write back to the client.
func (s *session) dispatch(args []string) []byte {
	name := strings.ToUpper(args[0])

	if s.queued && name != "EXEC" && name != "DISCARD" && name != "MULTI" {
		if _, ok := commandTable[name]; !ok {
			return errorReply(fmt.Sprintf("ERR Command not found: %s", args[0]))
		}
		s.pending = append(s.pending, args)
		return []byte("+QUEUED\r\n")
	}

	return s.execOne(args)
}

// execOne runs a single command immediately (bypassing queueing), used both
// for ordinary dispatch and for replaying a transaction's queued commands.
// A panicking handler is recovered here and turned into a RESP error reply
// rather than taking down the whole process, closing the gap the teacher's
// own main.go TODO left open: one misbehaving command must not crash the
// server out from under every other connection.
func (s *session) execOne(args []string) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			if s.srv.log != nil {
				s.srv.log.Errorw("command handler panicked", "command", name, "panic", r)
			}
			reply = errorReply(fmt.Sprintf("ERR internal error executing '%s'", strings.ToLower(name)))
		}
	}()

	name := strings.ToUpper(args[0])

	cmd, ok := commandTable[name]
	if !ok {
		return errorReply(fmt.Sprintf("ERR Command not found: %s", args[0]))
	}
	if len(args) < cmd.minArity {
		return errorReply(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
	}

	result, propagate := cmd.fn(s, args)
	if propagate && cmd.write && !s.srv.IsReplica() {
		s.srv.Propagate(args)
	}
	return result
}

func errorReply(msg string) []byte {
	var e resp.Encoder
	e.WriteError(msg)
	return e.Bytes()
}

func simpleOK() []byte {
	var e resp.Encoder
	e.WriteSimpleString("OK")
	return e.Bytes()
}
